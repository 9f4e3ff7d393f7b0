package build

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/queue"
)

// ErrNoDestinations fails builds when the worker has nowhere to write.
var ErrNoDestinations = errors.New("no build destinations configured")

// Store is what the worker reads and writes.
type Store interface {
	BundleStore
	CreateBuild(ctx context.Context, b *model.Build) error
	GetBuild(ctx context.Context, id string) (*model.Build, error)
	UpdateBuild(ctx context.Context, b *model.Build) error
}

// Recorder writes audit events.
type Recorder interface {
	Record(ctx context.Context, topic, resourceID, actor string, payload any)
}

// BuildEvent is the payload of build lifecycle events.
type BuildEvent struct {
	Build *model.Build `json:"build"`
}

// Request creates a queued build for appID and pushes it onto q. If the
// push fails the build is marked failed and the queue error returned.
func Request(ctx context.Context, s Store, q queue.Queue, rec Recorder, appID, userID string) (*model.Build, error) {
	b := &model.Build{
		ID:            idgen.MustGenerate(idgen.PrefixBuild),
		ApplicationID: appID,
		Status:        model.BuildQueued,
		RequestedBy:   userID,
		Artifacts:     []string{},
	}
	if err := s.CreateBuild(ctx, b); err != nil {
		return nil, fmt.Errorf("create build: %w", err)
	}
	if err := q.Enqueue(ctx, queue.Job{BuildID: b.ID, EnqueuedAt: b.CreatedAt}); err != nil {
		now := time.Now().UTC()
		b.Status = model.BuildFailed
		b.Error = err.Error()
		b.FinishedAt = &now
		if uerr := s.UpdateBuild(ctx, b); uerr != nil {
			slog.Warn("failed to mark build failed", "build", b.ID, "err", uerr)
		}
		return b, err
	}
	if rec != nil {
		rec.Record(ctx, events.TopicBuildQueued, b.ID, userID, BuildEvent{Build: b})
	}
	return b, nil
}

// Worker pulls build jobs off the queue and processes them one at a time.
type Worker struct {
	store        Store
	queue        queue.Queue
	destinations []Destination
	recorder     Recorder
	poll         time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker. poll bounds each blocking dequeue, so the
// loop wakes at least that often.
func NewWorker(s Store, q queue.Queue, destinations []Destination, rec Recorder, poll time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:        s,
		queue:        q,
		destinations: destinations,
		recorder:     rec,
		poll:         poll,
		logger:       logger,
	}
}

// Start begins consuming jobs in a background goroutine.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Stop cancels the worker and waits for the current build (if any) to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	w.logger.Info("build worker started", "destinations", len(w.destinations), "poll", w.poll)
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx, w.poll)
		switch {
		case err == nil:
			w.Process(ctx, job)
		case errors.Is(err, queue.ErrEmpty):
		case ctx.Err() != nil:
			return
		default:
			w.logger.Error("dequeue failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.poll):
			}
		}
	}
}

func (w *Worker) record(ctx context.Context, topic string, b *model.Build) {
	if w.recorder != nil {
		w.recorder.Record(ctx, topic, b.ID, b.RequestedBy, BuildEvent{Build: b})
	}
}

// Process runs one build job to completion. Jobs for unknown or already
// finished builds are dropped.
func (w *Worker) Process(ctx context.Context, job queue.Job) {
	b, err := w.store.GetBuild(ctx, job.BuildID)
	if errors.Is(err, sql.ErrNoRows) {
		w.logger.Warn("dropping job for unknown build", "build", job.BuildID)
		return
	}
	if err != nil {
		w.logger.Error("load build failed", "build", job.BuildID, "err", err)
		return
	}
	if b.Status.IsDone() {
		w.logger.Info("skipping finished build", "build", b.ID, "status", b.Status)
		return
	}

	now := time.Now().UTC()
	b.Status = model.BuildRunning
	b.StartedAt = &now
	if err := w.store.UpdateBuild(ctx, b); err != nil {
		w.logger.Error("mark build running failed", "build", b.ID, "err", err)
		return
	}
	w.record(ctx, events.TopicBuildStarted, b)

	artifacts, size, err := w.export(ctx, b)
	finished := time.Now().UTC()
	b.FinishedAt = &finished
	b.Artifacts = artifacts
	b.Bytes = size
	if err != nil {
		b.Status = model.BuildFailed
		b.Error = err.Error()
	} else {
		b.Status = model.BuildSucceeded
		b.Error = ""
	}
	// Use a fresh context so a shutdown mid-build still records the outcome.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.store.UpdateBuild(saveCtx, b); err != nil {
		w.logger.Error("save build result failed", "build", b.ID, "err", err)
	}

	if b.Status == model.BuildFailed {
		w.logger.Error("build failed", "build", b.ID, "err", b.Error)
		w.record(saveCtx, events.TopicBuildFailed, b)
		return
	}
	w.logger.Info("build completed", "build", b.ID, "artifacts", len(artifacts), "bytes", size)
	w.record(saveCtx, events.TopicBuildSucceeded, b)
}

func (w *Worker) export(ctx context.Context, b *model.Build) ([]string, int64, error) {
	artifacts := []string{}
	if len(w.destinations) == 0 {
		return artifacts, 0, ErrNoDestinations
	}
	var buf bytes.Buffer
	if err := ExportBundle(ctx, w.store, b.ApplicationID, &buf); err != nil {
		return artifacts, 0, err
	}
	data := buf.Bytes()
	key := fmt.Sprintf("%s/%s.jsonl", b.ApplicationID, b.ID)

	var errs []error
	for i, dest := range w.destinations {
		loc, err := dest.Write(ctx, key, data)
		if err != nil {
			w.logger.Error("build destination write failed", "build", b.ID, "destination", i, "err", err)
			errs = append(errs, err)
			continue
		}
		artifacts = append(artifacts, loc)
	}
	return artifacts, int64(len(data)), errors.Join(errs...)
}
