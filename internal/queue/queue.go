// Package queue carries build jobs from the API server to workers.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
	ErrEmpty = errors.New("queue is empty")
	// ErrUnavailable is returned when no queue backend is configured.
	ErrUnavailable = errors.New("job queue is unavailable")
)

// Job is the payload pushed for each requested build.
type Job struct {
	BuildID    string    `json:"build_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a FIFO of build jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to timeout for a job and returns ErrEmpty if none came.
	Dequeue(ctx context.Context, timeout time.Duration) (Job, error)
	Len(ctx context.Context) (int64, error)
	Close() error
}

// Unavailable is the Queue used when Redis is not configured.
type Unavailable struct{}

func (Unavailable) Enqueue(context.Context, Job) error { return ErrUnavailable }
func (Unavailable) Dequeue(context.Context, time.Duration) (Job, error) {
	return Job{}, ErrUnavailable
}
func (Unavailable) Len(context.Context) (int64, error) { return 0, ErrUnavailable }
func (Unavailable) Close() error { return nil }

// Memory is an in-process Queue for tests and single-binary setups.
type Memory struct {
	mu     sync.Mutex
	jobs   []Job
	notify chan struct{}
}

// NewMemory returns an empty in-process queue.
func NewMemory() *Memory {
	return &Memory{notify: make(chan struct{}, 1)}
}

func (m *Memory) Enqueue(_ context.Context, job Job) error {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *Memory) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if len(m.jobs) > 0 {
			job := m.jobs[0]
			m.jobs = m.jobs[1:]
			m.mu.Unlock()
			return job, nil
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-timer.C:
			return Job{}, ErrEmpty
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
}

func (m *Memory) Len(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.jobs)), nil
}

func (m *Memory) Close() error { return nil }
