package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// EventStore persists audit events.
type EventStore interface {
	RecordEvent(ctx context.Context, event *model.Event) error
}

// Recorder writes every mutation to the audit table, publishes the stored
// event on the bus, then hands it to local sinks such as the SSE hub.
// All steps are best-effort; failures are logged and never reach the caller.
type Recorder struct {
	store EventStore
	pub   Publisher
	sinks []func(*model.Event)
}

// NewRecorder returns a Recorder. A nil publisher drops bus delivery.
func NewRecorder(s EventStore, p Publisher) *Recorder {
	if p == nil {
		p = &NoopPublisher{}
	}
	return &Recorder{store: s, pub: p}
}

// AddSink registers fn to receive each recorded event. Call before use.
func (r *Recorder) AddSink(fn func(*model.Event)) {
	r.sinks = append(r.sinks, fn)
}

// Record persists and fans out one event.
func (r *Recorder) Record(ctx context.Context, topic, resourceID, actor string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "resource_id", resourceID, "error", err)
		return
	}
	ev := &model.Event{
		Topic:      topic,
		ResourceID: resourceID,
		Actor:      actor,
		Payload:    data,
	}
	if err := r.store.RecordEvent(ctx, ev); err != nil {
		slog.Warn("failed to record event", "topic", topic, "resource_id", resourceID, "error", err)
	}
	if err := r.pub.Publish(ctx, topic, ev); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "resource_id", resourceID, "error", err)
	}
	for _, sink := range r.sinks {
		sink(ev)
	}
}
