package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

type fakeEventStore struct {
	events []*model.Event
	err    error
}

func (f *fakeEventStore) RecordEvent(_ context.Context, ev *model.Event) error {
	if f.err != nil {
		return f.err
	}
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return nil
}

type capturePublisher struct {
	topics []string
	events []any
}

func (c *capturePublisher) Publish(_ context.Context, topic string, event any) error {
	c.topics = append(c.topics, topic)
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestRecorder_RecordPublishAndSink(t *testing.T) {
	st := &fakeEventStore{}
	pub := &capturePublisher{}
	r := NewRecorder(st, pub)
	var sunk []*model.Event
	r.AddSink(func(ev *model.Event) { sunk = append(sunk, ev) })

	r.Record(context.Background(), TopicBotStarted, "bot-1", "usr-1", map[string]string{"status": "running"})

	if len(st.events) != 1 {
		t.Fatalf("stored %d events", len(st.events))
	}
	ev := st.events[0]
	if ev.Topic != TopicBotStarted || ev.ResourceID != "bot-1" || ev.Actor != "usr-1" {
		t.Errorf("event = %+v", ev)
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload["status"] != "running" {
		t.Errorf("payload = %s", ev.Payload)
	}
	if len(pub.topics) != 1 || pub.topics[0] != TopicBotStarted || pub.events[0] != ev {
		t.Errorf("published %v %v", pub.topics, pub.events)
	}
	if len(sunk) != 1 || sunk[0].ID != 1 {
		t.Errorf("sinks got %+v", sunk)
	}
}

func TestRecorder_StoreFailureStillPublishes(t *testing.T) {
	st := &fakeEventStore{err: errors.New("db down")}
	pub := &capturePublisher{}
	NewRecorder(st, pub).Record(context.Background(), TopicBuildFailed, "bld-1", "", struct{}{})
	if len(pub.topics) != 1 {
		t.Errorf("expected publish despite store error")
	}
}

func TestRecorder_UnmarshalablePayload(t *testing.T) {
	st := &fakeEventStore{}
	NewRecorder(st, nil).Record(context.Background(), TopicBuildFailed, "bld-1", "", make(chan int))
	if len(st.events) != 0 {
		t.Errorf("stored %d events for bad payload", len(st.events))
	}
}
