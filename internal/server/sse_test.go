package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/model"
)

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe("usr-alice", nil, "") // all topics
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicEntityCreated, "ent-1", "usr-alice", []byte(`{"id":"ent-1"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicEntityCreated || evt.ResourceID != "ent-1" {
			t.Fatalf("unexpected event %+v", evt)
		}
		if string(evt.Data) != `{"id":"ent-1"}` {
			t.Fatalf("expected data=%q, got %q", `{"id":"ent-1"}`, string(evt.Data))
		}
		if evt.ID != 1 {
			t.Fatalf("expected id=1, got %d", evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_TopicFiltering(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe("usr-alice", []string{"lowcode.entity.*"}, "")
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicSchemaCreated, "sch-1", "usr-alice", []byte(`{}`))
	hub.broadcast(events.TopicEntityCreated, "ent-1", "usr-alice", []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicEntityCreated {
			t.Fatalf("expected topic=%q, got %q", events.TopicEntityCreated, evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_ResourceFilter(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe("usr-alice", []string{"lowcode.>"}, "bot-1")
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicBotStarted, "bot-2", "usr-alice", []byte(`{}`))
	hub.broadcast(events.TopicBotStarted, "bot-1", "usr-alice", []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.ResourceID != "bot-1" {
			t.Fatalf("expected bot-1, got %q", evt.ResourceID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event for %q", evt.ResourceID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_ActorFilter(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe("usr-bob", nil, "")
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicApplicationCreated, "app-1", "usr-alice", []byte(`{"n":1}`))
	hub.broadcast(events.TopicApplicationCreated, "app-2", "usr-bob", []byte(`{"n":2}`))

	select {
	case evt := <-client.ch:
		if evt.Actor != "usr-bob" || evt.ResourceID != "app-2" {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case evt := <-client.ch:
		t.Fatalf("received another user's event %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe("usr-alice", nil, "")
	hub.unsubscribe(client)

	hub.broadcast(events.TopicEntityCreated, "ent-1", "usr-alice", []byte(`{}`))

	select {
	case <-client.ch:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_EventsSince(t *testing.T) {
	hub := newSSEHub()
	for range 5 {
		hub.broadcast(events.TopicEntityUpdated, "ent-1", "usr-alice", []byte(`{}`))
	}

	evts := hub.eventsSince(2)
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	if evts[0].ID != 3 || evts[1].ID != 4 || evts[2].ID != 5 {
		t.Fatalf("expected IDs [3,4,5], got [%d,%d,%d]", evts[0].ID, evts[1].ID, evts[2].ID)
	}
	if got := hub.eventsSince(5); len(got) != 0 {
		t.Fatalf("expected nothing after the newest id, got %d", len(got))
	}
}

func TestSSEHub_RingBufferWrap(t *testing.T) {
	hub := newSSEHub()
	for range sseRingBufferSize + 100 {
		hub.broadcast(events.TopicEntityCreated, "ent-1", "usr-alice", []byte(`{}`))
	}

	evts := hub.eventsSince(0)
	if len(evts) != sseRingBufferSize {
		t.Fatalf("expected %d events, got %d", sseRingBufferSize, len(evts))
	}
	if evts[0].ID != 101 {
		t.Fatalf("expected oldest event ID=101, got %d", evts[0].ID)
	}
}

func TestSSEHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := newSSEHub()
	client := hub.subscribe("usr-alice", nil, "")
	defer hub.unsubscribe(client)

	done := make(chan struct{})
	go func() {
		for range sseClientBuffer * 2 {
			hub.broadcast(events.TopicEntityCreated, "ent-1", "usr-alice", []byte(`{}`))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	if len(client.ch) != sseClientBuffer {
		t.Fatalf("buffered %d events, want %d", len(client.ch), sseClientBuffer)
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"lowcode.entity.created", "lowcode.entity.created", true},
		{"lowcode.entity.created", "lowcode.entity.updated", false},
		{"lowcode.entity.*", "lowcode.entity.created", true},
		{"lowcode.entity.*", "lowcode.schema.created", false},
		{"lowcode.>", "lowcode.bot.started", true},
		{"lowcode.>", "other.bot.started", false},
		{"lowcode.bot.>", "lowcode.bot", false},
		{"*.*.*", "lowcode.bot.started", true},
		{"*.*.*", "lowcode.bot", false},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
				t.Fatalf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

// streamRequest runs GET path against handler until stop is called and
// returns the recorder once the handler has returned.
func streamRequest(t *testing.T, handler http.Handler, path, token string, header map[string]string) (rec *httptest.ResponseRecorder, stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", path, nil).WithContext(ctx)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec = httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()
	// Give the handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	return rec, func() {
		cancel()
		<-done
	}
}

func TestHandleEventStream_RequiresAuth(t *testing.T) {
	_, _, h := newTestServer()
	rec := doJSON(t, h, "GET", "/api/events/stream", "", nil)
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestHandleEventStream_SSE(t *testing.T) {
	srv, _, handler := newTestServer()
	token := tokenFor(t, srv.issuer, "usr-alice")

	rec, stop := streamRequest(t, handler, "/api/events/stream", token, nil)
	srv.sseHub.broadcast(events.TopicEntityCreated, "ent-sse1", "usr-alice", []byte(`{"id":"ent-sse1"}`))
	time.Sleep(50 * time.Millisecond)
	stop()

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event:"+events.TopicEntityCreated) {
		t.Fatalf("expected event line in body, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"id":"ent-sse1"}`) {
		t.Fatalf("expected data line in body, got:\n%s", body)
	}
}

func TestHandleEventStream_QueryToken(t *testing.T) {
	srv, _, handler := newTestServer()
	token := tokenFor(t, srv.issuer, "usr-alice")

	rec, stop := streamRequest(t, handler, "/api/events/stream?token="+token, "", nil)
	srv.sseHub.broadcast(events.TopicBotStarted, "bot-1", "usr-alice", []byte(`{}`))
	time.Sleep(50 * time.Millisecond)
	stop()

	requireStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "event:"+events.TopicBotStarted) {
		t.Fatalf("expected event in body, got:\n%s", rec.Body.String())
	}
}

func TestHandleEventStream_Filters(t *testing.T) {
	srv, _, handler := newTestServer()
	token := tokenFor(t, srv.issuer, "usr-alice")

	rec, stop := streamRequest(t, handler, "/api/events/stream?topics=lowcode.bot.*,lowcode.build.>&resource_id=bot-1", token, nil)
	srv.sseHub.broadcast(events.TopicEntityCreated, "bot-1", "usr-alice", []byte(`{"n":1}`))
	srv.sseHub.broadcast(events.TopicBotStarted, "bot-2", "usr-alice", []byte(`{"n":2}`))
	srv.sseHub.broadcast(events.TopicBotStarted, "bot-1", "usr-alice", []byte(`{"n":3}`))
	time.Sleep(50 * time.Millisecond)
	stop()

	body := rec.Body.String()
	if strings.Contains(body, `data:{"n":1}`) || strings.Contains(body, `data:{"n":2}`) {
		t.Fatalf("filtered events leaked into body:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":3}`) {
		t.Fatalf("expected matching event in body, got:\n%s", body)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	srv, _, handler := newTestServer()
	token := tokenFor(t, srv.issuer, "usr-alice")

	srv.sseHub.broadcast(events.TopicEntityCreated, "ent-1", "usr-alice", []byte(`{"n":1}`))
	srv.sseHub.broadcast(events.TopicEntityUpdated, "ent-1", "usr-alice", []byte(`{"n":2}`))
	srv.sseHub.broadcast(events.TopicEntityDeleted, "ent-1", "usr-alice", []byte(`{"n":3}`))

	rec, stop := streamRequest(t, handler, "/api/events/stream", token, map[string]string{"Last-Event-ID": "1"})
	stop()

	body := rec.Body.String()
	if strings.Contains(body, `data:{"n":1}`) {
		t.Fatalf("expected event 1 to be skipped, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":2}`) || !strings.Contains(body, `data:{"n":3}`) {
		t.Fatalf("expected events 2 and 3 in body, got:\n%s", body)
	}
}

// TestHandleEventStream_RecordedMutation checks that a mutation made
// through the API reaches stream subscribers as a full event.
func TestHandleEventStream_RecordedMutation(t *testing.T) {
	srv, _, handler := newTestServer()
	token := tokenFor(t, srv.issuer, "usr-alice")

	rec, stop := streamRequest(t, handler, "/api/events/stream?topics=lowcode.application.*", token, nil)
	var app model.Application
	create(t, handler, "/api/applications", token, map[string]any{"name": "CRM"}, &app)
	time.Sleep(50 * time.Millisecond)
	stop()

	var data string
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
		}
	}
	var evt model.Event
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		t.Fatalf("data %q is not an event: %v", data, err)
	}
	if evt.Topic != events.TopicApplicationCreated || evt.ResourceID != app.ID || evt.Actor != "usr-alice" || evt.ID == 0 {
		t.Fatalf("event = %+v", evt)
	}
}

func TestHandleEventStream_OtherUsersEvents(t *testing.T) {
	srv, _, handler := newTestServer()
	alice := tokenFor(t, srv.issuer, "usr-alice")
	bob := tokenFor(t, srv.issuer, "usr-bob")

	srv.sseHub.broadcast(events.TopicEntityCreated, "ent-old", "usr-alice", []byte(`{"n":1}`))
	rec, stop := streamRequest(t, handler, "/api/events/stream", bob, map[string]string{"Last-Event-ID": "0"})
	var app model.Application
	create(t, handler, "/api/applications", alice, map[string]any{"name": "CRM"}, &app)
	time.Sleep(50 * time.Millisecond)
	stop()

	body := rec.Body.String()
	if strings.Contains(body, `data:{"n":1}`) || strings.Contains(body, app.ID) {
		t.Fatalf("another user's events reached the stream:\n%s", body)
	}
}

func TestHandleEventStream_MultipleClients(t *testing.T) {
	srv, _, handler := newTestServer()
	token := tokenFor(t, srv.issuer, "usr-alice")

	rec1, stop1 := streamRequest(t, handler, "/api/events/stream", token, nil)
	rec2, stop2 := streamRequest(t, handler, "/api/events/stream", token, nil)
	srv.sseHub.broadcast(events.TopicEntityCreated, "ent-multi", "usr-alice", []byte(`{"id":"ent-multi"}`))
	time.Sleep(50 * time.Millisecond)
	stop1()
	stop2()

	for i, rec := range []*httptest.ResponseRecorder{rec1, rec2} {
		if !strings.Contains(rec.Body.String(), "ent-multi") {
			t.Fatalf("client %d: expected event, got:\n%s", i+1, rec.Body.String())
		}
	}
}

func TestSSEEventFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSSEEvent(rec, &sseEvent{ID: 7, Topic: events.TopicBuildQueued, Data: []byte(`{"id":"bld-1"}`)})
	want := "id:7\nevent:" + events.TopicBuildQueued + "\ndata:{\"id\":\"bld-1\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("wire format = %q, want %q", got, want)
	}
}
