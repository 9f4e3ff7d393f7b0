package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeList mimics a Redis list.
type fakeList struct {
	items   []string
	pushErr error
	lastPop time.Duration
	closed  bool
}

func (f *fakeList) LPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	for _, v := range values {
		f.items = append([]string{string(v.([]byte))}, f.items...)
	}
	return redis.NewIntResult(int64(len(f.items)), nil)
}

func (f *fakeList) BRPop(_ context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	f.lastPop = timeout
	if len(f.items) == 0 {
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
	last := f.items[len(f.items)-1]
	f.items = f.items[:len(f.items)-1]
	return redis.NewStringSliceResult([]string{keys[0], last}, nil)
}

func (f *fakeList) LLen(context.Context, string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(f.items)), nil)
}

func (f *fakeList) Close() error {
	f.closed = true
	return nil
}

func TestRedisQueue_FIFO(t *testing.T) {
	fl := &fakeList{}
	q := &Redis{client: fl, key: "lowcode:builds"}
	ctx := context.Background()

	for _, id := range []string{"bld-1", "bld-2"} {
		if err := q.Enqueue(ctx, Job{BuildID: id}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(fl.items[1]), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["build_id"] != "bld-1" || payload["enqueued_at"] == nil {
		t.Errorf("payload = %v", payload)
	}
	if n, _ := q.Len(ctx); n != 2 {
		t.Errorf("Len = %d", n)
	}

	for _, want := range []string{"bld-1", "bld-2"} {
		job, err := q.Dequeue(ctx, 2*time.Second)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if job.BuildID != want {
			t.Errorf("BuildID = %q, want %q", job.BuildID, want)
		}
	}
	if fl.lastPop != 2*time.Second {
		t.Errorf("BRPOP timeout = %v", fl.lastPop)
	}
	if _, err := q.Dequeue(ctx, time.Second); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty queue: err = %v", err)
	}
	q.Close()
	if !fl.closed {
		t.Error("Close did not close client")
	}
}

func TestRedisQueue_Errors(t *testing.T) {
	fl := &fakeList{pushErr: errors.New("READONLY")}
	q := &Redis{client: fl, key: "k"}
	if err := q.Enqueue(context.Background(), Job{BuildID: "bld-1"}); err == nil {
		t.Error("expected push error")
	}

	fl.pushErr = nil
	fl.items = []string{"not json"}
	if _, err := q.Dequeue(context.Background(), time.Second); err == nil {
		t.Error("expected decode error")
	}
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	if _, err := q.Dequeue(ctx, 10*time.Millisecond); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}

	done := make(chan Job)
	go func() {
		job, _ := q.Dequeue(ctx, 5*time.Second)
		done <- job
	}()
	time.Sleep(10 * time.Millisecond)
	q.Enqueue(ctx, Job{BuildID: "bld-9"})
	select {
	case job := <-done:
		if job.BuildID != "bld-9" {
			t.Errorf("job = %+v", job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Dequeue was not woken")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := q.Dequeue(cctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	if err := (Unavailable{}).Enqueue(context.Background(), Job{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v", err)
	}
}
