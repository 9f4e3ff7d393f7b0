package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

type testPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestNoopPublisher(t *testing.T) {
	pub := &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicEntityCreated, testPayload{}); err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Subscriber = (*NATSSubscriber)(nil)
}

func TestTopicsAreRooted(t *testing.T) {
	for _, topic := range []string{
		TopicUserRegistered, TopicApplicationCreated, TopicSchemaUpdated, TopicEntityDeleted,
		TopicBotStarted, TopicBotFailed, TopicMessageCreated, TopicBuildSucceeded, TopicWorkflowActionAdded,
	} {
		if strings.HasPrefix(topic, ChatSubjectPrefix) {
			t.Errorf("topic %q collides with the chat relay subjects", topic)
		}
		if !strings.HasPrefix(topic, TopicPrefix) || strings.Count(topic, ".") != 2 {
			t.Errorf("topic %q is not lowcode.<resource>.<verb>", topic)
		}
	}
}

func TestChatSubject(t *testing.T) {
	subj := ChatSubject("bot-abc")
	if subj != "lowcode.chat.bot-abc" {
		t.Fatalf("ChatSubject = %q", subj)
	}
	if id, ok := BotFromChatSubject(subj); !ok || id != "bot-abc" {
		t.Errorf("BotFromChatSubject(%q) = %q, %v", subj, id, ok)
	}
	for _, bad := range []string{"lowcode.chat.", "lowcode.bot.started"} {
		if _, ok := BotFromChatSubject(bad); ok {
			t.Errorf("BotFromChatSubject(%q) ok = true", bad)
		}
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicEntityCreated, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	if err := pub.Publish(context.Background(), TopicEntityCreated, testPayload{ID: "ent-1", Name: "x"}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got testPayload
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.ID != "ent-1" {
			t.Errorf("got ID=%q, want %q", got.ID, "ent-1")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PublishMultipleTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("lowcode.>", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	topics := []string{TopicSchemaCreated, TopicEntityDeleted, TopicBotStarted, ChatSubject("bot-1")}
	for _, topic := range topics {
		if err := pub.Publish(context.Background(), topic, testPayload{ID: topic}); err != nil {
			t.Fatalf("Publish(%s): %v", topic, err)
		}
	}
	pub.conn.Flush()

	for i := range topics {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := pub.Publish(context.Background(), TopicEntityCreated, testPayload{}); err == nil {
		t.Error("expected error publishing after close")
	}
}
