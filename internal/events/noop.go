package events

import "context"

// NoopPublisher drops every event. The server uses it when no NATS URL is set.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (n *NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (n *NoopPublisher) Close() error { return nil }
