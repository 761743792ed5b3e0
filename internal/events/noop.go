package events

import "context"

// NoopPublisher drops every event. Used when EVENTS_PROVIDER=none.
type NoopPublisher struct{}

func NewNoop() *NoopPublisher { return &NoopPublisher{} }

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
