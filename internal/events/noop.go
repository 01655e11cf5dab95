package events

import "context"

type noopBus struct{}

// NewNoop returns a bus that drops every event. Used when no broker is
// configured and in tests that do not care about events.
func NewNoop() Bus { return noopBus{} }

func (noopBus) Publish(context.Context, Event) error { return nil }

func (noopBus) StartForwarder(context.Context, func(Event)) error { return nil }

func (noopBus) Close() error { return nil }
