package shared

import "context"

// EventHandler reacts to settlement events after the originating transaction commits.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler wants; nil means all of them.
	EventTypes() []string
}

// EventPublisher is what application services depend on to announce state changes.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is the process-wide dispatcher wired at startup.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
