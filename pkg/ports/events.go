package ports

import (
	"context"

	"github.com/aretw0/holdfast/pkg/domain"
)

// EventHandler receives change events synchronously on the publisher's goroutine.
// Handlers must not block and must not call back into the component that published.
type EventHandler func(ctx context.Context, event domain.Event)

// EventPublisher is the producer side of the change event bus.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// EventSubscriber is the consumer side of the change event bus.
type EventSubscriber interface {
	// Subscribe registers the handler and returns a function that removes it.
	Subscribe(handler EventHandler) (unsubscribe func())
}
