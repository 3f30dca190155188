// Package events implements the in-process change event bus.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/holdfast/internal/logging"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/aretw0/holdfast/pkg/ports"
)

type subscription struct {
	id      uint64
	handler ports.EventHandler
}

// Bus delivers every published event synchronously to the handlers registered
// at publish time, in registration order. There is no buffering and no replay.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

// Option configures the Bus.
type Option func(*Bus)

// WithLogger configures a logger for handler failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	_ ports.EventPublisher  = (*Bus)(nil)
	_ ports.EventSubscriber = (*Bus)(nil)
)

// Subscribe registers handler and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(handler ports.EventHandler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			// Copy so a Publish iterating the old slice is unaffected.
			next := make([]subscription, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every current subscriber.
// A handler that panics is logged and skipped; the remaining handlers still run.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	observability.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	for _, s := range subs {
		b.deliver(ctx, s, event)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"subscriber", s.id,
				"event", event.Type,
				"panic", r,
			)
		}
	}()
	s.handler(ctx, event)
}

// Len returns the number of registered subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
