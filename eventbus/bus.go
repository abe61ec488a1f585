package eventbus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

type subscription struct {
	owner   *Owner
	handler Receiver
}

// Bus is the in-process event bus. The zero value is not usable; use New.
type Bus struct {
	mu         sync.Mutex
	registered map[string][]subscription

	logger        *zap.Logger
	metrics       *Metrics
	recoverPanics bool
}

// New creates an empty bus. A single bus is normally created at the
// composition root and handed to every component.
func New(opts ...Option) *Bus {
	b := &Bus{
		registered: make(map[string][]subscription),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe appends handler to the listeners of eventType. Subscribing the
// same owner and handler twice yields two independent subscriptions.
func (b *Bus) Subscribe(eventType string, owner *Owner, handler Receiver) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	b.registered[eventType] = append(b.registered[eventType], subscription{owner: owner, handler: handler})
	b.mu.Unlock()

	b.metrics.subscribed()
	b.logger.Debug("subscribed",
		zap.String("event_type", eventType),
		zap.Stringer("owner", owner),
	)
}

// SubscribeFunc is Subscribe for a plain function.
func (b *Bus) SubscribeFunc(eventType string, owner *Owner, fn func(ctx context.Context, msg any)) {
	if fn == nil {
		return
	}
	b.Subscribe(eventType, owner, ReceiverFunc(fn))
}

// UnsubscribeAll removes every subscription held by owner, across all event
// types. Event types left without listeners are forgotten.
func (b *Bus) UnsubscribeAll(owner *Owner) {
	removed := 0

	b.mu.Lock()
	for eventType, listeners := range b.registered {
		// fresh slice: a dispatch in progress may still be iterating the old one
		remaining := make([]subscription, 0, len(listeners))
		for _, l := range listeners {
			if l.owner != owner {
				remaining = append(remaining, l)
			}
		}
		removed += len(listeners) - len(remaining)

		if len(remaining) > 0 {
			b.registered[eventType] = remaining
		} else {
			delete(b.registered, eventType)
		}
	}
	b.mu.Unlock()

	if removed == 0 {
		return
	}
	b.metrics.unsubscribed(removed)
	b.logger.Debug("unsubscribed",
		zap.Stringer("owner", owner),
		zap.Int("removed", removed),
	)
}

// Publish synchronously delivers payload to the listeners registered for
// eventType when the call starts. Publishing to an event type nobody listens
// to is not an error.
//
// A panicking handler aborts the rest of the dispatch and the panic reaches
// the caller, unless the bus was built WithRecover.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) {
	b.mu.Lock()
	listeners := b.registered[eventType]
	snapshot := make([]subscription, len(listeners))
	copy(snapshot, listeners)
	b.mu.Unlock()

	if len(snapshot) == 0 {
		b.metrics.published(eventType, false)
		b.logger.Debug(eventType+" (dead)",
			zap.String("event_type", eventType),
			zap.Bool("delivered", false),
			zap.Any("payload", payload),
		)
		return
	}

	b.metrics.published(eventType, true)
	b.logger.Debug(eventType,
		zap.String("event_type", eventType),
		zap.Bool("delivered", true),
		zap.Int("listeners", len(snapshot)),
		zap.Any("payload", payload),
	)

	for _, l := range snapshot {
		b.deliver(WithOwner(ctx, l.owner), eventType, l, payload)
	}
}

func (b *Bus) deliver(ctx context.Context, eventType string, l subscription, payload any) {
	if b.recoverPanics {
		defer func() {
			if r := recover(); r != nil {
				b.metrics.handlerPanicked(eventType)
				b.logger.Error("handler panicked",
					zap.String("event_type", eventType),
					zap.Stringer("owner", l.owner),
					zap.String("panic", fmt.Sprint(r)),
				)
			}
		}()
	}
	l.handler.Receive(ctx, payload)
}

// HasSubscribers reports whether eventType currently has any listener.
func (b *Bus) HasSubscribers(eventType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.registered[eventType]
	return ok
}

// Subscriptions returns the number of listeners for eventType.
func (b *Bus) Subscriptions(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.registered[eventType])
}

// EventTypes lists the event types with at least one listener, sorted.
func (b *Bus) EventTypes() []string {
	b.mu.Lock()
	types := make([]string, 0, len(b.registered))
	for t := range b.registered {
		types = append(types, t)
	}
	b.mu.Unlock()

	sort.Strings(types)
	return types
}
