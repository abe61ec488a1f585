// Package eventbus is an in-process publish/subscribe bus keyed by event type
// name. Subscriptions belong to an Owner so a component can drop all of its
// subscriptions in one call when it is torn down.
//
// Publish is synchronous: every handler registered for the event type at the
// moment Publish starts is invoked, in subscription order, before Publish
// returns. Handlers may subscribe, unsubscribe or publish re-entrantly; such
// changes only affect later dispatches.
package eventbus

import "context"

// Publisher is the side of the bus most components need.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// Subscriber registers and drops owner-scoped handlers.
type Subscriber interface {
	Subscribe(eventType string, owner *Owner, handler Receiver)
	UnsubscribeAll(owner *Owner)
}

// Receiver handles one published payload. The owner the subscription was
// registered for is available through OwnerFromContext.
type Receiver interface {
	Receive(ctx context.Context, msg any)
}

// ReceiverFunc adapts a plain function to Receiver.
type ReceiverFunc func(ctx context.Context, msg any)

func (f ReceiverFunc) Receive(ctx context.Context, msg any) {
	f(ctx, msg)
}
