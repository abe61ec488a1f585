package ui

import (
	"context"

	"github.com/seb7887/uibus/eventbus"
)

// SignIn announces the outcome of the sign-in provider on the bus.
type SignIn struct {
	bus eventbus.Publisher
}

func NewSignIn(bus eventbus.Publisher) *SignIn {
	return &SignIn{bus: bus}
}

func (s *SignIn) SignedIn(ctx context.Context, user GoogleUser) {
	s.bus.Publish(ctx, EventSignedIn, user)
}

func (s *SignIn) SignInFailed(ctx context.Context, reason string) {
	s.bus.Publish(ctx, EventSignInFailed, SignInFailure{Reason: reason})
}

func (s *SignIn) SignedOut(ctx context.Context) {
	s.bus.Publish(ctx, EventSignedOut, nil)
}
