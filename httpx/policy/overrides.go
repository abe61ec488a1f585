package policy

import (
	"context"
	"time"
)

type overrides struct {
	noRetry bool
	timeout *time.Duration
}

type overridesKey struct{}

func overridesFrom(ctx context.Context) overrides {
	o, _ := ctx.Value(overridesKey{}).(overrides)
	return o
}

// WithoutRetry marks ctx so the retry policy makes a single attempt.
func WithoutRetry(ctx context.Context) context.Context {
	o := overridesFrom(ctx)
	o.noRetry = true
	return context.WithValue(ctx, overridesKey{}, o)
}

// WithTimeout overrides the timeout policy's budget for requests run with ctx.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	o := overridesFrom(ctx)
	o.timeout = &d
	return context.WithValue(ctx, overridesKey{}, o)
}

type keyKey struct{}

// WithKey attaches the request key, usually the owner id, for policies that
// label their output with it.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyKey{}, key)
}

func keyFrom(ctx context.Context) string {
	key, _ := ctx.Value(keyKey{}).(string)
	return key
}
