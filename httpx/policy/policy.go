// Package policy holds the resilience and observability decorators applied
// around every request the httpx client sends.
package policy

import (
	"context"
	"net/http"
)

// Executor runs a request. It is either the transport or the next policy.
type Executor func(ctx context.Context, req *http.Request) (*http.Response, error)

// Policy wraps next with extra behaviour: retrying it, bounding it in time,
// recording it. A policy may also short-circuit and never call next.
type Policy interface {
	Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error)
}

// Func adapts a function to Policy.
type Func func(ctx context.Context, req *http.Request, next Executor) (*http.Response, error)

func (f Func) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	return f(ctx, req, next)
}

// Chain composes policies around final. The first policy is the outermost.
func Chain(policies []Policy, final Executor) Executor {
	executor := final
	for i := len(policies) - 1; i >= 0; i-- {
		p := policies[i]
		next := executor
		executor = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return p.Execute(ctx, req, next)
		}
	}
	return executor
}
