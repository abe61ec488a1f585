// Package inflight tracks the asynchronous requests a component has in flight
// so they can all be cancelled when the component goes away.
package inflight

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/seb7887/uibus/eventbus"
	"github.com/seb7887/uibus/httpx"
	"go.uber.org/zap"
)

const authorizationHeader = "Authorization"

// Registry is scoped to one owner. It is safe for concurrent use.
type Registry struct {
	owner   *eventbus.Owner
	issuer  Issuer
	creds   CredentialSource
	logger  *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	ongoing map[*entry]struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for request lifecycle records.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.Named("inflight")
		}
	}
}

// WithMetrics records the registry's activity on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New builds a registry for owner. A nil creds sends requests without an
// Authorization header.
func New(owner *eventbus.Owner, issuer Issuer, creds CredentialSource, opts ...Option) *Registry {
	r := &Registry{
		owner:   owner,
		issuer:  issuer,
		creds:   creds,
		logger:  zap.NewNop(),
		ongoing: make(map[*entry]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.Stringer("owner", owner))
	return r
}

// entry stands for one begun request. The handle is attached once Issue
// returns; a cancel that arrives first is replayed on attach.
type entry struct {
	mu        sync.Mutex
	handle    Handle
	cancelled bool
}

func (e *entry) attach(h Handle) {
	e.mu.Lock()
	e.handle = h
	cancelled := e.cancelled
	e.mu.Unlock()

	if cancelled {
		h.Cancel()
	}
}

func (e *entry) cancel() {
	e.mu.Lock()
	e.cancelled = true
	h := e.handle
	e.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
}

// Begin issues req with the current bearer token and tracks it until it
// settles or Abort is called. The caller's Complete callbacks run before the
// registry's own bookkeeping; req itself is left untouched.
func (r *Registry) Begin(ctx context.Context, req *Request) error {
	if r.issuer == nil {
		return ErrNoIssuer
	}
	if req == nil || req.Method == "" || req.Target == "" {
		return fmt.Errorf("%w: method and target are required", ErrMalformedRequest)
	}

	e := &entry{}
	issued := r.wrap(req, e)

	// tracked before issuing: an issuer may settle before Issue returns
	r.mu.Lock()
	r.ongoing[e] = struct{}{}
	r.mu.Unlock()
	r.metrics.began(r.owner.Name())

	h, err := r.issuer.Issue(ctx, issued)
	if err != nil {
		r.mu.Lock()
		_, tracked := r.ongoing[e]
		delete(r.ongoing, e)
		r.mu.Unlock()
		if tracked {
			r.metrics.dropped(r.owner.Name())
		}
		if errors.Is(err, httpx.ErrInvalidRequest) {
			return fmt.Errorf("%w: %s %s: %w", ErrMalformedRequest, req.Method, req.Target, err)
		}
		return fmt.Errorf("%w: %s %s: %w", ErrNotIssued, req.Method, req.Target, err)
	}
	e.attach(h)

	r.logger.Debug("request begun",
		zap.String("method", req.Method),
		zap.String("target", req.Target),
	)
	return nil
}

func (r *Registry) wrap(req *Request, e *entry) *Request {
	issued := *req

	issued.Headers = make(httpx.Headers, len(req.Headers)+1)
	maps.Copy(issued.Headers, req.Headers)
	if r.creds != nil {
		issued.Headers[authorizationHeader] = "Bearer " + r.creds.Token()
	}

	if issued.Key == "" {
		issued.Key = r.owner.ID()
	}

	issued.Complete = append(slices.Clone(req.Complete), func(res *httpx.Result) {
		r.settle(e, res)
	})
	return &issued
}

func (r *Registry) settle(e *entry, res *httpx.Result) {
	r.mu.Lock()
	_, tracked := r.ongoing[e]
	delete(r.ongoing, e)
	r.mu.Unlock()

	if tracked {
		r.metrics.settledWith(r.owner.Name(), string(res.Status))
	}
}

// Abort cancels every tracked request. The registry is empty when Abort
// returns; the cancelled requests still run their callbacks.
func (r *Registry) Abort() {
	r.mu.Lock()
	snapshot := slices.Collect(maps.Keys(r.ongoing))
	clear(r.ongoing)
	r.mu.Unlock()

	for _, e := range snapshot {
		e.cancel()
	}

	if len(snapshot) > 0 {
		r.metrics.abortedN(r.owner.Name(), len(snapshot))
		r.logger.Debug("requests aborted", zap.Int("count", len(snapshot)))
	}
}

// Len reports how many requests are tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ongoing)
}

func (r *Registry) Owner() *eventbus.Owner {
	return r.owner
}
