package sietch

import (
	"context"
	"sync"
	"time"
)

type InMemoryOption func(*inMemoryConfig)

type inMemoryConfig struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL expires entries ttl after they were last written.
func WithTTL(ttl time.Duration) InMemoryOption {
	return func(c *inMemoryConfig) {
		c.ttl = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) InMemoryOption {
	return func(c *inMemoryConfig) {
		c.now = now
	}
}

type inMemoryEntry[T any] struct {
	item    T
	expires time.Time
}

// InMemoryConnector keeps copies of the stored items, so callers may reuse
// the values they pass in and get back.
type InMemoryConnector[T any, ID comparable] struct {
	mu     sync.RWMutex
	data   map[ID]inMemoryEntry[T]
	getID  func(*T) ID
	config inMemoryConfig
}

var _ Repository[struct{}, int] = (*InMemoryConnector[struct{}, int])(nil)

func NewInMemoryConnector[T any, ID comparable](getID func(*T) ID, opts ...InMemoryOption) *InMemoryConnector[T, ID] {
	cfg := inMemoryConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryConnector[T, ID]{
		data:   make(map[ID]inMemoryEntry[T]),
		getID:  getID,
		config: cfg,
	}
}

func (r *InMemoryConnector[T, ID]) Create(_ context.Context, item *T) error {
	if item == nil {
		return ErrNilItem
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.getID(item)
	if _, ok := r.lookupLocked(id); ok {
		return ErrItemExists
	}
	r.data[id] = r.entry(item)
	return nil
}

func (r *InMemoryConnector[T, ID]) Get(_ context.Context, id ID) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.lookupLocked(id)
	if !ok {
		return nil, ErrItemNotFound
	}
	item := e.item
	return &item, nil
}

func (r *InMemoryConnector[T, ID]) Upsert(_ context.Context, item *T) error {
	if item == nil {
		return ErrNilItem
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.getID(item)] = r.entry(item)
	return nil
}

func (r *InMemoryConnector[T, ID]) Delete(_ context.Context, id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.lookupLocked(id)
	delete(r.data, id)
	if !ok {
		return ErrItemNotFound
	}
	return nil
}

func (r *InMemoryConnector[T, ID]) Exists(_ context.Context, id ID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.lookupLocked(id)
	return ok, nil
}

// Len counts entries that have not expired.
func (r *InMemoryConnector[T, ID]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for id := range r.data {
		if _, ok := r.lookupLocked(id); ok {
			n++
		}
	}
	return n
}

func (r *InMemoryConnector[T, ID]) entry(item *T) inMemoryEntry[T] {
	e := inMemoryEntry[T]{item: *item}
	if r.config.ttl > 0 {
		e.expires = r.config.now().Add(r.config.ttl)
	}
	return e
}

// lookupLocked treats expired entries as absent; they are overwritten or
// deleted by the next write.
func (r *InMemoryConnector[T, ID]) lookupLocked(id ID) (inMemoryEntry[T], bool) {
	e, ok := r.data[id]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !r.config.now().Before(e.expires) {
		return e, false
	}
	return e, true
}
