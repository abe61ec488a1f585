// Package sietch is a small generic key/value repository with in-memory and
// Redis backends.
package sietch

import "context"

// Repository stores entities of type T under an identifier of type ID.
type Repository[T any, ID comparable] interface {
	// Create fails with ErrItemExists when the id is taken.
	Create(ctx context.Context, item *T) error
	Get(ctx context.Context, id ID) (*T, error)
	Upsert(ctx context.Context, item *T) error
	Delete(ctx context.Context, id ID) error
	Exists(ctx context.Context, id ID) (bool, error)
}
