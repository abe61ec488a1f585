package sietch

import "errors"

var (
	ErrItemNotFound = errors.New("item not found")
	ErrItemExists   = errors.New("item already exists")
	ErrNilItem      = errors.New("item cannot be nil")
)
