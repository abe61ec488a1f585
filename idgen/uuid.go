package idgen

import (
	"strconv"

	"github.com/google/uuid"
)

var _uuidGenerator = func() string {
	return uuid.NewString()
}

// NewUUID returns a random v4 UUID, used for session tokens and request ids.
func NewUUID() string {
	return _uuidGenerator()
}

// UseUUID swaps the generator. The returned func restores the previous one.
func UseUUID(fn func() string) (restore func()) {
	prev := _uuidGenerator
	_uuidGenerator = fn
	return func() { _uuidGenerator = prev }
}

// Sequence returns a generator yielding prefix-1, prefix-2, ...
// It is meant to be passed to UseUUID or UseULID.
func Sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}
