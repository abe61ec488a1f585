package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

var _ulidGenerator = func() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewULID returns a lexically sortable identifier. Owners are keyed by these.
func NewULID() string {
	return _ulidGenerator()
}

// UseULID swaps the generator, typically for deterministic tests.
// The returned func restores the previous generator.
func UseULID(fn func() string) (restore func()) {
	prev := _ulidGenerator
	_ulidGenerator = fn
	return func() { _ulidGenerator = prev }
}
