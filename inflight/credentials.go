package inflight

import "sync"

// CredentialSource yields the bearer token attached to every request. It is
// read each time a request begins, so a token change applies to the next
// request only.
type CredentialSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string {
	return f()
}

// TokenStore is a CredentialSource whose token is set once a session is
// established and cleared when it ends.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *TokenStore) Clear() {
	s.Set("")
}

func (s *TokenStore) Has() bool {
	return s.Token() != ""
}
