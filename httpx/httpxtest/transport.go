// Package httpxtest provides doubles and assertions for code built on httpx.
package httpxtest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
)

// MockTransport is an httpx.Transport that records requests. Func wins over
// Err, which wins over Response.
type MockTransport struct {
	mu sync.Mutex

	Response *http.Response
	Err      error
	Func     func(ctx context.Context, req *http.Request) (*http.Response, error)

	Requests  []*http.Request
	CallCount int
}

// Do is safe for concurrent use. Func runs without the lock held so it may
// block until ctx is done.
func (m *MockTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.CallCount++
	m.Requests = append(m.Requests, req)
	fn, err, resp := m.Func, m.Err, m.Response
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = nil
	m.CallCount = 0
}

// LastRequest is nil when nothing was sent.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}

// NewResponse builds a response with a readable body.
func NewResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

// Respond returns a Func answering every request with status and body.
func Respond(status int, body string) func(context.Context, *http.Request) (*http.Response, error) {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return NewResponse(status, body), nil
	}
}

// Block returns a Func that never answers: it waits for ctx to be done and
// reports its error.
func Block() func(context.Context, *http.Request) (*http.Response, error) {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// Gate returns a Func that holds every request until release is closed, then
// answers with status and body.
func Gate(release <-chan struct{}, status int, body string) func(context.Context, *http.Request) (*http.Response, error) {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		select {
		case <-release:
			return NewResponse(status, body), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
