package httpxtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// RecordedRequest is what a TestServer remembers of a request.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type serverConfig struct {
	latency     time.Duration
	statusCodes []int
	body        string
	handler     http.HandlerFunc
}

type TestServerOption func(*serverConfig)

// WithLatency delays every answer unless the client goes away first.
func WithLatency(d time.Duration) TestServerOption {
	return func(c *serverConfig) {
		c.latency = d
	}
}

// WithStatusCodes answers with codes in turn, wrapping around. Default: 200.
func WithStatusCodes(codes ...int) TestServerOption {
	return func(c *serverConfig) {
		c.statusCodes = codes
	}
}

func WithBody(body string) TestServerOption {
	return func(c *serverConfig) {
		c.body = body
	}
}

// WithHandler answers with handler instead; requests are still recorded.
func WithHandler(handler http.HandlerFunc) TestServerOption {
	return func(c *serverConfig) {
		c.handler = handler
	}
}

// TestServer is an httptest.Server that records the requests it handles.
type TestServer struct {
	*httptest.Server

	config serverConfig

	mu   sync.Mutex
	seen []RecordedRequest
}

func NewTestServer(opts ...TestServerOption) *TestServer {
	ts := &TestServer{config: serverConfig{statusCodes: []int{http.StatusOK}}}
	for _, opt := range opts {
		opt(&ts.config)
	}
	if len(ts.config.statusCodes) == 0 {
		ts.config.statusCodes = []int{http.StatusOK}
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.serve))
	return ts
}

func (ts *TestServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ts.mu.Lock()
	n := len(ts.seen)
	ts.seen = append(ts.seen, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	ts.mu.Unlock()

	cfg := ts.config
	if cfg.latency > 0 {
		select {
		case <-time.After(cfg.latency):
		case <-r.Context().Done():
			return
		}
	}

	if cfg.handler != nil {
		cfg.handler(w, r)
		return
	}

	w.WriteHeader(cfg.statusCodes[n%len(cfg.statusCodes)])
	if cfg.body != "" {
		_, _ = io.WriteString(w, cfg.body)
	}
}

func (ts *TestServer) RequestCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.seen)
}

// Requests returns the recorded requests in arrival order.
func (ts *TestServer) Requests() []RecordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]RecordedRequest(nil), ts.seen...)
}
