package httpx

import (
	"context"
	"net/http"
	"time"
)

// Transport sends a single request. It sits at the end of the policy chain.
type Transport interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f TransportFunc) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

type DefaultTransport struct {
	client *http.Client
}

// NewDefaultTransport pools connections: 100 idle overall, 10 per host,
// closed after 90s idle.
func NewDefaultTransport() *DefaultTransport {
	return NewDefaultTransportWithClient(&http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	})
}

func NewDefaultTransportWithClient(client *http.Client) *DefaultTransport {
	return &DefaultTransport{client: client}
}

func (t *DefaultTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return t.client.Do(req.WithContext(ctx))
}
