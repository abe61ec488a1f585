package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seb7887/uibus/httpx/policy"
)

// Headers is a convenience type for HTTP headers.
type Headers map[string]string

type Request struct {
	Method string

	// Path is joined with the client's base URL unless it is already absolute.
	Path string

	Headers Headers
	Body    io.Reader

	// Key selects the scheduler lane the callbacks of Client.Go run on.
	// Requests sharing a key have their callbacks serialized.
	Key string

	Options []RequestOption
}

// RequestOption overrides client policies for a single request.
type RequestOption func(ctx context.Context) context.Context

// WithRequestTimeout replaces the client timeout for this request. Zero or a
// negative duration disables it.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(ctx context.Context) context.Context {
		return policy.WithTimeout(ctx, d)
	}
}

// WithoutRetry makes a single attempt regardless of the client's retry policy.
func WithoutRetry() RequestOption {
	return func(ctx context.Context) context.Context {
		return policy.WithoutRetry(ctx)
	}
}

func (r *Request) url(baseURL string) string {
	if strings.HasPrefix(r.Path, "http://") || strings.HasPrefix(r.Path, "https://") {
		return r.Path
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(r.Path, "/")
}

func (r *Request) toHTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	if r == nil || r.Method == "" || r.Path == "" {
		return nil, fmt.Errorf("%w: method and path are required", ErrInvalidRequest)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.url(baseURL), r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}
