package policy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/seb7887/uibus/httpx/backoff"
	"go.uber.org/multierr"
)

// ErrMaxRetriesExceeded is joined to the last failure once every attempt is used.
var ErrMaxRetriesExceeded = errors.New("max retry attempts exceeded")

type RetryConfig struct {
	// MaxAttempts counts the first attempt. Default: 3
	MaxAttempts int

	// Backoff between attempts. Default: exponential with jitter
	Backoff backoff.Backoff

	// ShouldRetry overrides the default condition (transport error or a
	// RetryableStatusCodes response).
	ShouldRetry func(*http.Response, error) bool

	// Default: 429, 500, 502, 503, 504
	RetryableStatusCodes []int

	// OnlyIdempotent skips retries for POST and PATCH.
	OnlyIdempotent bool

	// OnRetry is told about every attempt that is going to be retried.
	OnRetry func(req *http.Request, attempt int, resp *http.Response, err error)
}

type RetryPolicy struct {
	config RetryConfig
}

func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.Backoff == nil {
		config.Backoff = backoff.NewExponentialBackoff()
	}
	if config.RetryableStatusCodes == nil {
		config.RetryableStatusCodes = []int{429, 500, 502, 503, 504}
	}
	return &RetryPolicy{config: config}
}

func (r *RetryPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	if overridesFrom(ctx).noRetry || (r.config.OnlyIdempotent && !isIdempotent(req.Method)) {
		return next(ctx, req)
	}

	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		body = b
	}

	var (
		resp *http.Response
		errs error
	)
	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		var err error
		resp, err = next(ctx, req)
		if !r.shouldRetry(resp, err) {
			return resp, err
		}
		errs = multierr.Append(errs, err)

		// cancellation is final
		if ctx.Err() != nil {
			return resp, multierr.Append(errs, ctx.Err())
		}

		if attempt == r.config.MaxAttempts-1 {
			break
		}

		drain(resp)
		if r.config.OnRetry != nil {
			r.config.OnRetry(req, attempt, resp, err)
		}

		select {
		case <-time.After(r.config.Backoff.Next(attempt)):
		case <-ctx.Done():
			return nil, multierr.Append(errs, ctx.Err())
		}
	}

	return resp, multierr.Append(errs, ErrMaxRetriesExceeded)
}

func (r *RetryPolicy) shouldRetry(resp *http.Response, err error) bool {
	if r.config.ShouldRetry != nil {
		return r.config.ShouldRetry(resp, err)
	}
	if err != nil {
		return true
	}
	return resp != nil && slices.Contains(r.config.RetryableStatusCodes, resp.StatusCode)
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
