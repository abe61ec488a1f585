package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTimeout is returned when the request budget runs out.
var ErrTimeout = errors.New("request timeout")

type TimeoutConfig struct {
	// Request bounds the whole request, retries included. Default: 30s
	Request time.Duration
}

type TimeoutPolicy struct {
	config TimeoutConfig
}

func NewTimeoutPolicy(config TimeoutConfig) *TimeoutPolicy {
	if config.Request == 0 {
		config.Request = 30 * time.Second
	}
	return &TimeoutPolicy{config: config}
}

func (t *TimeoutPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	budget := t.config.Request
	if o := overridesFrom(ctx).timeout; o != nil {
		budget = *o
	}
	if budget <= 0 {
		return next(ctx, req)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, budget)
	resp, err := next(timeoutCtx, req)
	if err != nil {
		cancel()
		// only our own deadline is a timeout; the caller's cancellation passes through
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, budget)
		}
		return resp, err
	}

	if resp == nil || resp.Body == nil {
		cancel()
		return resp, nil
	}

	// the body is still being read: release the timer when it is closed
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
