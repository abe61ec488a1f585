package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/seb7887/uibus/httpx/policy"
)

var (
	// ErrInvalidRequest is returned synchronously when a Request cannot be built.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAborted is the error of a Call cancelled before it settled.
	ErrAborted = errors.New("request aborted")

	// ErrUnexpectedStatus marks a response outside the 2xx range.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Causes reported by RequestError.
const (
	CauseInvalidRequest = "invalid_request"
	CauseNetwork        = "network"
	CauseTimeout        = "timeout"
	CauseMaxRetries     = "max_retries"
	CauseStatus         = "status"
	CauseAborted        = "aborted"
)

// RequestError describes a failed request.
type RequestError struct {
	Err error

	// Request may be nil when the request could not be built.
	Request *http.Request

	// Response is nil for transport failures. Its body has already been
	// consumed when the error comes from Client.Go.
	Response *http.Response

	Retries int

	// Cause is one of the Cause* constants.
	Cause string
}

func (e *RequestError) Error() string {
	if e.Request != nil {
		return fmt.Sprintf("httpx: %s %s failed: %s (cause: %s, retries: %d)",
			e.Request.Method, e.Request.URL.String(), e.Err.Error(), e.Cause, e.Retries)
	}
	return fmt.Sprintf("httpx: request failed: %s (cause: %s)", e.Err.Error(), e.Cause)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusCode is 0 when no response was received.
func (e *RequestError) StatusCode() int {
	if e.Response != nil {
		return e.Response.StatusCode
	}
	return 0
}

func causeOf(err error) string {
	switch {
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		return CauseAborted
	case errors.Is(err, policy.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, policy.ErrMaxRetriesExceeded):
		return CauseMaxRetries
	default:
		return CauseNetwork
	}
}
