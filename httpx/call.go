package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusAbort   Status = "abort"
)

// Result is what the callbacks of an asynchronous call receive.
type Result struct {
	Status     Status
	StatusCode int
	Header     http.Header
	Body       []byte

	// Err is a *RequestError unless Status is StatusSuccess.
	Err error
}

func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

type ResultFunc func(*Result)

// Callbacks run once per call: Success or Error, then each Complete in order.
// Error also runs for aborted calls, with Status set to StatusAbort.
type Callbacks struct {
	Success  ResultFunc
	Error    ResultFunc
	Complete []ResultFunc
}

// Scheduler runs callback tasks. Tasks submitted with the same key must run
// sequentially in submission order. *wp.Pool satisfies it.
type Scheduler interface {
	Submit(key string, task func()) bool
}

// Call is a handle on a request started with Client.Go.
type Call struct {
	cancel  context.CancelFunc
	aborted atomic.Bool
	done    chan struct{}
	result  *Result
}

// Cancel aborts the call. A call whose callbacks have not started yet is
// delivered as aborted. Calling it again, or once Done is closed, does
// nothing.
func (c *Call) Cancel() {
	if c.aborted.CompareAndSwap(false, true) {
		c.cancel()
	}
}

// Done is closed once every callback has run.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result is nil until Done is closed.
func (c *Call) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

// Go starts req in the background and returns immediately. Only a request
// that cannot be built is reported here; every other outcome reaches cb.
func (c *Client) Go(ctx context.Context, req *Request, cb Callbacks) (*Call, error) {
	ctx, cancel := context.WithCancel(ctx)
	ctx, httpReq, retries, err := c.prepare(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	call := &Call{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer cancel()
		call.result = c.settle(ctx, httpReq, retries, call)
		c.dispatch(req.Key, call, httpReq, cb)
	}()
	return call, nil
}

func (c *Client) settle(ctx context.Context, httpReq *http.Request, retries *atomic.Int32, call *Call) *Result {
	start := time.Now()
	res := &Result{}

	fail := func(err error, resp *http.Response) *Result {
		cause := causeOf(err)
		if call.aborted.Load() {
			cause = CauseAborted
			err = fmt.Errorf("%w: %w", ErrAborted, err)
		}
		res.Status = StatusError
		if cause == CauseAborted {
			res.Status = StatusAbort
		}
		res.Err = &RequestError{
			Err:      err,
			Request:  httpReq,
			Response: resp,
			Retries:  int(retries.Load()),
			Cause:    cause,
		}
		return res
	}

	resp, err := c.executor(ctx, httpReq)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		res = fail(err, resp)
		c.logSettled(httpReq, res, start)
		return res
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.Header = resp.Header
	res.Body = body

	switch {
	case err != nil:
		res = fail(err, resp)
	case call.aborted.Load():
		res = fail(context.Canceled, resp)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		res = fail(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode), resp)
		res.Err.(*RequestError).Cause = CauseStatus
	default:
		res.Status = StatusSuccess
	}

	c.logSettled(httpReq, res, start)
	return res
}

// dispatch runs the callbacks. A call cancelled while its callbacks waited
// on the scheduler is delivered as aborted, whatever it settled with.
func (c *Client) dispatch(key string, call *Call, httpReq *http.Request, cb Callbacks) {
	run := func() {
		defer close(call.done)

		if call.aborted.Load() && call.result.Status != StatusAbort {
			call.result = abortedResult(httpReq, call.result)
		}
		res := call.result
		if res.OK() {
			c.invoke(cb.Success, res)
		} else {
			c.invoke(cb.Error, res)
		}
		for _, f := range cb.Complete {
			c.invoke(f, res)
		}
	}

	if c.scheduler == nil || !c.scheduler.Submit(key, run) {
		run()
	}
}

func abortedResult(httpReq *http.Request, settled *Result) *Result {
	retries := 0
	var reqErr *RequestError
	if errors.As(settled.Err, &reqErr) {
		retries = reqErr.Retries
	}
	return &Result{
		Status:     StatusAbort,
		StatusCode: settled.StatusCode,
		Header:     settled.Header,
		Err: &RequestError{
			Err:     ErrAborted,
			Request: httpReq,
			Retries: retries,
			Cause:   CauseAborted,
		},
	}
}

// invoke isolates callbacks from each other: a panic is logged and the
// remaining callbacks still run.
func (c *Client) invoke(f ResultFunc, res *Result) {
	if f == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("callback panicked",
				zap.Any("panic", r),
				zap.String("status", string(res.Status)),
			)
		}
	}()
	f(res)
}

func (c *Client) logSettled(req *http.Request, res *Result, start time.Time) {
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("status", string(res.Status)),
		zap.Int("status_code", res.StatusCode),
		zap.Duration("duration", time.Since(start)),
	}
	if res.Err != nil {
		var reqErr *RequestError
		if errors.As(res.Err, &reqErr) {
			fields = append(fields, zap.String("cause", reqErr.Cause))
		}
		fields = append(fields, zap.Error(res.Err))
	}
	c.logger.Debug("request settled", fields...)
}
