package inflight

import (
	"context"
	"io"

	"github.com/seb7887/uibus/httpx"
)

// Request describes one asynchronous call. Complete callbacks run in order
// after Success or Error, whatever the outcome, aborts included.
type Request struct {
	Method string
	Target string

	Headers httpx.Headers
	Body    io.Reader

	// Key orders callbacks on the issuer's scheduler. Begin fills it with the
	// registry owner's id when empty.
	Key string

	Options []httpx.RequestOption

	Success  httpx.ResultFunc
	Error    httpx.ResultFunc
	Complete []httpx.ResultFunc
}

// Handle cancels an issued request. Cancel must be safe to call more than
// once and after the request has settled.
type Handle interface {
	Cancel()
}

// Issuer starts a request and returns without waiting for it. Every callback
// of req must eventually run exactly once, including on cancellation. An
// error means nothing was started; wrap httpx.ErrInvalidRequest when req
// itself is at fault.
type Issuer interface {
	Issue(ctx context.Context, req *Request) (Handle, error)
}

// HTTPIssuer issues requests through an httpx.Client.
type HTTPIssuer struct {
	client *httpx.Client
}

func NewHTTPIssuer(client *httpx.Client) *HTTPIssuer {
	return &HTTPIssuer{client: client}
}

func (i *HTTPIssuer) Issue(ctx context.Context, req *Request) (Handle, error) {
	call, err := i.client.Go(ctx, &httpx.Request{
		Method:  req.Method,
		Path:    req.Target,
		Headers: req.Headers,
		Body:    req.Body,
		Key:     req.Key,
		Options: req.Options,
	}, httpx.Callbacks{
		Success:  req.Success,
		Error:    req.Error,
		Complete: req.Complete,
	})
	if err != nil {
		return nil, err
	}
	return call, nil
}
