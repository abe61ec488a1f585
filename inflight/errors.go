package inflight

import "errors"

var (
	// ErrMalformedRequest is returned by Begin for a request that cannot be
	// built: missing method or target, or one the issuer rejects with
	// httpx.ErrInvalidRequest. Transport failures go to the request's Error
	// callback instead.
	ErrMalformedRequest = errors.New("inflight: malformed request")

	// ErrNotIssued is returned by Begin when the issuer refuses a well-formed
	// request for any other reason.
	ErrNotIssued = errors.New("inflight: request not issued")

	// ErrNoIssuer is returned by Begin on a registry built without an Issuer.
	ErrNoIssuer = errors.New("inflight: no issuer")
)
