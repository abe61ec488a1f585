// Package ui holds the application components that talk to each other over
// the event bus: the version poller, the user session, the sign-in button and
// the top-level view.
package ui

import (
	"github.com/seb7887/uibus/eventbus"
	"github.com/seb7887/uibus/httpx"
)

const (
	EventVersionReceived    = "AppInfo.Version.Received"
	EventVersionError       = "AppInfo.Version.AjaxError"
	EventSignedIn           = "GoogleAuth.SignedIn"
	EventSignedOut          = "GoogleAuth.SignedOut"
	EventSignInFailed       = "GoogleAuth.SignInFailed"
	EventTokenExchanged     = "GoogleAuth.TokenExchanged"
	EventTokenExchangeError = "GoogleAuth.TokenExchangeError"
)

// Bus is what components need from *eventbus.Bus.
type Bus interface {
	eventbus.Publisher
	eventbus.Subscriber
}

type VersionInfo struct {
	Version string `json:"version"`
	Title   string `json:"title"`
	Vendor  string `json:"vendor"`
}

// GoogleUser is the identity handed over by the sign-in provider.
type GoogleUser struct {
	IDToken string `json:"id_token"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// AdminUser is the session returned by the sign-in exchange.
type AdminUser struct {
	Token string `json:"token"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// AjaxError is published when a request of a component fails.
type AjaxError struct {
	Status     httpx.Status `json:"status"`
	StatusCode int          `json:"status_code"`
	Message    string       `json:"message"`
}

func ajaxError(res *httpx.Result) AjaxError {
	e := AjaxError{Status: res.Status, StatusCode: res.StatusCode}
	if res.Err != nil {
		e.Message = res.Err.Error()
	}
	return e
}

// SignInFailure carries the provider's reason.
type SignInFailure struct {
	Reason string `json:"reason"`
}

// payloadAs accepts both T and *T so payloads survive being relayed.
func payloadAs[T any](msg any) (T, bool) {
	switch v := msg.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}
