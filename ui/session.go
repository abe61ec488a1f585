package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/seb7887/uibus/eventbus"
	"github.com/seb7887/uibus/httpx"
	"github.com/seb7887/uibus/inflight"
	"go.uber.org/zap"
)

const SignInPath = "/_api/sign-in"

// UserSession exchanges the provider's id token for an admin session token
// when the user signs in, and forgets it when the user signs out.
//
// The token store it fills is the credential source of every registry
// sharing it, so requests begun after the exchange carry the new token.
type UserSession struct {
	bus      Bus
	owner    *eventbus.Owner
	tokens   *inflight.TokenStore
	registry *inflight.Registry
	logger   *zap.Logger

	mu  sync.Mutex
	ctx context.Context
	// generation moves on at every sign-out and on Destroy; an exchange
	// begun under an older generation is stale.
	generation uint64
}

func NewUserSession(bus Bus, issuer inflight.Issuer, tokens *inflight.TokenStore, opts ...Option) *UserSession {
	o := newOptions(opts)
	owner := eventbus.NewOwner("user-session")

	return &UserSession{
		bus:      bus,
		owner:    owner,
		tokens:   tokens,
		registry: inflight.New(owner, issuer, tokens, o.registryOptions()...),
		logger:   o.logger.Named("session"),
	}
}

func (s *UserSession) Init(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.bus.Subscribe(EventSignedIn, s.owner, eventbus.ReceiverFunc(s.signedIn))
	s.bus.Subscribe(EventSignedOut, s.owner, eventbus.ReceiverFunc(s.signedOut))
}

func (s *UserSession) Destroy() {
	s.bus.UnsubscribeAll(s.owner)
	s.invalidate()
	s.registry.Abort()
}

func (s *UserSession) Owner() *eventbus.Owner {
	return s.owner
}

func (s *UserSession) signedIn(_ context.Context, msg any) {
	user, ok := payloadAs[GoogleUser](msg)
	if !ok || user.IDToken == "" {
		s.logger.Warn("sign-in without id token", zap.Any("payload", msg))
		return
	}

	s.mu.Lock()
	ctx, generation := s.ctx, s.generation
	s.mu.Unlock()

	form := url.Values{"gtoken": {user.IDToken}}
	err := s.registry.Begin(ctx, &inflight.Request{
		Method:  http.MethodPost,
		Target:  SignInPath,
		Headers: httpx.Headers{"Content-Type": "application/x-www-form-urlencoded", "Accept": "application/json"},
		Body:    strings.NewReader(form.Encode()),
		Options: []httpx.RequestOption{httpx.WithoutRetry()},
		Success: func(res *httpx.Result) {
			if !s.current(generation) {
				return
			}
			var admin AdminUser
			if err := json.Unmarshal(res.Body, &admin); err != nil || admin.Token == "" {
				s.logger.Warn("undecodable sign-in response", zap.Error(err))
				s.bus.Publish(ctx, EventTokenExchangeError, AjaxError{
					Status:     httpx.StatusError,
					StatusCode: res.StatusCode,
					Message:    "no session token in response",
				})
				return
			}
			if !s.store(generation, admin.Token) {
				return
			}
			s.bus.Publish(ctx, EventTokenExchanged, admin)
		},
		Error: func(res *httpx.Result) {
			if res.Status == httpx.StatusAbort || !s.current(generation) {
				return
			}
			s.bus.Publish(ctx, EventTokenExchangeError, ajaxError(res))
		},
	})
	if err != nil {
		s.logger.Error("cannot exchange token", zap.Error(err))
	}
}

func (s *UserSession) signedOut(context.Context, any) {
	s.mu.Lock()
	s.generation++
	s.tokens.Clear()
	s.mu.Unlock()

	s.registry.Abort()
}

func (s *UserSession) invalidate() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

func (s *UserSession) current(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == generation
}

// store sets the token unless the exchange went stale; the check and the
// write share the lock with signedOut.
func (s *UserSession) store(generation uint64, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return false
	}
	s.tokens.Set(token)
	return true
}
