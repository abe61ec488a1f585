// Package api is the HTTP backend the ui components talk to.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seb7887/uibus/ginsrv"
	"github.com/seb7887/uibus/idgen"
	"github.com/seb7887/uibus/sietch"
	"go.uber.org/zap"
)

type AppVersion struct {
	Version string `json:"version"`
	Title   string `json:"title"`
	Vendor  string `json:"vendor"`
}

type Session struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject,omitempty"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore is satisfied by the sietch connectors.
type SessionStore = sietch.Repository[Session, string]

func SessionID(s *Session) string { return s.Token }

type Server struct {
	version  AppVersion
	sessions SessionStore
	verifier TokenVerifier
	logger   *zap.Logger
	registry *prometheus.Registry
	engine   *gin.Engine
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.Named("api")
		}
	}
}

// WithRegistry serves registry on /metrics and counts requests in it.
func WithRegistry(r *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

func NewServer(version AppVersion, sessions SessionStore, verifier TokenVerifier, opts ...Option) *Server {
	s := &Server{
		version:  version,
		sessions: sessions,
		verifier: verifier,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	middlewares := []gin.HandlerFunc{
		ginsrv.ErrorFormatterMiddleware(),
		ginsrv.RecoveryMiddleware(s.logger),
		ginsrv.LoggerMiddleware(s.logger),
		ginsrv.RequestIDMiddleware(),
	}
	routes := []ginsrv.Route{
		{Method: http.MethodGet, Path: "/_api/info/version", Handler: s.getVersion},
		{Method: http.MethodPost, Path: "/_api/sign-in", Handler: s.signIn},
		{
			Method:      http.MethodGet,
			Path:        "/_api/user",
			Handler:     s.getUser,
			Middlewares: []gin.HandlerFunc{ginsrv.BearerAuth(s.lookupSession)},
		},
		{
			Method:      http.MethodPost,
			Path:        "/_api/sign-out",
			Handler:     s.signOut,
			Middlewares: []gin.HandlerFunc{ginsrv.BearerAuth(s.lookupSession)},
		},
	}
	if s.registry != nil {
		middlewares = append(middlewares, ginsrv.MetricsMiddleware(s.registry))
		routes = append(routes, ginsrv.Route{
			Method:  http.MethodGet,
			Path:    "/metrics",
			Handler: gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})),
		})
	}

	s.engine = ginsrv.SetupRouter(routes, middlewares...)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) getVersion(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store")

	switch c.NegotiateFormat(gin.MIMEJSON, gin.MIMEPlain) {
	case gin.MIMEPlain:
		c.String(http.StatusOK, s.version.Version)
	default:
		c.JSON(http.StatusOK, s.version)
	}
}

func (s *Server) signIn(c *gin.Context) {
	idToken := c.PostForm("gtoken")
	if idToken == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	identity, err := s.verifier.Verify(c.Request.Context(), idToken)
	if err != nil {
		s.logger.Info("sign-in refused", zap.Error(err), zap.String("request_id", ginsrv.RequestID(c)))
		c.Status(http.StatusForbidden)
		return
	}

	session := &Session{
		Token:     idgen.NewUUID(),
		Subject:   identity.Subject,
		Email:     identity.Email,
		Name:      identity.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(c.Request.Context(), session); err != nil {
		s.logger.Error("cannot store session", zap.Error(err))
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}

	s.logger.Info("signed in", zap.String("email", session.Email))
	c.JSON(http.StatusOK, gin.H{
		"token": session.Token,
		"email": session.Email,
		"name":  session.Name,
	})
}

func (s *Server) getUser(c *gin.Context) {
	session := mustSession(c)
	c.JSON(http.StatusOK, gin.H{
		"email": session.Email,
		"name":  session.Name,
	})
}

func (s *Server) signOut(c *gin.Context) {
	session := mustSession(c)
	if err := s.sessions.Delete(c.Request.Context(), session.Token); err != nil && !errors.Is(err, sietch.ErrItemNotFound) {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) lookupSession(c *gin.Context, token string) (any, bool) {
	session, err := s.sessions.Get(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, sietch.ErrItemNotFound) {
			s.logger.Error("session lookup failed", zap.Error(err))
		}
		return nil, false
	}
	return session, true
}

func mustSession(c *gin.Context) *Session {
	p, _ := ginsrv.Principal(c)
	return p.(*Session)
}
