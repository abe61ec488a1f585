package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/seb7887/uibus/eventbus"
	"github.com/seb7887/uibus/ginsrv"
	"github.com/seb7887/uibus/httpx"
	"github.com/seb7887/uibus/httpx/backoff"
	"github.com/seb7887/uibus/httpx/policy"
	"github.com/seb7887/uibus/inflight"
	"github.com/seb7887/uibus/ui"
	"github.com/seb7887/uibus/wp"
)

const _callbackQueue = 64

func newWatchCmd(app *application) *cobra.Command {
	var idToken string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the ui components headless against an API and log what they render",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), app.cfg, app.logger, idToken)
		},
	}
	cmd.Flags().StringVar(&idToken, "id-token", "", "sign in with this id token once started")
	return cmd
}

// component is torn down in reverse start order.
type component interface {
	Destroy()
}

type componentFunc func()

func (f componentFunc) Destroy() { f() }

func runWatch(ctx context.Context, cfg *Config, logger *zap.Logger, idToken string) (err error) {
	registry := prometheus.NewRegistry()

	pool := wp.NewPool(cfg.Client.Workers, _callbackQueue, wp.WithLogger(logger))
	defer pool.Stop()

	bus := eventbus.New(
		eventbus.WithLogger(logger),
		eventbus.WithMetrics(eventbus.NewMetrics(registry)),
		eventbus.WithRecover(),
	)

	client := httpx.NewClient(
		httpx.WithBaseURL(cfg.Client.BaseURL),
		httpx.WithRetry(policy.RetryConfig{
			MaxAttempts:    cfg.Client.RetryAttempts,
			Backoff:        backoff.NewExponentialBackoff(),
			OnlyIdempotent: true,
		}),
		httpx.WithTimeout(policy.TimeoutConfig{Request: cfg.Client.RequestTimeout}),
		httpx.WithMetrics(registry),
		httpx.WithRequestIDs(),
		httpx.WithScheduler(pool),
		httpx.WithLogger(logger),
	)
	issuer := inflight.NewHTTPIssuer(client)
	tokens := &inflight.TokenStore{}
	opts := []ui.Option{
		ui.WithLogger(logger),
		ui.WithRegistryMetrics(inflight.NewMetrics(registry)),
	}

	var started []component
	defer func() {
		for i := len(started) - 1; i >= 0; i-- {
			started[i].Destroy()
		}
	}()

	journal := eventbus.NewOwner("journal")
	for _, eventType := range []string{ui.EventSignInFailed, ui.EventTokenExchangeError} {
		bus.SubscribeFunc(eventType, journal, func(_ context.Context, msg any) {
			logger.Warn("event", zap.String("event_type", eventType), zap.Any("payload", msg))
		})
	}
	started = append(started, componentFunc(func() { bus.UnsubscribeAll(journal) }))

	top := ui.NewTopLevel(bus, func(view string) {
		logger.Info("render", zap.String("view", view))
	}, opts...)
	top.Mount()
	started = append(started, componentFunc(top.Unmount))

	session := ui.NewUserSession(bus, issuer, tokens, opts...)
	session.Init(ctx)
	started = append(started, session)

	poller := ui.NewAppInfoPoller(bus, issuer, tokens, cfg.Client.PollInterval, opts...)
	poller.Init(ctx)
	started = append(started, poller)

	if cfg.Nats.URL != "" {
		closeRelay, relayErr := startRelay(bus, cfg.Nats, logger)
		if relayErr != nil {
			return relayErr
		}
		defer func() {
			err = multierr.Append(err, closeRelay())
		}()
	}

	if cfg.Client.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.Client.MetricsAddr, registry, logger)
	}

	if idToken != "" {
		ui.NewSignIn(bus).SignedIn(ctx, ui.GoogleUser{IDToken: idToken})
	}

	<-ctx.Done()
	logger.Info("shutting down", zap.Int("components", len(started)))
	return nil
}

// startRelay mirrors the configured event types over NATS. The returned func
// drops the relay subscriptions and drains the connection.
func startRelay(bus *eventbus.Bus, cfg NatsConfig, logger *zap.Logger) (func() error, error) {
	relay, nc, err := eventbus.ConnectNats(bus, cfg.URL,
		eventbus.WithSubjectPrefix(cfg.SubjectPrefix),
		eventbus.WithRelayLogger(logger),
		eventbus.WithDecoder(ui.EventVersionReceived, eventbus.DecodeAs[ui.VersionInfo]()),
		eventbus.WithDecoder(ui.EventVersionError, eventbus.DecodeAs[ui.AjaxError]()),
		eventbus.WithDecoder(ui.EventSignedIn, eventbus.DecodeAs[ui.GoogleUser]()),
		eventbus.WithDecoder(ui.EventSignInFailed, eventbus.DecodeAs[ui.SignInFailure]()),
		eventbus.WithDecoder(ui.EventTokenExchanged, eventbus.DecodeAs[ui.AdminUser]()),
		eventbus.WithDecoder(ui.EventTokenExchangeError, eventbus.DecodeAs[ui.AjaxError]()),
	)
	if err != nil {
		return nil, err
	}

	relay.Forward(cfg.Forward...)
	if err := relay.Ingest(cfg.Ingest...); err != nil {
		return nil, multierr.Append(err, relay.Close())
	}

	logger.Info("relaying events",
		zap.String("url", cfg.URL),
		zap.Strings("forward", cfg.Forward),
		zap.Strings("ingest", cfg.Ingest),
	)

	return func() error {
		return multierr.Append(relay.Close(), nc.Drain())
	}, nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *zap.Logger) {
	router := ginsrv.SetupRouter([]ginsrv.Route{{
		Method:  http.MethodGet,
		Path:    "/metrics",
		Handler: gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	}}, ginsrv.RecoveryMiddleware(logger))

	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", zap.Error(err))
	}
}
