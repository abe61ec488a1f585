package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/seb7887/uibus/api"
	"github.com/seb7887/uibus/httpx"
	"github.com/seb7887/uibus/httpx/policy"
	"github.com/seb7887/uibus/sietch"
)

func newServeCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the version, sign-in and user endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), app.cfg, app.logger)
		},
	}
}

func runServe(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()

	sessions, closeSessions, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cfg, registry, logger)
	if err != nil {
		return multierr.Append(err, closeSessions())
	}

	srv := api.NewServer(
		api.AppVersion{
			Version: cfg.App.Version,
			Title:   cfg.App.Title,
			Vendor:  cfg.App.Vendor,
		},
		sessions,
		verifier,
		api.WithLogger(logger),
		api.WithRegistry(registry),
	)

	err = srv.Run(ctx, cfg.Server.Addr)
	logger.Info("api stopped", zap.Error(err))
	return multierr.Append(err, closeSessions())
}

func newSessionStore(ctx context.Context, cfg *Config, logger *zap.Logger) (api.SessionStore, func() error, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("sessions kept in memory", zap.Duration("ttl", cfg.Server.SessionTTL))
		store := sietch.NewInMemoryConnector[api.Session, string](api.SessionID, sietch.WithTTL(cfg.Server.SessionTTL))
		return store, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err), client.Close())
	}
	logger.Info("sessions kept in redis", zap.String("addr", cfg.Redis.Addr))

	store := sietch.NewRedisConnector[api.Session, string](client, cfg.Server.SessionTTL, api.SessionID, func(token string) string {
		return "uibus:session:" + token
	})
	return store, client.Close, nil
}

func newVerifier(cfg *Config, registry prometheus.Registerer, logger *zap.Logger) (api.TokenVerifier, error) {
	if len(cfg.Server.DevTokens) > 0 {
		logger.Warn("accepting development id tokens only", zap.Int("tokens", len(cfg.Server.DevTokens)))
		return devIdentities(cfg.Server.DevTokens)
	}

	client := httpx.NewClient(
		httpx.WithRetry(policy.RetryConfig{MaxAttempts: 2}),
		httpx.WithTimeout(policy.TimeoutConfig{Request: cfg.Client.RequestTimeout}),
		httpx.WithMetrics(registry),
		httpx.WithLogger(logger),
	)
	return api.NewTokenInfoVerifier(client, cfg.Server.TokenInfoURL, cfg.Server.Audience), nil
}
