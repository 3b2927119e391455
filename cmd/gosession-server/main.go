// Command gosession-server serves the session token REST API backed by
// Redis and a SQL user store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/httpapi"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/userstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gosession-server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	base := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(base)
	logger := goSession.NewSlogLogger(base)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,

		ContextTimeoutEnabled: true,
	})
	defer rdb.Close()

	engineCfg := cfg.EngineConfig()
	hasher, err := goSession.NewPasswordHasher(engineCfg.Password)
	if err != nil {
		return err
	}
	users, err := userstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, hasher)
	if err != nil {
		return err
	}
	defer users.Close()

	engine, err := goSession.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithLogger(logger).
		WithAuditSink(goSession.NewSlogSink(logger.With("component", "audit"))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Ping(ctx); err != nil {
		logger.Warn(ctx, "redis not reachable at startup", "addr", cfg.Redis.Addr, "error", err)
	}

	opts := httpapi.Options{Logger: logger, TrustProxy: cfg.TrustProxy, Users: users}
	if cfg.MetricsEnabled {
		opts.Metrics = prometheus.NewExporter(engine).Handler()
	}

	handler := httpapi.NewHandler(engine, opts)
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler(handler)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", cfg.HTTPAddr, "db_driver", cfg.Database.Driver, "signed_fallback", engineCfg.JWT.Enabled)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
