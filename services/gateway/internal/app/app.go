package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deepak1410/task-management/pkg/database"
	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/pkg/health"
	"github.com/deepak1410/task-management/pkg/httpclient"
	"github.com/deepak1410/task-management/pkg/identity"
	"github.com/deepak1410/task-management/pkg/revocation"
	"github.com/deepak1410/task-management/pkg/token"
	"github.com/deepak1410/task-management/pkg/tracing"
	"github.com/deepak1410/task-management/services/gateway/internal/config"
	"github.com/deepak1410/task-management/services/gateway/internal/handler"
	gwmiddleware "github.com/deepak1410/task-management/services/gateway/internal/middleware"
	"github.com/deepak1410/task-management/services/gateway/internal/proxy"
)

// App wires together all dependencies and runs the API gateway.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates the gateway: Redis-backed revocation cache, directory
// client, edge authentication pipeline, rate limiter, and reverse proxies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "gateway",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	revocations := revocation.NewRedisStore(redisClient)

	directoryHTTP := httpclient.New(httpclient.Config{
		Timeout:         cfg.DirectoryTimeout,
		MaxRetries:      1,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    500 * time.Millisecond,
		MaxConnsPerHost: 50,
	})
	directory := identity.NewHTTPDirectory(
		httpclient.NewCircuitBreakerClient(directoryHTTP, httpclient.DefaultCircuitBreakerConfig("identity-directory"), logger),
		cfg.IdentityServiceURL,
	)

	edgeAuth := gwmiddleware.NewEdgeAuth(tokens, revocations, directory, cfg.WhitelistPatterns, cfg.DirectoryTimeout, logger)

	routeRates, err := cfg.RouteRates()
	if err != nil {
		return nil, err
	}
	limiter := gwmiddleware.NewRateLimiter(
		config.RouteRate{ReplenishRate: cfg.RateLimitReplenish, Burst: cfg.RateLimitBurst},
		routeRates,
		logger,
	)

	sp := proxy.NewServiceProxy(cfg, logger)

	// The revocation cache is critical: without it the gateway would have
	// to reject every request anyway.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("identity", func(ctx context.Context) error {
		// A not-found answer still proves the directory is reachable.
		_, err := directory.GetByUsername(ctx, "healthcheck-probe")
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return nil
	})

	router := handler.NewRouter(cfg, sp, limiter, edgeAuth, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown drains in-flight requests, then flushes pending spans.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
