// Package app wires the identity service together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deepak1410/task-management/pkg/database"
	"github.com/deepak1410/task-management/pkg/health"
	"github.com/deepak1410/task-management/pkg/identity"
	pkgkafka "github.com/deepak1410/task-management/pkg/kafka"
	"github.com/deepak1410/task-management/pkg/middleware"
	"github.com/deepak1410/task-management/pkg/revocation"
	"github.com/deepak1410/task-management/pkg/token"
	"github.com/deepak1410/task-management/pkg/tracing"
	"github.com/deepak1410/task-management/services/identity/internal/config"
	"github.com/deepak1410/task-management/services/identity/internal/event"
	handlerhttp "github.com/deepak1410/task-management/services/identity/internal/handler/http"
	"github.com/deepak1410/task-management/services/identity/internal/repository"
	"github.com/deepak1410/task-management/services/identity/internal/repository/postgres"
	"github.com/deepak1410/task-management/services/identity/internal/service"
	"github.com/deepak1410/task-management/services/identity/migrations"
)

// App wires together all dependencies and runs the identity service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error
}

// localDirectory resolves principals straight from the user repository. The
// identity service is its own directory; no HTTP round trip needed.
type localDirectory struct {
	users repository.UserRepository
}

func (d *localDirectory) GetByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	u, err := d.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return &identity.Identity{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}, nil
}

// NewApp creates the identity service: PostgreSQL repositories, Redis-backed
// revocation cache, Kafka producer, and the HTTP surface.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "identity",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	database.RegisterPoolMetrics(pool, "identity")

	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)

	users := postgres.NewUserRepository(pool)
	refreshTokens := postgres.NewRefreshTokenRepository(pool)
	emailTokens := postgres.NewEmailTokenRepository(pool)

	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	revocations := revocation.NewRedisStore(redisClient)
	events := event.NewProducer(producer, logger)

	authSvc := service.NewAuthService(users, refreshTokens, emailTokens, tokens, revocations, events, cfg.RevocationFallbackTTL, logger)
	userSvc := service.NewUserService(users, refreshTokens, logger)

	guard := &middleware.AuthGuard{
		Tokens:      tokens,
		Revocations: revocations,
		Directory:   &localDirectory{users: users},
		Logger:      logger,
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	authHandler := handlerhttp.NewAuthHandler(authSvc, cfg.RefreshTokenTTL, logger)
	userHandler := handlerhttp.NewUserHandler(userSvc, logger)
	router := handlerhttp.NewRouter(authHandler, userHandler, guard, healthHandler, logger)

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
		producer:       producer,
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

// Shutdown drains in-flight requests, closes the Kafka producer, then
// flushes pending spans.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
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
