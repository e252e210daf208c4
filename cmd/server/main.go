package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/config"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/handler"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/jobs"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/middleware"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/redis"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/service"
	"github.com/lihengcn/GeminiEligibilityCheck/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	healthChecks := map[string]handler.HealthCheck{}
	if b.db != nil {
		healthChecks["database"] = b.db.Ping
	}

	var limiter middleware.Limiter = middleware.NewRateLimiter()
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process rate limiter")
		} else {
			defer redisClient.Close()
			log.Info().Msg("redis connected")
			limiter = middleware.NewRedisRateLimiter(redisClient.Client)
			healthChecks["redis"] = redisClient.HealthCheck
		}
	}

	allowOverwrite := b.accounts.Backend() == storage.BackendSnapshot || cfg.PGAllowOverwrite

	poolService := service.NewPoolService(b.accounts)
	importService := service.NewImportService(b.accounts, allowOverwrite)
	verifyService := service.NewVerificationService(b.journal, b.accounts)

	workerRateLimit := middleware.NewWorkerRateLimitMiddleware(limiter, cfg.ClaimRateLimitPerMin)
	adminAuth := middleware.NewAdminAuthMiddleware(cfg.AdminPasswordHash)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(cfg.Production)
	if !adminAuth.Enabled() {
		log.Warn().Msg("ADMIN_PASSWORD_HASH not set: operator routes are open")
	}

	poolHandler := handler.NewPoolHandler(
		poolService, importService, verifyService,
		workerRateLimit.Handler, adminAuth.Handler, cfg.MaxImportBytes,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(securityHeaders.Handler)

	r.Get("/health", handler.Health(b.accounts.Backend(), healthChecks))
	r.Mount("/api", poolHandler.Routes())

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("backend", b.accounts.Backend()).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if interval := cfg.StaleSweepInterval(); interval > 0 {
		sweeper := jobs.NewStaleClaimSweeper(poolService, interval)
		sweeper.Start()
		g.Go(func() error {
			<-gctx.Done()
			sweeper.Stop()
			return nil
		})
	}

	return g.Wait()
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
