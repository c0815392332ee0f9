// @title shelfmark API
// @version 1.0
// @description Accounts, tokens and the authors/books catalog.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/shelfmark/backend/internal/client"
	"github.com/shelfmark/backend/internal/config"
	"github.com/shelfmark/backend/internal/db"
	"github.com/shelfmark/backend/internal/handler"
	"github.com/shelfmark/backend/internal/logger"
	"github.com/shelfmark/backend/internal/metrics"
	"github.com/shelfmark/backend/internal/service"
)

const (
	shutdownTimeout        = 10 * time.Second
	limiterCleanupInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	appLogger := logger.Setup(cfg.Log, os.Stdout)
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = appLogger.WithContext(ctx)

	databaseURL, err := db.BuildPostgresURL(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid postgres config")
	}
	if err := db.RunMigrations(databaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	store := db.NewPostgres(pool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	tokens, err := service.NewTokenManager(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid auth config")
	}
	hasher, err := service.NewBcryptHasher(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid auth config")
	}

	var idp service.IdentityProvider
	if cfg.OAuth.Enabled() {
		google, err := client.NewGoogleIdentityProvider(ctx, cfg.OAuth)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure google sign-in")
		}
		idp = google
		log.Info().Msg("google sign-in enabled")
	}

	authService := service.NewAuthService(store, hasher, tokens, recorder, idp)
	catalogService := service.NewCatalogService(store)

	cleaner, err := service.NewRevocationCleaner(store, cfg.Auth, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid auth config")
	}
	go cleaner.Run(ctx)

	limiter, err := handler.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit config")
	}
	go limiter.RunCleanup(limiterCleanupInterval, ctx.Done())

	router := handler.NewRouter(handler.RouterConfig{
		Auth:           authService,
		Catalog:        catalogService,
		DB:             store,
		Limiter:        limiter,
		Logger:         appLogger,
		Metrics:        recorder,
		MetricsHandler: metrics.Handler(registry),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
