package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirtransform/internal/config"
	"github.com/ehr/fhirtransform/internal/domain/bundle"
	"github.com/ehr/fhirtransform/internal/domain/transform"
	"github.com/ehr/fhirtransform/internal/platform/auth"
	"github.com/ehr/fhirtransform/internal/platform/db"
	"github.com/ehr/fhirtransform/internal/platform/metrics"
	"github.com/ehr/fhirtransform/internal/platform/middleware"
	"github.com/ehr/fhirtransform/internal/platform/openapi"
	"github.com/ehr/fhirtransform/internal/platform/websocket"
)

const shutdownTimeout = 10 * time.Second

// newServer builds the echo instance with the full middleware chain and
// every route mounted.
func newServer(cfg *config.Config, logger zerolog.Logger, st *store, svc *transform.Service, hub *websocket.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.CORS(cfg.CORSOrigins))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/api/events"))
	}

	var guard []echo.MiddlewareFunc
	if cfg.AuthEnabled() {
		guard = append(guard, auth.JWTMiddleware(auth.JWTConfig{
			Secret:  []byte(cfg.AuthJWTSecret),
			JWKSURL: cfg.AuthJWKSURL,
			Issuer:  cfg.AuthIssuer,
		}))
	}

	e.GET("/health", db.HealthHandler(cfg.StoreBackend, st.repo, st.pool))
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api")
	fhirGroup := e.Group("/fhir")

	transform.NewHandler(svc).RegisterRoutes(api, fhirGroup, guard...)
	bundle.NewHandler(st.repo, logger).RegisterRoutes(api, fhirGroup, guard...)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(api, guard...)
	openapi.NewGenerator(version, "").RegisterRoutes(api)

	return e
}

func runServer(applyMigrations bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if !cfg.AuthEnabled() {
		logger.Warn().Msg("AUTH_JWT_SECRET and AUTH_JWKS_URL are unset; API routes are unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open bundle store")
		return err
	}
	defer st.Close()

	if applyMigrations && st.pool != nil {
		n, err := newMigrator(st.pool, cfg.MigrationsDir).Up(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	hub := websocket.NewHub(logger)
	pub, closePubs, err := openPublishers(cfg, logger, hub)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set up notifications")
		return err
	}
	defer closePubs()

	svc := transform.NewService(transform.NewTransformer(), st.repo, pub, logger)
	e := newServer(cfg, logger, st, svc, hub)

	go metrics.StartSystemCollector(ctx, cfg.SystemMetricsInterval, logger)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error().Err(err).Msg("server error")
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	svc.Wait()
	logger.Info().Msg("server stopped")
	return nil
}
