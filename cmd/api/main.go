package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/gyn-triage/cmd/mainconfig"
	"github.com/wolfman30/gyn-triage/internal/api/router"
	"github.com/wolfman30/gyn-triage/internal/app/bootstrap"
	"github.com/wolfman30/gyn-triage/internal/catalog"
	appconfig "github.com/wolfman30/gyn-triage/internal/config"
	"github.com/wolfman30/gyn-triage/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/gyn-triage/internal/http/middleware"
	"github.com/wolfman30/gyn-triage/internal/webchat"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting gyn-triage API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"clinic", cfg.ClinicName,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		var cfgErr *catalog.ConfigError
		if errors.As(err, &cfgErr) {
			logger.Error("invalid condition catalog", "source", cfgErr.Source, "condition_id", cfgErr.ConditionID, "error", cfgErr.Err)
		} else {
			logger.Error("server exited with error", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}

	rt, err := bootstrap.BuildRuntime(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newHandler(cfg, rt, logger),
		// No write timeout: chat turns and websockets can outlive any fixed limit,
		// TURN_TIMEOUT bounds the turns themselves.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srvErr := srv.Shutdown(shutdownCtx)
		return errors.Join(srvErr, rt.Close(shutdownCtx))
	})
	return g.Wait()
}

func newHandler(cfg *appconfig.Config, rt *bootstrap.Runtime, logger *logging.Logger) http.Handler {
	checks := make(map[string]router.HealthCheck, len(rt.Checks))
	for name, check := range rt.Checks {
		checks[name] = check
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.MessageRatePerMinute > 0 {
		limiter = httpmiddleware.NewRateLimiter(float64(cfg.MessageRatePerMinute)/60, cfg.MessageRatePerMinute)
	}
	if cfg.StaffJWTSecret == "" {
		logger.Warn("STAFF_JWT_SECRET not set; dashboard API is unauthenticated")
	}

	return router.New(&router.Config{
		Logger:             logger,
		Sessions:           handlers.NewSessionsHandler(rt.Sessions, rt.Runner, logger),
		Webchat:            webchat.NewHandler(rt.Runner, rt.Sessions, logger),
		MetricsHandler:     promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		StaffAuthSecret:    cfg.StaffJWTSecret,
		MessageLimiter:     limiter,
		HealthChecks:       checks,
	})
}
