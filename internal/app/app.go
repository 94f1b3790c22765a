// Package app wires configuration, storage, the license service, and the
// HTTP server into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"formlens/internal/config"
	"formlens/internal/instance"
	"formlens/internal/license"
	"formlens/internal/middleware"
	transporthttp "formlens/internal/transport/http"
	"formlens/internal/usage"
)

// Application holds the assembled components.
type Application struct {
	cfg     *config.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	license *license.Service
	server  *http.Server
}

// NewApplication assembles the application from configuration.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	metrics, err := license.NewMetrics(meterProvider.Meter(license.MeterName))
	if err != nil {
		return nil, fmt.Errorf("create license metrics: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	identity := instance.NewProvider(cfg.License.InstanceID, cfg.License.InstanceIDFile, logger)
	responses := usage.NewResponseStore(pool)

	licenseService, err := license.NewService(license.ServiceConfig{
		LicenseKey: cfg.License.Key,
		Endpoint:   cfg.License.Endpoint(),
		ProxyURL:   cfg.License.ProxyURL,
		Disabled:   cfg.License.Disabled,
		BuildPhase: cfg.License.BuildPhase,
		Usage:      responses,
		Instance:   identity,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create license service: %w", err)
	}

	app := &Application{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		license: licenseService,
	}
	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.InfoContext(ctx, "application initialized",
		slog.Int("port", cfg.Server.Port),
		slog.String("license_environment", cfg.License.Environment),
		slog.Bool("license_configured", cfg.License.Key != ""),
		slog.Bool("license_disabled", cfg.License.Disabled),
	)

	return app, nil
}

// License exposes the license service to embedding callers.
func (a *Application) License() *license.Service {
	return a.license
}

func (a *Application) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	rateLimiter := middleware.NewRateLimiter(a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst, a.logger)
	licenseHandler := transporthttp.NewLicenseHandler(a.license, a.logger)

	r.Route("/api/license", func(r chi.Router) {
		r.Use(rateLimiter.Handler)
		r.Mount("/", licenseHandler.Routes())
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.pool.Close()
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
