package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/covid19india/internal/adapters/http/api"
	"github.com/okian/covid19india/internal/adapters/http/ratelimit"
	"github.com/okian/covid19india/internal/adapters/http/swagger"
	app "github.com/okian/covid19india/internal/app"
	"github.com/okian/covid19india/internal/config"
	"github.com/okian/covid19india/pkg/logger"
	"github.com/okian/covid19india/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		loggerInstance.Fatal(ctx, "failed to load config", logger.Error(err))
	}
	applyLogging(ctx, loggerInstance, cfg)
	metrics.Configure(metricsOptions(cfg)...)

	// Re-apply log settings when the config file changes.
	if err := config.Watch(ctx, func(c *config.Config, err error) {
		if err != nil {
			loggerInstance.Warn(ctx, "config reload failed", logger.Error(err))
			return
		}
		applyLogging(ctx, loggerInstance, c)
		loggerInstance.Info(ctx, "config reloaded", logger.String("log_level", c.LogLevel))
	}); err != nil {
		loggerInstance.Warn(ctx, "config watch disabled", logger.Error(err))
	}

	// Open the storage file; a missing file or schema ends the process.
	svc := app.New(
		app.WithLogger(loggerInstance.Named("service")),
		app.WithDBPath(cfg.DBPath),
		app.WithBusyTimeout(time.Duration(cfg.DBBusyTimeoutMS)*time.Millisecond),
	)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Fatal(ctx, "failed to start service", logger.Error(err))
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(ctx, cfg, svc, loggerInstance)

	// Start the HTTP server
	serverErrors := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		loggerInstance.Info(ctx, "shutting down server...")
	case err := <-serverErrors:
		loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// applyLogging sets the log format and level from cfg. An invalid level falls back to info.
func applyLogging(ctx context.Context, l logger.Logger, cfg *config.Config) {
	if err := logger.SetFormat(cfg.LogFormat, os.Stdout); err != nil {
		l.Warn(ctx, "invalid log_format; keeping current", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		l.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
}

// metricsOptions maps the metrics_* settings onto the metrics manager.
func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithEnvLabel(cfg.MetricsEnv),
		metrics.WithRefreshInterval(time.Duration(cfg.MetricsRefreshIntervalMS) * time.Millisecond),
	}
}

// newHTTPServer wires the API, docs and middleware into an http.Server.
// The rate limiter cleanup loop stops with ctx.
func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service, l logger.Logger) *http.Server {
	opts := []api.Option{
		api.WithLogger(l.Named("http")),
		api.WithAllowedOrigins(cfg.AllowedOrigins()),
		api.WithRoutes(func(r *mux.Router) { swagger.Register(r) }),
	}
	if cfg.RateLimitRPS > 0 {
		proxies, err := cfg.TrustedProxies()
		if err != nil {
			l.Warn(ctx, "ignoring rate_limit_trusted_proxies", logger.Error(err))
		}
		limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, ratelimit.WithTrustedProxies(proxies))
		go limiter.Run(ctx.Done())
		opts = append(opts, api.WithRateLimiter(limiter))
	}

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, svc, opts...).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval) // Update every 10 seconds
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the connection pool gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	// Update memory usage
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	// Update goroutine count
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	// Update GC pause time
	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	// GetStats refreshes the DB pool gauges as a side effect.
	_ = svc.GetStats()
}
