// The server binary keeps the materialization engine resident and exposes it
// over HTTP: an open status probe, an authenticated run trigger, and recent
// run history. Cron-style deployments that only need one pass per invocation
// should use cmd/scheduler instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rotaforge/scheduler/internal/config"
	"github.com/rotaforge/scheduler/internal/engine"
	schedhttp "github.com/rotaforge/scheduler/internal/http"
	"github.com/rotaforge/scheduler/internal/http/handler"
	"github.com/rotaforge/scheduler/internal/http/middleware"
	"github.com/rotaforge/scheduler/internal/keygen"
	"github.com/rotaforge/scheduler/internal/observability"
	"github.com/rotaforge/scheduler/internal/retry"
	"github.com/rotaforge/scheduler/internal/storage/archive"
	"github.com/rotaforge/scheduler/internal/storage/postgres"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		// Stderr rather than slog: config may have failed before the
		// logger existed.
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Engine.Location()
	if err != nil {
		return fmt.Errorf("failed to load session time zone: %w", err)
	}

	// Root context for all normal operations; cancelled on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lp, logger, err := observability.InitLogger(ctx, cfg.Observability.ServiceName, version, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() {
		// Bounded so an unreachable collector cannot hang shutdown.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown logger provider", "error", err)
		}
	}()
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, cfg.Observability.ServiceName, version, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown tracer provider", "error", err)
		}
	}()

	mp, err := observability.InitMeterProvider(ctx, cfg.Observability.ServiceName, version, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown meter provider", "error", err)
		}
	}()

	slog.InfoContext(ctx, "starting shift scheduler server", "version", version)

	store, err := postgres.New(ctx, cfg.Database,
		postgres.WithLogger(logger),
		postgres.WithRetryConfig(retry.Config{
			MaxAttempts: cfg.Engine.MaxRetries,
			BaseDelay:   cfg.Engine.RetryBaseDelay,
		}),
		postgres.WithTimeouts(cfg.Engine.QueryTimeout, cfg.Engine.BulkTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	slog.InfoContext(ctx, "storage initialized", "dsn", maskPassword(cfg.Database.DSN))

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	switch {
	case cfg.Archive.Bucket != "":
		archiver, err := archive.NewAuditArchiver(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix)
		if err != nil {
			return fmt.Errorf("failed to create audit archiver: %w", err)
		}
		defer func() {
			if err := archiver.Close(); err != nil {
				slog.Error("failed to close archiver", "error", err)
			}
		}()
		engineOpts = append(engineOpts, engine.WithArchiver(archiver))
		slog.InfoContext(ctx, "audit archival enabled", "bucket", cfg.Archive.Bucket)
	case cfg.Archive.Dir != "":
		archiver, err := archive.NewFileArchiver(cfg.Archive.Dir)
		if err != nil {
			return fmt.Errorf("failed to create audit archiver: %w", err)
		}
		engineOpts = append(engineOpts, engine.WithArchiver(archiver))
		slog.InfoContext(ctx, "audit archival enabled", "dir", cfg.Archive.Dir)
	}

	eng := engine.New(store, engine.Config{
		AdvanceDays:          cfg.Engine.AdvanceDays,
		MonthsAhead:          cfg.Engine.MonthlyMonthsAhead,
		DeleteBatchSize:      cfg.Engine.DeleteBatchSize,
		InsertBatchSize:      cfg.Engine.InsertBatchSize,
		SleepBetweenBatches:  cfg.Engine.SleepBetweenBatches,
		HistoryRetentionDays: cfg.Engine.HistoryRetentionDays,
		AuditRetentionDays:   cfg.Engine.AuditRetentionDays,
		JobName:              cfg.Engine.JobName,
		SessionStaleAfter:    cfg.Engine.SessionStaleAfter,
		Location:             loc,
	}, engineOpts...)

	srv := handler.NewServer(eng, store, version, loc)
	auth := middleware.NewAuth(cfg.HTTP.APIKey)
	router := schedhttp.NewRouter(srv, auth, cfg.HTTP.MaxBodyBytes)
	slog.InfoContext(ctx, "trigger authentication enabled", "key", keygen.Mask(cfg.HTTP.APIKey))

	server := &http.Server{
		Addr: cfg.HTTP.Addr(),
		// otelhttp wraps the whole router so every route gets a server
		// span and request metrics.
		Handler:           otelhttp.NewHandler(router, cfg.Observability.ServiceName),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		// WriteTimeout stays zero: a triggered run holds its response
		// open until the engine finishes.
	}

	errResult := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")

		// Fresh context: the main one is already cancelled, but draining
		// still needs a timeout window.
		shutdownCtx, cancel := newShutdownContext(cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown HTTP server", "error", err)
		} else {
			slog.InfoContext(shutdownCtx, "HTTP server shutdown complete")
		}
		return nil
	case err := <-errResult:
		return err
	}
}

// newShutdownContext creates a fresh timeout context for shutdown work.
func newShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// maskPassword masks the password in a connection string for logging.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		// If parsing fails, fall back to full redaction to be safe.
		return "[REDACTED]"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "xxxxxx")
	}
	return u.String()
}
