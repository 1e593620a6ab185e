// The scheduler binary runs one materialization pass and exits. It is meant
// to be invoked from cron or a Kubernetes CronJob; long-running deployments
// should use cmd/server instead.
//
// Exit codes: 0 when the run completed, 1 when it was cancelled by a signal,
// 2 for everything else, including a run blocked by another holder.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rotaforge/scheduler/internal/config"
	"github.com/rotaforge/scheduler/internal/engine"
	"github.com/rotaforge/scheduler/internal/observability"
	"github.com/rotaforge/scheduler/internal/retry"
	"github.com/rotaforge/scheduler/internal/storage/archive"
	"github.com/rotaforge/scheduler/internal/storage/postgres"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// errRunCancelled marks a signal-interrupted run so main can exit 1
// instead of 2.
var errRunCancelled = errors.New("run cancelled")

var (
	flagCompanyID   int64
	flagTemplateID  int64
	flagAdvanceDays int
	flagMonthsAhead int
	flagReset       bool
)

var rootCmd = &cobra.Command{
	Use:   "scheduler [base-date]",
	Short: "Materialize shifts from recurring templates",
	Long: `scheduler expands active recurring templates into concrete shifts,
retracts shifts whose templates were deactivated or reset, and records an
audit row for every decision.

The optional base-date argument overrides "now" as the run's base instant.
It accepts RFC 3339 or YYYY-MM-DD; a bare date is read in the configured
session time zone. Configuration comes from SCHEDULER_* environment
variables.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScheduler,
}

func init() {
	rootCmd.Flags().Int64Var(&flagCompanyID, "company", 0, "narrow the run to one company id")
	rootCmd.Flags().Int64Var(&flagTemplateID, "template", 0, "narrow the run to one template id")
	rootCmd.Flags().IntVar(&flagAdvanceDays, "advance-days", 0, "override the weekly horizon in days")
	rootCmd.Flags().IntVar(&flagMonthsAhead, "months-ahead", 0, "override the monthly horizon in months")
	rootCmd.Flags().BoolVar(&flagReset, "reset", false, "retract and regenerate the narrowed templates' future shifts")
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errRunCancelled) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := setup(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	var base time.Time
	if len(args) == 1 {
		base, err = parseBaseTime(args[0], app.location)
		if err != nil {
			return err
		}
	}

	summary, err := app.engine.Run(ctx, engine.RunOptions{
		BaseTime:    base,
		CompanyID:   flagCompanyID,
		TemplateID:  flagTemplateID,
		AdvanceDays: flagAdvanceDays,
		MonthsAhead: flagMonthsAhead,
		Reset:       flagReset,
	})
	switch {
	case err == nil:
		slog.InfoContext(ctx, "run completed",
			"run_id", summary.RunID,
			"created", summary.Created,
			"duplicates", summary.Duplicates,
			"overlaps", summary.Overlaps,
			"errors", summary.Errors,
			"retracted", summary.Retracted,
			"duration_s", summary.DurationSec)
		return nil
	case errors.Is(err, context.Canceled):
		if summary == nil {
			return errRunCancelled
		}
		return fmt.Errorf("%w after %.1fs", errRunCancelled, summary.DurationSec)
	default:
		return err
	}
}

// parseBaseTime accepts an RFC 3339 instant or a bare date. A bare date is
// midnight in loc so the run lands on the calendar day the operator named.
func parseBaseTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid base date %q: use RFC 3339 or YYYY-MM-DD", raw)
}

// app holds everything a subcommand needs after setup. Close releases the
// pieces in reverse order of acquisition.
type app struct {
	location *time.Location
	store    *postgres.Store
	engine   *engine.Engine

	archiver *archive.AuditArchiver
	closers  []func()
}

func (a *app) Close() {
	if a.archiver != nil {
		if err := a.archiver.Close(); err != nil {
			slog.Error("failed to close archiver", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setup loads configuration, initializes observability, and wires the store
// and engine. Callers own the returned app and must Close it.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadSchedulerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Engine.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load session time zone: %w", err)
	}

	a := &app{location: loc}

	lp, logger, err := observability.InitLogger(ctx, cfg.Observability.ServiceName, version, cfg.Observability.OTelEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	a.closers = append(a.closers, func() {
		// Bounded so an unreachable collector cannot hang exit.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown logger provider", "error", err)
		}
	})
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, cfg.Observability.ServiceName, version, cfg.Observability.OTelEnabled)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init tracer provider: %w", err)
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown tracer provider", "error", err)
		}
	})

	mp, err := observability.InitMeterProvider(ctx, cfg.Observability.ServiceName, version, cfg.Observability.OTelEnabled)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init meter provider: %w", err)
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown meter provider", "error", err)
		}
	})

	store, err := postgres.New(ctx, cfg.Database,
		postgres.WithLogger(logger),
		postgres.WithRetryConfig(retryConfig(cfg.Engine)),
		postgres.WithTimeouts(cfg.Engine.QueryTimeout, cfg.Engine.BulkTimeout),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	a.store = store
	slog.InfoContext(ctx, "storage initialized", "dsn", maskPassword(cfg.Database.DSN))

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	switch {
	case cfg.Archive.Bucket != "":
		archiver, err := archive.NewAuditArchiver(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create audit archiver: %w", err)
		}
		a.archiver = archiver
		engineOpts = append(engineOpts, engine.WithArchiver(archiver))
		slog.InfoContext(ctx, "audit archival enabled", "bucket", cfg.Archive.Bucket)
	case cfg.Archive.Dir != "":
		archiver, err := archive.NewFileArchiver(cfg.Archive.Dir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create audit archiver: %w", err)
		}
		engineOpts = append(engineOpts, engine.WithArchiver(archiver))
		slog.InfoContext(ctx, "audit archival enabled", "dir", cfg.Archive.Dir)
	}

	a.engine = engine.New(store, engineConfig(cfg.Engine, loc), engineOpts...)
	return a, nil
}

func engineConfig(cfg config.EngineConfig, loc *time.Location) engine.Config {
	return engine.Config{
		AdvanceDays:          cfg.AdvanceDays,
		MonthsAhead:          cfg.MonthlyMonthsAhead,
		DeleteBatchSize:      cfg.DeleteBatchSize,
		InsertBatchSize:      cfg.InsertBatchSize,
		SleepBetweenBatches:  cfg.SleepBetweenBatches,
		HistoryRetentionDays: cfg.HistoryRetentionDays,
		AuditRetentionDays:   cfg.AuditRetentionDays,
		JobName:              cfg.JobName,
		SessionStaleAfter:    cfg.SessionStaleAfter,
		Location:             loc,
	}
}

func retryConfig(cfg config.EngineConfig) retry.Config {
	return retry.Config{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay,
	}
}

// maskPassword replaces the password in a DSN for logging.
func maskPassword(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "[REDACTED]"
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxxx")
	}
	return u.String()
}
