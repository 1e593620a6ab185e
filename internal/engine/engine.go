// Package engine implements the shift materialization run: cleanup of
// retracted work, a bulk snapshot of templates and existing shifts, weekly
// and monthly expansion against in-memory dedup and overlap indexes, and a
// guaranteed finalization step, all under a cross-process run session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rotaforge/scheduler/internal/domain"
)

// finalizeTimeout bounds the detached finalization step so a wedged
// database cannot hold the session token forever.
const finalizeTimeout = 5 * time.Minute

// Config bounds one engine instance. The cmd binaries map the environment
// profile onto it.
type Config struct {
	// AdvanceDays is the weekly horizon in days, inclusive of the base
	// date; MonthsAhead is the monthly horizon in calendar months.
	AdvanceDays int
	MonthsAhead int

	DeleteBatchSize     int
	InsertBatchSize     int
	SleepBetweenBatches time.Duration

	HistoryRetentionDays int
	AuditRetentionDays   int

	// JobName keys the cross-process session; a session older than
	// SessionStaleAfter is taken over.
	JobName           string
	SessionStaleAfter time.Duration

	// Location is the zone the base date is derived in. All schedule math
	// downstream runs on wall-clock values.
	Location *time.Location
}

// DefaultConfig returns the production defaults with UTC session dates.
func DefaultConfig() Config {
	return Config{
		AdvanceDays:          45,
		MonthsAhead:          3,
		DeleteBatchSize:      5000,
		InsertBatchSize:      1000,
		SleepBetweenBatches:  100 * time.Millisecond,
		HistoryRetentionDays: 120,
		AuditRetentionDays:   3,
		JobName:              "shift-scheduler",
		SessionStaleAfter:    2 * time.Hour,
		Location:             time.UTC,
	}
}

// RunOptions narrows one run. Zero values mean "use configuration" or "no
// narrowing".
type RunOptions struct {
	// BaseTime overrides the wall clock as the run's base instant. Zero
	// means now.
	BaseTime time.Time

	CompanyID  int64
	TemplateID int64

	AdvanceDays int
	MonthsAhead int

	// Reset flags the narrowed templates as reset before cleanup, forcing
	// retraction and regeneration of their future shifts.
	Reset bool
}

// Archiver persists a finished run's audit trail to long-term storage.
type Archiver interface {
	ArchiveRun(ctx context.Context, summary *domain.RunSummary, audits []domain.AuditRow, conflicts []domain.ConflictRow) error
}

// Engine executes materialization runs. One Engine serves one job name;
// Run rejects in-process concurrency and defers cross-process exclusion to
// the repository's session token.
type Engine struct {
	repo     Repository
	cfg      Config
	logger   *slog.Logger
	archiver Archiver
	clock    func() time.Time
	holder   string

	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithArchiver enables audit archival after each run.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

// WithClock overrides the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New creates an Engine.
func New(repo Repository, cfg Config, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.InsertBatchSize < 1 {
		cfg.InsertBatchSize = 1000
	}
	if cfg.DeleteBatchSize < 1 {
		cfg.DeleteBatchSize = 5000
	}
	e := &Engine{
		repo:   repo,
		cfg:    cfg,
		logger: slog.Default(),
		clock:  time.Now,
		holder: defaultHolder(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// IsRunning reports whether this process is executing a run right now.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// ActiveSession returns the unexpired cross-process session, if any.
func (e *Engine) ActiveSession(ctx context.Context) (*domain.RunSession, error) {
	return e.repo.ActiveRunSession(ctx, e.cfg.JobName)
}

// Run executes one materialization run and returns its summary. Contention
// returns a Blocked summary and domain.ErrRunActive with nothing written.
// Cancellation surfaces as context.Canceled with the summary Cancelled; the
// session token and audit buffers are finalized on every path.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*domain.RunSummary, error) {
	if !e.running.CompareAndSwap(false, true) {
		return &domain.RunSummary{Status: domain.RunStatusBlocked, StartedAt: e.clock().UTC()}, domain.ErrRunActive
	}
	defer e.running.Store(false)

	startedAt := e.clock().UTC()
	base := opts.BaseTime
	if base.IsZero() {
		base = startedAt
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	runID := id.String()
	logger := e.logger.With("run_id", runID)

	session := domain.RunSession{
		JobName:   e.cfg.JobName,
		RunID:     runID,
		Holder:    e.holder,
		StartedAt: startedAt,
		ExpiresAt: startedAt.Add(e.cfg.SessionStaleAfter),
	}
	if err := e.repo.AcquireRunSession(ctx, session); err != nil {
		if errors.Is(err, domain.ErrRunActive) {
			logger.WarnContext(ctx, "run blocked, session held by another process")
			return &domain.RunSummary{RunID: runID, Status: domain.RunStatusBlocked, StartedAt: startedAt}, err
		}
		return nil, fmt.Errorf("failed to acquire run session: %w", err)
	}

	summary := &domain.RunSummary{RunID: runID, Status: domain.RunStatusRunning, StartedAt: startedAt}
	st := newRunState(runID, base, opts, e.cfg)
	st.summary = summary

	if err := e.repo.InsertRunSummary(ctx, summary); err != nil {
		e.releaseSession(context.WithoutCancel(ctx), logger, runID)
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	logger.InfoContext(ctx, "scheduler run started",
		"base_date", st.today.Format(time.DateOnly),
		"advance_days", st.advanceDays,
		"months_ahead", st.monthsAhead,
		"company_id", opts.CompanyID,
		"template_id", opts.TemplateID)

	runErr := e.executeGuarded(ctx, logger, st)
	e.finish(ctx, logger, st, runErr)

	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

func (e *Engine) executeGuarded(ctx context.Context, logger *slog.Logger, st *runState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "run panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("run panic: %v", r)
		}
	}()
	return e.execute(ctx, logger, st)
}

func (e *Engine) execute(ctx context.Context, logger *slog.Logger, st *runState) error {
	if st.opts.Reset && (st.opts.CompanyID != 0 || st.opts.TemplateID != 0) {
		n, err := e.repo.MarkTemplatesReset(ctx, st.opts.CompanyID, st.opts.TemplateID)
		if err != nil {
			return fmt.Errorf("failed to flag templates for reset: %w", err)
		}
		logger.InfoContext(ctx, "templates flagged for reset", "count", n)
	}

	// Cleanup failures never abort expansion.
	e.cleanup(ctx, logger, st)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.loadSnapshot(ctx, logger, st); err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if err := e.expandWeekly(ctx, logger, st); err != nil {
		return err
	}
	return e.expandMonthly(ctx, logger, st)
}

// finish runs the guaranteed finalization: advance cursors on success,
// always flush audit buffers, stamp and persist the summary, archive, and
// release the session. It uses a detached context so a caller disconnect
// cannot strand the session token.
func (e *Engine) finish(ctx context.Context, logger *slog.Logger, st *runState, runErr error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	summary := st.summary
	switch {
	case runErr == nil:
		summary.Status = domain.RunStatusCompleted
	case errors.Is(runErr, context.Canceled):
		summary.Status = domain.RunStatusCancelled
	default:
		summary.Status = domain.RunStatusFailed
		summary.Error = joinNote(summary.Error, runErr.Error())
	}

	e.finalize(fctx, logger, st, runErr == nil)

	completedAt := e.clock().UTC()
	summary.CompletedAt = &completedAt
	summary.DurationSec = completedAt.Sub(summary.StartedAt).Seconds()
	summary.Created = st.audit.created
	summary.Duplicates = st.audit.duplicates
	summary.Overlaps = st.audit.overlaps
	summary.Errors = st.audit.errors

	if err := e.repo.UpdateRunSummary(fctx, summary); err != nil {
		logger.ErrorContext(fctx, "failed to persist run summary", "error", err)
	}

	if e.archiver != nil && summary.Status != domain.RunStatusBlocked {
		if err := e.archiver.ArchiveRun(fctx, summary, st.audit.rows, st.audit.conflicts); err != nil {
			logger.WarnContext(fctx, "failed to archive run audit trail", "error", err)
		}
	}

	e.releaseSession(fctx, logger, summary.RunID)

	logger.InfoContext(fctx, "scheduler run finished",
		"status", string(summary.Status),
		"created", summary.Created,
		"duplicates", summary.Duplicates,
		"overlaps", summary.Overlaps,
		"errors", summary.Errors,
		"retracted", summary.Retracted,
		"duration_s", summary.DurationSec)
}

func (e *Engine) releaseSession(ctx context.Context, logger *slog.Logger, runID string) {
	if err := e.repo.ReleaseRunSession(ctx, e.cfg.JobName, runID); err != nil {
		logger.ErrorContext(ctx, "failed to release run session", "error", err)
	}
}

// sleepBetween yields locks between batches; it returns early on
// cancellation.
func (e *Engine) sleepBetween(ctx context.Context) error {
	if e.cfg.SleepBetweenBatches <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.cfg.SleepBetweenBatches)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func joinNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
