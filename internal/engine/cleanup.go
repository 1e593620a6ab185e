package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rotaforge/scheduler/internal/domain"
)

// cleanup runs the pre-expansion maintenance phases: retracting future
// shifts whose template no longer justifies them, rewinding reset
// templates, and pruning working state. Failures here are recorded on the
// summary and logged, but never abort the run; expansion proceeds against
// whatever state cleanup managed to reach. Cancellation is the exception
// and is surfaced by the caller's context check.
func (e *Engine) cleanup(ctx context.Context, logger *slog.Logger, st *runState) {
	phases := []struct {
		name string
		fn   func(context.Context, *slog.Logger, *runState) error
	}{
		{"retract", e.retractOrphanedShifts},
		{"reset", e.rewindResetTemplates},
		{"prune", e.pruneWorkingState},
	}
	for _, p := range phases {
		if ctx.Err() != nil {
			return
		}
		if err := p.fn(ctx, logger, st); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			logger.ErrorContext(ctx, "cleanup phase failed",
				"phase", p.name,
				"error", err)
			st.summary.Error = joinNote(st.summary.Error, fmt.Sprintf("cleanup %s: %v", p.name, err))
		}
	}
}

// retractOrphanedShifts deactivates engine-created future shifts that no
// active template still accounts for. Deactivation runs in batches with a
// pause between them to keep lock pressure down.
func (e *Engine) retractOrphanedShifts(ctx context.Context, logger *slog.Logger, st *runState) error {
	ids, err := e.repo.ListRetractableShiftIDs(ctx, st.today)
	if err != nil {
		return fmt.Errorf("failed to list retractable shifts: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	for start := 0; start < len(ids); start += e.cfg.DeleteBatchSize {
		end := min(start+e.cfg.DeleteBatchSize, len(ids))
		n, err := e.repo.DeactivateShifts(ctx, ids[start:end])
		if err != nil {
			return fmt.Errorf("failed to deactivate shifts: %w", err)
		}
		st.summary.Retracted += int(n)
		if end < len(ids) {
			if err := e.sleepBetween(ctx); err != nil {
				return err
			}
		}
	}

	logger.InfoContext(ctx, "retracted orphaned future shifts",
		"count", st.summary.Retracted)
	return nil
}

// rewindResetTemplates prepares templates flagged for regeneration.
// Multi-week templates get their tracking cursor pinned to the last
// confirmed historical date so anchor resolution restarts from real
// history; then every flagged template has the flag cleared and last_run
// rewound to yesterday so this same run picks it up again.
func (e *Engine) rewindResetTemplates(ctx context.Context, logger *slog.Logger, st *runState) error {
	multiWeek, err := e.repo.ListResetMultiWeekTemplateIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reset multi-week templates: %w", err)
	}
	if len(multiWeek) > 0 {
		historical, err := e.repo.LastMatchedHistoricalDates(ctx, multiWeek, st.today)
		if err != nil {
			return fmt.Errorf("failed to resolve historical dates: %w", err)
		}
		for _, id := range multiWeek {
			last, ok := historical[id]
			if !ok {
				// No confirmed history; anchor resolution will fall back
				// to the template start date on its own.
				continue
			}
			row := domain.TrackingRow{
				TemplateID: id,
				NextDate:   last,
				EditMode:   true,
			}
			if err := e.repo.SaveTracking(ctx, row); err != nil {
				return fmt.Errorf("failed to save tracking for template %d: %w", id, err)
			}
		}
	}

	cleared, err := e.repo.ClearResetFlags(ctx, st.today.AddDate(0, 0, -1))
	if err != nil {
		return fmt.Errorf("failed to clear reset flags: %w", err)
	}
	if cleared > 0 || len(multiWeek) > 0 {
		logger.InfoContext(ctx, "rewound reset templates",
			"cleared", cleared,
			"multi_week", len(multiWeek))
	}
	return nil
}

// pruneWorkingState clears the transient work queue and trims retired
// shift history past the retention horizon.
func (e *Engine) pruneWorkingState(ctx context.Context, logger *slog.Logger, st *runState) error {
	if err := e.repo.TruncateWorkQueue(ctx); err != nil {
		return fmt.Errorf("failed to truncate work queue: %w", err)
	}

	before := st.today.AddDate(0, 0, -e.cfg.HistoryRetentionDays)
	var purged int64
	for {
		n, err := e.repo.PurgeRetiredShifts(ctx, before, e.cfg.DeleteBatchSize)
		if err != nil {
			return fmt.Errorf("failed to purge retired shifts: %w", err)
		}
		purged += n
		if n < int64(e.cfg.DeleteBatchSize) {
			break
		}
		if err := e.sleepBetween(ctx); err != nil {
			return err
		}
	}
	if purged > 0 {
		logger.InfoContext(ctx, "purged retired shift history",
			"count", purged,
			"before", before.Format("2006-01-02"))
	}
	return nil
}
