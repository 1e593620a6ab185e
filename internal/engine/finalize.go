package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

// finalize persists the run's terminal state. The audit trail is flushed
// on every outcome so rejected candidates stay inspectable after a
// failure; recurrence cursors advance only when the run completed, since
// stamping a partially expanded window would make the next run skip the
// unprocessed remainder.
func (e *Engine) finalize(ctx context.Context, logger *slog.Logger, st *runState, success bool) {
	e.flushAuditTrail(ctx, logger, st)
	if success {
		e.advanceCursors(ctx, logger, st)
	}
	e.pruneAuditTrail(ctx, logger, st)
}

func (e *Engine) flushAuditTrail(ctx context.Context, logger *slog.Logger, st *runState) {
	size := e.cfg.InsertBatchSize

	rows := st.audit.rows
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		if err := e.repo.InsertAuditRows(ctx, rows[start:end]); err != nil {
			logger.ErrorContext(ctx, "failed to insert audit rows",
				"pending", len(rows)-start,
				"error", err)
			break
		}
	}

	conflicts := st.audit.conflicts
	for start := 0; start < len(conflicts); start += size {
		end := min(start+size, len(conflicts))
		if err := e.repo.InsertConflictRows(ctx, conflicts[start:end]); err != nil {
			logger.ErrorContext(ctx, "failed to insert conflict rows",
				"pending", len(conflicts)-start,
				"error", err)
			break
		}
	}
}

// advanceCursors stamps last_run on every template the run loaded and
// upserts the multi-week tracking cursors. Weekly templates take the run
// timestamp; monthly templates take the first day of the month after the
// latest month they were loaded for, which is what keeps them out of the
// next run's working set until that month arrives.
func (e *Engine) advanceCursors(ctx context.Context, logger *slog.Logger, st *runState) {
	if len(st.weekly) > 0 {
		ids := make([]int64, len(st.weekly))
		for i := range st.weekly {
			ids[i] = st.weekly[i].ID
		}
		if err := e.repo.AdvanceWeeklyLastRun(ctx, ids, e.clock().UTC()); err != nil {
			logger.ErrorContext(ctx, "failed to advance weekly last_run",
				"templates", len(ids),
				"error", err)
		}
	}

	byMonth := make(map[time.Time][]int64)
	for id, month := range st.monthlyLoaded {
		byMonth[month] = append(byMonth[month], id)
	}
	for month, ids := range byMonth {
		if err := e.repo.AdvanceMonthlyLastRun(ctx, ids, domain.AddMonths(month, 1)); err != nil {
			logger.ErrorContext(ctx, "failed to advance monthly last_run",
				"month", month.Format("2006-01"),
				"templates", len(ids),
				"error", err)
		}
	}

	for id, produced := range st.lastProduced {
		next := produced
		if existing, ok := st.lastShift[id]; ok && existing.After(next) {
			next = existing
		}
		// The upsert overwrites the whole row, clearing changed_this_run and
		// any edit_mode pin left by a reset.
		row := domain.TrackingRow{
			TemplateID: id,
			NextDate:   next,
		}
		if err := e.repo.SaveTracking(ctx, row); err != nil {
			logger.ErrorContext(ctx, "failed to save multi-week tracking",
				"template_id", id,
				"error", err)
		}
	}
}

func (e *Engine) pruneAuditTrail(ctx context.Context, logger *slog.Logger, st *runState) {
	before := st.today.AddDate(0, 0, -e.cfg.AuditRetentionDays)
	pruned, err := e.repo.PruneAudit(ctx, before)
	if err != nil {
		logger.ErrorContext(ctx, "failed to prune audit history", "error", err)
		return
	}
	if pruned > 0 {
		logger.InfoContext(ctx, "pruned audit history",
			"count", pruned,
			"before", before.Format("2006-01-02"))
	}
}
