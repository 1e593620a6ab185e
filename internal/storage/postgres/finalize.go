package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rotaforge/scheduler/internal/domain"
)

// === Finalization ===

func (s *Store) advanceLastRun(ctx context.Context, name string, templateIDs []int64, lastRun time.Time) error {
	if len(templateIDs) == 0 {
		return nil
	}
	err := s.query(ctx, name, s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			UPDATE shift_templates
			SET last_run = $2
			WHERE id = ANY($1)
		`, templateIDs, lastRun)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", name, err)
	}
	return nil
}

// AdvanceWeeklyLastRun stamps last_run on every loaded weekly template.
func (s *Store) AdvanceWeeklyLastRun(ctx context.Context, templateIDs []int64, runAt time.Time) error {
	return s.advanceLastRun(ctx, "advance weekly last_run", templateIDs, runAt)
}

// AdvanceMonthlyLastRun stamps last_run on the given monthly templates with
// the first day of the month after the one expanded.
func (s *Store) AdvanceMonthlyLastRun(ctx context.Context, templateIDs []int64, lastRun time.Time) error {
	return s.advanceLastRun(ctx, "advance monthly last_run", templateIDs, lastRun)
}

// SaveTracking upserts one multi-week tracking row.
func (s *Store) SaveTracking(ctx context.Context, row domain.TrackingRow) error {
	err := s.query(ctx, "save tracking", s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO multi_week_tracking (template_id, next_date, changed_this_run, edit_mode, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (template_id) DO UPDATE
			SET next_date        = EXCLUDED.next_date,
				changed_this_run = EXCLUDED.changed_this_run,
				edit_mode        = EXCLUDED.edit_mode,
				updated_at       = now()
		`, row.TemplateID, row.NextDate, row.ChangedThisRun, row.EditMode)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save tracking: %w", err)
	}
	return nil
}

// InsertAuditRows bulk-inserts one batch of audit rows via COPY.
func (s *Store) InsertAuditRows(ctx context.Context, rows []domain.AuditRow) error {
	if len(rows) == 0 {
		return nil
	}

	columns := []string{
		"run_id", "run_date", "template_id", "instance_id", "employee_id", "client_id",
		"start_ts", "end_ts", "outcome", "error_desc", "kind", "pattern",
	}
	err := s.query(ctx, "insert audit rows", s.bulkTimeout, func(ctx context.Context) error {
		_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"audit_log"}, columns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := &rows[i]
				return []any{
					r.RunID, r.RunDate, r.TemplateID, r.ShiftID, r.EmployeeID, r.ClientID,
					r.StartAt, r.EndAt, string(r.Outcome), r.ErrorDesc, int16(r.Kind), r.Pattern,
				}, nil
			}))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert audit rows: %w", err)
	}
	return nil
}

// InsertConflictRows bulk-inserts one batch of conflict rows via COPY.
func (s *Store) InsertConflictRows(ctx context.Context, rows []domain.ConflictRow) error {
	if len(rows) == 0 {
		return nil
	}

	columns := []string{
		"run_id", "template_id", "employee_id", "client_id", "start_ts", "end_ts",
		"other_shift_id", "other_template_id", "other_client_id", "other_start_ts", "other_end_ts",
		"detected_at",
	}
	err := s.query(ctx, "insert conflict rows", s.bulkTimeout, func(ctx context.Context) error {
		_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"conflict_log"}, columns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := &rows[i]
				return []any{
					r.RunID, r.TemplateID, r.EmployeeID, r.ClientID, r.StartAt, r.EndAt,
					r.WithShiftID, r.WithTemplateID, r.WithClientID, r.WithStartAt, r.WithEndAt,
					r.DetectedAt,
				}, nil
			}))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert conflict rows: %w", err)
	}
	return nil
}

// PruneAudit deletes audit, conflict, and run summary rows older than the
// cutoff. A partial prune is fine; the next run finishes the job.
func (s *Store) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	err := s.query(ctx, "prune audit", s.bulkTimeout, func(ctx context.Context) error {
		total = 0
		tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, before)
		if err != nil {
			return err
		}
		total += tag.RowsAffected()

		tag, err = s.pool.Exec(ctx, `DELETE FROM conflict_log WHERE detected_at < $1`, before)
		if err != nil {
			return err
		}
		total += tag.RowsAffected()

		tag, err = s.pool.Exec(ctx, `DELETE FROM run_summary WHERE started_at < $1`, before)
		if err != nil {
			return err
		}
		total += tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit history: %w", err)
	}
	return total, nil
}
