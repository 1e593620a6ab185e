package postgres

import (
	"context"
	"fmt"
	"time"
)

// === Cleanup ===

// ListRetractableShiftIDs returns ids of active template-generated shifts
// starting tomorrow or later whose template is gone, reset, or deactivated.
// Shifts with a timecard link or a claim row stay untouched, as do manual
// shifts (template_id 0).
func (s *Store) ListRetractableShiftIDs(ctx context.Context, today time.Time) ([]int64, error) {
	tomorrow := today.AddDate(0, 0, 1)

	var ids []int64
	err := s.query(ctx, "list retractable shifts", s.bulkTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT s.id
			FROM shifts s
			LEFT JOIN shift_templates t ON t.id = s.template_id
			WHERE s.is_active = TRUE
			  AND s.template_id > 0
			  AND s.start_at >= $1
			  AND (s.timecard_ref IS NULL OR s.timecard_ref IN ('', '0'))
			  AND NOT EXISTS (
					SELECT 1 FROM shift_claims sc WHERE sc.shift_id = s.id
			  )
			  AND (t.id IS NULL OR t.is_reset = TRUE OR t.is_active = FALSE)
			ORDER BY s.id
		`, tomorrow)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list retractable shifts: %w", err)
	}
	return ids, nil
}

// DeactivateShifts soft-deletes one batch of shifts.
func (s *Store) DeactivateShifts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var changed int64
	err := s.query(ctx, "deactivate shifts", s.bulkTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			UPDATE shifts
			SET is_active = FALSE, updated_at = now()
			WHERE id = ANY($1) AND is_active = TRUE
		`, ids)
		if err != nil {
			return err
		}
		changed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate shifts: %w", err)
	}
	return changed, nil
}

// ListResetMultiWeekTemplateIDs returns multi-week templates flagged reset.
func (s *Store) ListResetMultiWeekTemplateIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.query(ctx, "list reset multi-week templates", s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT id
			FROM shift_templates
			WHERE is_reset = TRUE
			  AND recurrence_kind = 1
			  AND week_stride > 1
			ORDER BY id
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reset templates: %w", err)
	}
	return ids, nil
}

// ClearResetFlags clears is_reset everywhere and rewinds last_run so the
// cleared templates reload on the current run.
func (s *Store) ClearResetFlags(ctx context.Context, lastRun time.Time) (int64, error) {
	var cleared int64
	err := s.query(ctx, "clear reset flags", s.queryTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			UPDATE shift_templates
			SET is_reset = FALSE, last_run = $1
			WHERE is_reset = TRUE
		`, lastRun)
		if err != nil {
			return err
		}
		cleared = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear reset flags: %w", err)
	}
	return cleared, nil
}

// MarkTemplatesReset flags active templates matching the narrowing as reset.
func (s *Store) MarkTemplatesReset(ctx context.Context, companyID, templateID int64) (int64, error) {
	if companyID == 0 && templateID == 0 {
		return 0, nil
	}

	var flagged int64
	err := s.query(ctx, "mark templates reset", s.queryTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			UPDATE shift_templates
			SET is_reset = TRUE
			WHERE is_active = TRUE
			  AND ($1 = 0 OR company_id = $1)
			  AND ($2 = 0 OR id = $2)
		`, companyID, templateID)
		if err != nil {
			return err
		}
		flagged = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark templates reset: %w", err)
	}
	return flagged, nil
}

// TruncateWorkQueue empties the legacy scratch table.
func (s *Store) TruncateWorkQueue(ctx context.Context) error {
	err := s.query(ctx, "truncate work queue", s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `TRUNCATE TABLE schedule_work_queue`)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to truncate work queue: %w", err)
	}
	return nil
}

// PurgeRetiredShifts hard-deletes up to limit soft-deleted shifts last
// touched before the cutoff. Callers loop until a short batch comes back.
func (s *Store) PurgeRetiredShifts(ctx context.Context, before time.Time, limit int) (int64, error) {
	var deleted int64
	err := s.query(ctx, "purge retired shifts", s.bulkTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM shifts
			WHERE id IN (
				SELECT id
				FROM shifts
				WHERE is_active = FALSE AND updated_at < $1
				ORDER BY id
				LIMIT $2
			)
		`, before, limit)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge retired shifts: %w", err)
	}
	return deleted, nil
}
