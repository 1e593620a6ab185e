package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rotaforge/scheduler/internal/domain"
)

// === Single-template Path ===

// FindTemplate returns one template by id. Activity gating happens in the
// engine; the row comes back whatever its state.
func (s *Store) FindTemplate(ctx context.Context, templateID int64) (*domain.ShiftTemplate, error) {
	var tpl domain.ShiftTemplate
	err := s.query(ctx, "find template", s.queryTimeout, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
			SELECT `+templateColumns+`
			FROM shift_templates t
			WHERE t.id = $1
		`, templateID)
		var err error
		tpl, err = scanTemplate(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: template %d", domain.ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return &tpl, nil
}

// DeleteFutureShiftsForTemplate soft-deletes the template's shifts starting
// on or after from, skipping linked and claimed ones.
func (s *Store) DeleteFutureShiftsForTemplate(ctx context.Context, templateID int64, from time.Time) (int64, error) {
	var changed int64
	err := s.query(ctx, "delete future shifts", s.bulkTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			UPDATE shifts sh
			SET is_active = FALSE, updated_at = now()
			WHERE sh.template_id = $1
			  AND sh.is_active = TRUE
			  AND sh.start_at >= $2
			  AND (sh.timecard_ref IS NULL OR sh.timecard_ref IN ('', '0'))
			  AND NOT EXISTS (
					SELECT 1 FROM shift_claims sc WHERE sc.shift_id = sh.id
			  )
		`, templateID, from)
		if err != nil {
			return err
		}
		changed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete future shifts: %w", err)
	}
	return changed, nil
}

// ListClientStandardKeys is ListStandardKeys narrowed to one client.
func (s *Store) ListClientStandardKeys(ctx context.Context, clientID int64, from, to time.Time) ([]domain.StandardKey, error) {
	var keys []domain.StandardKey
	err := s.query(ctx, "list client standard keys", s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT client_id, employee_id, start_at, end_at
			FROM shifts
			WHERE is_active = TRUE
			  AND client_id = $1
			  AND start_at >= $2 AND start_at < $3
		`, clientID, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()

		keys = keys[:0]
		for rows.Next() {
			var (
				client, employee int64
				start, end       time.Time
			)
			if err := rows.Scan(&client, &employee, &start, &end); err != nil {
				return err
			}
			keys = append(keys, domain.NewStandardKey(client, employee, start, end))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list client standard keys: %w", err)
	}
	return keys, nil
}

// ListClientOpenClaimKeys is ListOpenClaimKeys narrowed to one client.
func (s *Store) ListClientOpenClaimKeys(ctx context.Context, clientID int64, from, to time.Time) ([]domain.OpenClaimKey, error) {
	var keys []domain.OpenClaimKey
	err := s.query(ctx, "list client open-claim keys", s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT template_id, client_id, employee_id, start_at, end_at
			FROM shifts
			WHERE is_active = TRUE
			  AND client_id = $1
			  AND start_at >= $2 AND start_at < $3
		`, clientID, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()

		keys = keys[:0]
		for rows.Next() {
			var (
				template, client, employee int64
				start, end                 time.Time
			)
			if err := rows.Scan(&template, &client, &employee, &start, &end); err != nil {
				return err
			}
			keys = append(keys, domain.NewOpenClaimKey(template, client, employee, start, end))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list client open-claim keys: %w", err)
	}
	return keys, nil
}

// AdvanceTemplateLastRun stamps last_run on a single template.
func (s *Store) AdvanceTemplateLastRun(ctx context.Context, templateID int64, runAt time.Time) error {
	err := s.query(ctx, "advance template last_run", s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			UPDATE shift_templates
			SET last_run = $2
			WHERE id = $1
		`, templateID, runAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to advance template last_run: %w", err)
	}
	return nil
}
