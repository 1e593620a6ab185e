package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rotaforge/scheduler/internal/domain"
)

// === Shift Insertion ===

// shiftColumns is the COPY column list for generated shifts. created_at,
// updated_at, and timecard_ref stay on their table defaults.
var shiftColumns = []string{
	"template_id", "client_id", "employee_id", "company_id", "group_id",
	"start_at", "end_at", "note", "is_active",
	"alert_enabled", "rounding_minutes", "restricted_clock_in",
}

// InsertShifts bulk-inserts one batch of shifts via COPY. A COPY is a single
// statement, so the batch applies atomically.
func (s *Store) InsertShifts(ctx context.Context, shifts []domain.Shift) (int64, error) {
	if len(shifts) == 0 {
		return 0, nil
	}

	var inserted int64
	err := s.query(ctx, "insert shifts", s.bulkTimeout, func(ctx context.Context) error {
		n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"shifts"}, shiftColumns,
			pgx.CopyFromSlice(len(shifts), func(i int) ([]any, error) {
				sh := &shifts[i]
				return []any{
					sh.TemplateID, sh.ClientID, sh.EmployeeID, sh.CompanyID, sh.GroupID,
					sh.StartAt, sh.EndAt, sh.Note, sh.IsActive,
					sh.AlertEnabled, sh.RoundingMinutes, sh.RestrictedClockIn,
				}, nil
			}))
		if err != nil {
			return err
		}
		inserted = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert shifts: %w", err)
	}
	return inserted, nil
}

// InsertShiftReturningID inserts a single shift and returns its new id. The
// group pathway needs concrete ids for its audit rows.
func (s *Store) InsertShiftReturningID(ctx context.Context, shift domain.Shift) (int64, error) {
	var id int64
	err := s.query(ctx, "insert shift", s.queryTimeout, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, `
			INSERT INTO shifts (
				template_id, client_id, employee_id, company_id, group_id,
				start_at, end_at, note, is_active,
				alert_enabled, rounding_minutes, restricted_clock_in
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`,
			shift.TemplateID, shift.ClientID, shift.EmployeeID, shift.CompanyID, shift.GroupID,
			shift.StartAt, shift.EndAt, shift.Note, shift.IsActive,
			shift.AlertEnabled, shift.RoundingMinutes, shift.RestrictedClockIn,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert shift: %w", err)
	}
	return id, nil
}

// copyKeyArrays flattens copy keys into parallel arrays for unnest joins.
func copyKeyArrays(keys []domain.CopyKey) (templateIDs, employeeIDs []int64, days []time.Time) {
	templateIDs = make([]int64, len(keys))
	employeeIDs = make([]int64, len(keys))
	days = make([]time.Time, len(keys))
	for i, k := range keys {
		templateIDs[i] = k.TemplateID
		employeeIDs[i] = k.EmployeeID
		days[i] = k.Date
	}
	return templateIDs, employeeIDs, days
}

// CopyScanAreas copies scan-area rows from the template table to the
// per-shift table for every key, set-based in one statement. The day match
// is a half-open [day, day+1) window over start_at, so overnight shifts pair
// with the day they start on.
func (s *Store) CopyScanAreas(ctx context.Context, keys []domain.CopyKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	templateIDs, employeeIDs, days := copyKeyArrays(keys)

	var copied int64
	err := s.query(ctx, "copy scan areas", s.bulkTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO shift_scan_areas (shift_id, area_id)
			SELECT sh.id, tsa.area_id
			FROM unnest($1::bigint[], $2::bigint[], $3::timestamptz[]) AS k(template_id, employee_id, day)
			JOIN shifts sh
			  ON sh.template_id = k.template_id
			 AND sh.employee_id = k.employee_id
			 AND sh.start_at >= k.day
			 AND sh.start_at <  k.day + interval '1 day'
			 AND sh.is_active = TRUE
			JOIN template_scan_areas tsa ON tsa.template_id = k.template_id
			ON CONFLICT DO NOTHING
		`, templateIDs, employeeIDs, days)
		if err != nil {
			return err
		}
		copied = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to copy scan areas: %w", err)
	}
	return copied, nil
}

// CopyClaims copies claim candidate rows from the template table to the
// per-shift table for every key, same join shape as CopyScanAreas.
func (s *Store) CopyClaims(ctx context.Context, keys []domain.CopyKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	templateIDs, employeeIDs, days := copyKeyArrays(keys)

	var copied int64
	err := s.query(ctx, "copy claims", s.bulkTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO shift_claims (shift_id, employee_id)
			SELECT sh.id, tc.employee_id
			FROM unnest($1::bigint[], $2::bigint[], $3::timestamptz[]) AS k(template_id, employee_id, day)
			JOIN shifts sh
			  ON sh.template_id = k.template_id
			 AND sh.employee_id = k.employee_id
			 AND sh.start_at >= k.day
			 AND sh.start_at <  k.day + interval '1 day'
			 AND sh.is_active = TRUE
			JOIN template_claims tc ON tc.template_id = k.template_id
			ON CONFLICT DO NOTHING
		`, templateIDs, employeeIDs, days)
		if err != nil {
			return err
		}
		copied = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to copy claims: %w", err)
	}
	return copied, nil
}

// CloneGroupRow copies the group definition row and returns the new
// occurrence group id.
func (s *Store) CloneGroupRow(ctx context.Context, groupID int64) (int64, error) {
	var id int64
	err := s.query(ctx, "clone group row", s.queryTimeout, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, `
			INSERT INTO shift_groups (name, company_id, created_at)
			SELECT name, company_id, now()
			FROM shift_groups
			WHERE id = $1
			RETURNING id
		`, groupID).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clone group row %d: %w", groupID, err)
	}
	return id, nil
}

// CreateGroupRow creates a fresh group row for a grouped monthly occurrence.
func (s *Store) CreateGroupRow(ctx context.Context) (int64, error) {
	var id int64
	err := s.query(ctx, "create group row", s.queryTimeout, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, `
			INSERT INTO shift_groups (name, company_id, created_at)
			VALUES ('', 0, now())
			RETURNING id
		`).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create group row: %w", err)
	}
	return id, nil
}
