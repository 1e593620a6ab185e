package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/engine"
)

// === Snapshot ===

// templateColumns is the SELECT list shared by every template query. end_date
// folds the legacy 0001-01-01 open-ended sentinel into NULL here so nothing
// upstream ever sees it.
const templateColumns = `
	t.id, t.client_id, t.employee_id, t.company_id, t.group_id,
	t.recurrence_kind, t.week_stride, t.nth_weekday, t.weekdays,
	t.start_date, NULLIF(t.end_date, '0001-01-01'::date), t.last_run,
	t.time_in, t.time_out, t.day_span, t.duration_min,
	t.schedule_kind, t.is_active, t.is_reset,
	t.alert_enabled, t.rounding_minutes, t.restricted_clock_in`

// scanTemplate scans one template row in templateColumns order.
func scanTemplate(row pgx.Row) (domain.ShiftTemplate, error) {
	var (
		tpl         domain.ShiftTemplate
		timeIn      pgtype.Time
		timeOut     pgtype.Time
		durationMin int
	)
	err := row.Scan(
		&tpl.ID, &tpl.ClientID, &tpl.EmployeeID, &tpl.CompanyID, &tpl.GroupID,
		&tpl.Recurrence, &tpl.WeekStride, &tpl.NthWeekday, &tpl.Weekdays,
		&tpl.StartDate, &tpl.EndDate, &tpl.LastRun,
		&timeIn, &timeOut, &tpl.DaySpan, &durationMin,
		&tpl.Schedule, &tpl.IsActive, &tpl.IsReset,
		&tpl.AlertEnabled, &tpl.RoundingMinutes, &tpl.RestrictedClockIn,
	)
	if err != nil {
		return domain.ShiftTemplate{}, err
	}
	tpl.TimeIn = time.Duration(timeIn.Microseconds) * time.Microsecond
	tpl.TimeOut = time.Duration(timeOut.Microseconds) * time.Microsecond
	tpl.Duration = time.Duration(durationMin) * time.Minute
	return tpl, nil
}

func (s *Store) listTemplates(ctx context.Context, name, query string, args ...any) ([]domain.ShiftTemplate, error) {
	var templates []domain.ShiftTemplate
	err := s.query(ctx, name, s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		templates = templates[:0]
		for rows.Next() {
			tpl, err := scanTemplate(rows)
			if err != nil {
				return err
			}
			templates = append(templates, tpl)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", name, err)
	}
	return templates, nil
}

// ListWeeklyTemplates loads the weekly working set. The last_run cutoff is
// the day after Today, so a template already stamped earlier the same day
// reloads and relies on the dedup probe instead of being silently dropped.
func (s *Store) ListWeeklyTemplates(ctx context.Context, filter engine.TemplateFilter) ([]domain.ShiftTemplate, error) {
	return s.listTemplates(ctx, "list weekly templates", `
		SELECT `+templateColumns+`
		FROM shift_templates t
		JOIN clients cl   ON cl.id = t.client_id  AND cl.is_active = TRUE
		JOIN companies co ON co.id = t.company_id AND co.is_active = TRUE
		WHERE t.is_active = TRUE
		  AND t.recurrence_kind = $1
		  AND (t.end_date IS NULL OR t.end_date = '0001-01-01'::date OR t.end_date >= $2)
		  AND (t.last_run IS NULL OR t.last_run < $3)
		  AND ($4 = 0 OR t.company_id = $4)
		  AND ($5 = 0 OR t.id = $5)
		ORDER BY t.id
	`, int(domain.RecurrenceWeekly), filter.Today, filter.Today.AddDate(0, 0, 1), filter.CompanyID, filter.TemplateID)
}

// ListMonthlyTemplates loads the monthly working set. last_run eligibility is
// per target month and lives in the engine, so no last_run predicate here.
func (s *Store) ListMonthlyTemplates(ctx context.Context, filter engine.TemplateFilter) ([]domain.ShiftTemplate, error) {
	return s.listTemplates(ctx, "list monthly templates", `
		SELECT `+templateColumns+`
		FROM shift_templates t
		JOIN clients cl   ON cl.id = t.client_id  AND cl.is_active = TRUE
		JOIN companies co ON co.id = t.company_id AND co.is_active = TRUE
		WHERE t.is_active = TRUE
		  AND t.recurrence_kind = $1
		  AND (t.end_date IS NULL OR t.end_date = '0001-01-01'::date OR t.end_date >= $2)
		  AND ($3 = 0 OR t.company_id = $3)
		  AND ($4 = 0 OR t.id = $4)
		ORDER BY t.id
	`, int(domain.RecurrenceMonthly), filter.Today, filter.CompanyID, filter.TemplateID)
}

// ListStandardKeys returns the standard dedup key of every active shift
// starting in [from, to).
func (s *Store) ListStandardKeys(ctx context.Context, from, to time.Time) ([]domain.StandardKey, error) {
	var keys []domain.StandardKey
	err := s.query(ctx, "list standard keys", s.bulkTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT client_id, employee_id, start_at, end_at
			FROM shifts
			WHERE is_active = TRUE AND start_at >= $1 AND start_at < $2
		`, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()

		keys = keys[:0]
		for rows.Next() {
			var (
				clientID, employeeID int64
				start, end           time.Time
			)
			if err := rows.Scan(&clientID, &employeeID, &start, &end); err != nil {
				return err
			}
			keys = append(keys, domain.NewStandardKey(clientID, employeeID, start, end))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list standard keys: %w", err)
	}
	return keys, nil
}

// ListOpenClaimKeys returns the template-scoped dedup key of every active
// shift starting in [from, to).
func (s *Store) ListOpenClaimKeys(ctx context.Context, from, to time.Time) ([]domain.OpenClaimKey, error) {
	var keys []domain.OpenClaimKey
	err := s.query(ctx, "list open-claim keys", s.bulkTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT template_id, client_id, employee_id, start_at, end_at
			FROM shifts
			WHERE is_active = TRUE AND start_at >= $1 AND start_at < $2
		`, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()

		keys = keys[:0]
		for rows.Next() {
			var (
				templateID, clientID, employeeID int64
				start, end                       time.Time
			)
			if err := rows.Scan(&templateID, &clientID, &employeeID, &start, &end); err != nil {
				return err
			}
			keys = append(keys, domain.NewOpenClaimKey(templateID, clientID, employeeID, start, end))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list open-claim keys: %w", err)
	}
	return keys, nil
}

// ListShiftIntervals returns the overlap tuples of active assigned shifts
// starting in [from, to).
func (s *Store) ListShiftIntervals(ctx context.Context, from, to time.Time) ([]domain.ShiftInterval, error) {
	var intervals []domain.ShiftInterval
	err := s.query(ctx, "list shift intervals", s.bulkTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT employee_id, client_id, id, template_id, start_at, end_at
			FROM shifts
			WHERE is_active = TRUE
			  AND employee_id <> 0
			  AND start_at >= $1 AND start_at < $2
		`, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()

		intervals = intervals[:0]
		for rows.Next() {
			var iv domain.ShiftInterval
			if err := rows.Scan(&iv.EmployeeID, &iv.ClientID, &iv.ShiftID, &iv.TemplateID, &iv.StartAt, &iv.EndAt); err != nil {
				return err
			}
			intervals = append(intervals, iv)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list shift intervals: %w", err)
	}
	return intervals, nil
}

func (s *Store) listTemplateIDSet(ctx context.Context, name, query string) (map[int64]struct{}, error) {
	var set map[int64]struct{}
	err := s.query(ctx, name, s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		set = make(map[int64]struct{})
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			set[id] = struct{}{}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", name, err)
	}
	return set, nil
}

// ListScanAreaTemplateIDs returns ids of templates carrying scan areas.
func (s *Store) ListScanAreaTemplateIDs(ctx context.Context) (map[int64]struct{}, error) {
	return s.listTemplateIDSet(ctx, "list scan-area templates",
		`SELECT DISTINCT template_id FROM template_scan_areas`)
}

// ListClaimTemplateIDs returns ids of templates carrying claim rows.
func (s *Store) ListClaimTemplateIDs(ctx context.Context) (map[int64]struct{}, error) {
	return s.listTemplateIDSet(ctx, "list claim templates",
		`SELECT DISTINCT template_id FROM template_claims`)
}

// ListTracking returns every multi-week tracking row keyed by template.
func (s *Store) ListTracking(ctx context.Context) (map[int64]domain.TrackingRow, error) {
	var tracking map[int64]domain.TrackingRow
	err := s.query(ctx, "list tracking", s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT template_id, next_date, changed_this_run, edit_mode
			FROM multi_week_tracking
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		tracking = make(map[int64]domain.TrackingRow)
		for rows.Next() {
			var row domain.TrackingRow
			if err := rows.Scan(&row.TemplateID, &row.NextDate, &row.ChangedThisRun, &row.EditMode); err != nil {
				return err
			}
			tracking[row.TemplateID] = row
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking: %w", err)
	}
	return tracking, nil
}

// LastShiftDates returns, per template, the date of its newest active shift.
func (s *Store) LastShiftDates(ctx context.Context, templateIDs []int64) (map[int64]time.Time, error) {
	if len(templateIDs) == 0 {
		return map[int64]time.Time{}, nil
	}

	var dates map[int64]time.Time
	err := s.query(ctx, "list last shift dates", s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT template_id, MAX(start_at)
			FROM shifts
			WHERE is_active = TRUE AND template_id = ANY($1)
			GROUP BY template_id
		`, templateIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		dates = make(map[int64]time.Time)
		for rows.Next() {
			var (
				id   int64
				last time.Time
			)
			if err := rows.Scan(&id, &last); err != nil {
				return err
			}
			dates[id] = domain.MidnightOf(last)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list last shift dates: %w", err)
	}
	return dates, nil
}

// LastMatchedHistoricalDates returns, per template, the newest date on or
// before today holding an active shift on one of the template's weekdays.
// weekdays is a bitmask with bit 0 = Sunday, matching EXTRACT(DOW).
func (s *Store) LastMatchedHistoricalDates(ctx context.Context, templateIDs []int64, today time.Time) (map[int64]time.Time, error) {
	if len(templateIDs) == 0 {
		return map[int64]time.Time{}, nil
	}

	var dates map[int64]time.Time
	err := s.query(ctx, "list historical dates", s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT s.template_id, MAX(s.start_at)
			FROM shifts s
			JOIN shift_templates t ON t.id = s.template_id
			WHERE s.is_active = TRUE
			  AND s.template_id = ANY($1)
			  AND s.start_at < $2
			  AND ((t.weekdays >> EXTRACT(DOW FROM s.start_at)::int) & 1) = 1
			GROUP BY s.template_id
		`, templateIDs, today.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		defer rows.Close()

		dates = make(map[int64]time.Time)
		for rows.Next() {
			var (
				id   int64
				last time.Time
			)
			if err := rows.Scan(&id, &last); err != nil {
				return err
			}
			dates[id] = domain.MidnightOf(last)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list historical dates: %w", err)
	}
	return dates, nil
}
