package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/rotaforge/scheduler/internal/config"
	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/ptr"
	"github.com/rotaforge/scheduler/internal/storage/postgres"
)

// legacySchema creates throwaway copies of the external scheduling tables.
// Their production DDL lives with the legacy application; the engine only
// migrates its own tables.
const legacySchema = `
CREATE TABLE IF NOT EXISTS companies (
    id        BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name      TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS clients (
    id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    company_id BIGINT NOT NULL DEFAULT 0,
    name       TEXT NOT NULL DEFAULT '',
    is_active  BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS shift_templates (
    id                  BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    client_id           BIGINT NOT NULL DEFAULT 0,
    employee_id         BIGINT NOT NULL DEFAULT 0,
    company_id          BIGINT NOT NULL DEFAULT 0,
    group_id            BIGINT NOT NULL DEFAULT 0,
    recurrence_kind     INTEGER NOT NULL DEFAULT 1,
    week_stride         INTEGER NOT NULL DEFAULT 1,
    nth_weekday         INTEGER NOT NULL DEFAULT 0,
    weekdays            INTEGER NOT NULL DEFAULT 0,
    start_date          DATE NOT NULL DEFAULT '0001-01-01',
    end_date            DATE NOT NULL DEFAULT '0001-01-01',
    last_run            TIMESTAMPTZ,
    time_in             TIME NOT NULL DEFAULT '00:00',
    time_out            TIME NOT NULL DEFAULT '00:00',
    day_span            INTEGER NOT NULL DEFAULT 0,
    duration_min        INTEGER NOT NULL DEFAULT 0,
    schedule_kind       INTEGER NOT NULL DEFAULT 0,
    is_active           BOOLEAN NOT NULL DEFAULT TRUE,
    is_reset            BOOLEAN NOT NULL DEFAULT FALSE,
    alert_enabled       BOOLEAN NOT NULL DEFAULT FALSE,
    rounding_minutes    INTEGER NOT NULL DEFAULT 0,
    restricted_clock_in BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS shifts (
    id                  BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    template_id         BIGINT NOT NULL DEFAULT 0,
    client_id           BIGINT NOT NULL DEFAULT 0,
    employee_id         BIGINT NOT NULL DEFAULT 0,
    company_id          BIGINT NOT NULL DEFAULT 0,
    group_id            BIGINT NOT NULL DEFAULT 0,
    start_at            TIMESTAMPTZ NOT NULL,
    end_at              TIMESTAMPTZ NOT NULL,
    note                TEXT NOT NULL DEFAULT '',
    timecard_ref        TEXT,
    actual_start_at     TIMESTAMPTZ,
    actual_end_at       TIMESTAMPTZ,
    is_active           BOOLEAN NOT NULL DEFAULT TRUE,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    alert_enabled       BOOLEAN NOT NULL DEFAULT FALSE,
    rounding_minutes    INTEGER NOT NULL DEFAULT 0,
    restricted_clock_in BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS template_scan_areas (
    template_id BIGINT NOT NULL,
    area_id     BIGINT NOT NULL,
    PRIMARY KEY (template_id, area_id)
);

CREATE TABLE IF NOT EXISTS shift_scan_areas (
    shift_id BIGINT NOT NULL,
    area_id  BIGINT NOT NULL,
    PRIMARY KEY (shift_id, area_id)
);

CREATE TABLE IF NOT EXISTS template_claims (
    template_id BIGINT NOT NULL,
    employee_id BIGINT NOT NULL,
    PRIMARY KEY (template_id, employee_id)
);

CREATE TABLE IF NOT EXISTS shift_claims (
    shift_id    BIGINT NOT NULL,
    employee_id BIGINT NOT NULL,
    PRIMARY KEY (shift_id, employee_id)
);

CREATE TABLE IF NOT EXISTS shift_groups (
    id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    company_id BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// setupStore connects to the integration database, applies the engine
// migrations plus the legacy schema, and truncates everything. Skips when no
// DSN is configured.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	cfg, err := config.LoadTestConfig()
	if err != nil {
		t.Skipf("skipping integration tests: %v (set SCHEDULER_DB_DSN to run)", err)
	}

	ctx := context.Background()
	db := cfg.Database
	db.AutoMigrate = true

	store, err := postgres.New(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// No bind parameters, so Exec takes the simple-protocol path and the
	// multi-statement schema applies in one round trip.
	_, err = store.Pool().Exec(ctx, legacySchema)
	require.NoError(t, err)

	truncateAll(t, store)
	return store
}

func truncateAll(t *testing.T, store *postgres.Store) {
	t.Helper()
	_, err := store.Pool().Exec(context.Background(), `
		TRUNCATE TABLE shifts, shift_templates, clients, companies,
			template_scan_areas, shift_scan_areas, template_claims, shift_claims,
			shift_groups, run_summary, audit_log, conflict_log,
			multi_week_tracking, scheduler_session, schedule_work_queue
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)
}

func pgTime(d time.Duration) pgtype.Time {
	return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}
}

func seedCompany(t *testing.T, store *postgres.Store, id int64, active bool) {
	t.Helper()
	_, err := store.Pool().Exec(context.Background(), `
		INSERT INTO companies (id, is_active) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active
	`, id, active)
	require.NoError(t, err)
}

func seedClient(t *testing.T, store *postgres.Store, id, companyID int64, active bool) {
	t.Helper()
	_, err := store.Pool().Exec(context.Background(), `
		INSERT INTO clients (id, company_id, is_active) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active
	`, id, companyID, active)
	require.NoError(t, err)
}

// seedTemplate writes one template row. A nil EndDate stores the legacy
// 0001-01-01 open-ended sentinel, which is exactly time.Time's zero date.
func seedTemplate(t *testing.T, store *postgres.Store, tpl domain.ShiftTemplate) {
	t.Helper()

	endDate := ptr.Deref(tpl.EndDate, time.Time{})

	_, err := store.Pool().Exec(context.Background(), `
		INSERT INTO shift_templates (
			id, client_id, employee_id, company_id, group_id,
			recurrence_kind, week_stride, nth_weekday, weekdays,
			start_date, end_date, last_run,
			time_in, time_out, day_span, duration_min,
			schedule_kind, is_active, is_reset,
			alert_enabled, rounding_minutes, restricted_clock_in
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`,
		tpl.ID, tpl.ClientID, tpl.EmployeeID, tpl.CompanyID, tpl.GroupID,
		int(tpl.Recurrence), tpl.WeekStride, tpl.NthWeekday, int(tpl.Weekdays),
		tpl.StartDate, endDate, tpl.LastRun,
		pgTime(tpl.TimeIn), pgTime(tpl.TimeOut), tpl.DaySpan, int(tpl.Duration/time.Minute),
		int(tpl.Schedule), tpl.IsActive, tpl.IsReset,
		tpl.AlertEnabled, tpl.RoundingMinutes, tpl.RestrictedClockIn)
	require.NoError(t, err)
}

func seedShift(t *testing.T, store *postgres.Store, sh domain.Shift) int64 {
	t.Helper()

	var timecard *string
	if sh.TimecardRef != "" {
		timecard = &sh.TimecardRef
	}

	var id int64
	err := store.Pool().QueryRow(context.Background(), `
		INSERT INTO shifts (
			template_id, client_id, employee_id, company_id, group_id,
			start_at, end_at, note, timecard_ref, is_active,
			alert_enabled, rounding_minutes, restricted_clock_in
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		sh.TemplateID, sh.ClientID, sh.EmployeeID, sh.CompanyID, sh.GroupID,
		sh.StartAt, sh.EndAt, sh.Note, timecard, sh.IsActive,
		sh.AlertEnabled, sh.RoundingMinutes, sh.RestrictedClockIn).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedClaim(t *testing.T, store *postgres.Store, shiftID, employeeID int64) {
	t.Helper()
	_, err := store.Pool().Exec(context.Background(), `
		INSERT INTO shift_claims (shift_id, employee_id) VALUES ($1, $2)
	`, shiftID, employeeID)
	require.NoError(t, err)
}

func seedTemplateClaim(t *testing.T, store *postgres.Store, templateID, employeeID int64) {
	t.Helper()
	_, err := store.Pool().Exec(context.Background(), `
		INSERT INTO template_claims (template_id, employee_id) VALUES ($1, $2)
	`, templateID, employeeID)
	require.NoError(t, err)
}

func seedScanArea(t *testing.T, store *postgres.Store, templateID, areaID int64) {
	t.Helper()
	_, err := store.Pool().Exec(context.Background(), `
		INSERT INTO template_scan_areas (template_id, area_id) VALUES ($1, $2)
	`, templateID, areaID)
	require.NoError(t, err)
}

// backdateShift rewrites updated_at, for purge-retention tests.
func backdateShift(t *testing.T, store *postgres.Store, shiftID int64, updatedAt time.Time) {
	t.Helper()
	_, err := store.Pool().Exec(context.Background(), `
		UPDATE shifts SET updated_at = $2 WHERE id = $1
	`, shiftID, updatedAt)
	require.NoError(t, err)
}
