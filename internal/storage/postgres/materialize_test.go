package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotaforge/scheduler/internal/domain"
)

func TestInsertShiftsBatch(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	batch := []domain.Shift{
		futureShift(101, fixedToday),
		futureShift(101, fixedToday.AddDate(0, 0, 2)),
		futureShift(102, fixedToday.AddDate(0, 0, 3)),
	}
	batch[2].GroupID = 9001

	n, err := store.InsertShifts(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.InsertShifts(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	var (
		note      string
		groupID   int64
		timecard  *string
		createdAt time.Time
	)
	require.NoError(t, store.Pool().QueryRow(ctx, `
		SELECT note, group_id, timecard_ref, created_at
		FROM shifts
		WHERE template_id = 102
	`).Scan(&note, &groupID, &timecard, &createdAt))
	assert.Equal(t, domain.NoteWeekly, note)
	assert.Equal(t, int64(9001), groupID)
	assert.Nil(t, timecard, "new shifts carry no timecard link")
	assert.False(t, createdAt.IsZero())
}

func TestInsertShiftReturningID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.InsertShiftReturningID(ctx, futureShift(101, fixedToday))
	require.NoError(t, err)
	second, err := store.InsertShiftReturningID(ctx, futureShift(101, fixedToday.AddDate(0, 0, 1)))
	require.NoError(t, err)

	assert.NotZero(t, first)
	assert.Greater(t, second, first)
}

func TestCopyScanAreasAndClaims(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seedScanArea(t, store, 301, 71)
	seedScanArea(t, store, 301, 72)
	seedTemplateClaim(t, store, 301, 21)
	seedTemplateClaim(t, store, 301, 22)

	// Overnight start keeps the shift inside its key day.
	sh := futureShift(301, fixedToday)
	sh.StartAt = fixedToday.Add(22 * time.Hour)
	sh.EndAt = fixedToday.AddDate(0, 0, 1).Add(6 * time.Hour)
	_, err := store.InsertShifts(ctx, []domain.Shift{sh})
	require.NoError(t, err)

	keys := []domain.CopyKey{{TemplateID: 301, EmployeeID: 7, Date: fixedToday}}

	copied, err := store.CopyScanAreas(ctx, keys)
	require.NoError(t, err)
	assert.Equal(t, int64(2), copied)

	// Re-copy is a no-op.
	copied, err = store.CopyScanAreas(ctx, keys)
	require.NoError(t, err)
	assert.Zero(t, copied)

	copied, err = store.CopyClaims(ctx, keys)
	require.NoError(t, err)
	assert.Equal(t, int64(2), copied)

	var areas, claims int
	require.NoError(t, store.Pool().QueryRow(ctx, `SELECT count(*) FROM shift_scan_areas`).Scan(&areas))
	require.NoError(t, store.Pool().QueryRow(ctx, `SELECT count(*) FROM shift_claims`).Scan(&claims))
	assert.Equal(t, 2, areas)
	assert.Equal(t, 2, claims)

	// A key with no matching shift copies nothing.
	copied, err = store.CopyScanAreas(ctx, []domain.CopyKey{{TemplateID: 301, EmployeeID: 8, Date: fixedToday}})
	require.NoError(t, err)
	assert.Zero(t, copied)
}

func TestGroupRowCloneAndCreate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var sourceID int64
	require.NoError(t, store.Pool().QueryRow(ctx, `
		INSERT INTO shift_groups (name, company_id) VALUES ('night crew', 1) RETURNING id
	`).Scan(&sourceID))

	cloned, err := store.CloneGroupRow(ctx, sourceID)
	require.NoError(t, err)
	assert.NotEqual(t, sourceID, cloned)

	var name string
	var companyID int64
	require.NoError(t, store.Pool().QueryRow(ctx,
		`SELECT name, company_id FROM shift_groups WHERE id = $1`, cloned).Scan(&name, &companyID))
	assert.Equal(t, "night crew", name)
	assert.Equal(t, int64(1), companyID)

	created, err := store.CreateGroupRow(ctx)
	require.NoError(t, err)
	assert.Greater(t, created, cloned)

	// Cloning a missing group is an error, not a silent empty row.
	_, err = store.CloneGroupRow(ctx, 99999)
	require.Error(t, err)
}

func TestLastShiftDates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seedShift(t, store, futureShift(401, fixedToday.AddDate(0, 0, -14)))
	seedShift(t, store, futureShift(401, fixedToday.AddDate(0, 0, 7)))

	gone := futureShift(401, fixedToday.AddDate(0, 0, 9))
	gone.IsActive = false
	seedShift(t, store, gone)

	seedShift(t, store, futureShift(402, fixedToday))

	dates, err := store.LastShiftDates(ctx, []int64{401, 402, 403})
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[401].Equal(fixedToday.AddDate(0, 0, 7)), "newest active shift wins, future included")
	assert.True(t, dates[402].Equal(fixedToday))

	dates, err = store.LastShiftDates(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestLastMatchedHistoricalDates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Template 401 runs Mondays and Wednesdays.
	seedCompany(t, store, 1, true)
	seedClient(t, store, 10, 1, true)
	seedTemplate(t, store, weeklySeed(401))

	monday := fixedToday.AddDate(0, 0, -14)
	wednesday := monday.AddDate(0, 0, 2)
	thursday := monday.AddDate(0, 0, 3)

	seedShift(t, store, futureShift(401, monday))
	seedShift(t, store, futureShift(401, wednesday))
	// Newer but on an off-pattern day: moved by hand, not an anchor.
	seedShift(t, store, futureShift(401, thursday))
	// Newer still, but in the future relative to the base date.
	seedShift(t, store, futureShift(401, fixedToday.AddDate(0, 0, 7)))

	dates, err := store.LastMatchedHistoricalDates(ctx, []int64{401}, fixedToday)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.True(t, dates[401].Equal(wednesday))
}

func TestAdvanceLastRunStamps(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seedCompany(t, store, 1, true)
	seedClient(t, store, 10, 1, true)
	seedTemplate(t, store, weeklySeed(101))
	seedTemplate(t, store, weeklySeed(102))
	seedTemplate(t, store, weeklySeed(103))

	runAt := fixedToday.Add(12 * time.Hour)
	require.NoError(t, store.AdvanceWeeklyLastRun(ctx, []int64{101, 102}, runAt))
	require.NoError(t, store.AdvanceWeeklyLastRun(ctx, nil, runAt))

	nextMonth := domain.AddMonths(domain.MonthStart(fixedToday), 1)
	require.NoError(t, store.AdvanceMonthlyLastRun(ctx, []int64{103}, nextMonth))

	var stamp time.Time
	require.NoError(t, store.Pool().QueryRow(ctx,
		`SELECT last_run FROM shift_templates WHERE id = 101`).Scan(&stamp))
	assert.True(t, stamp.Equal(runAt))

	require.NoError(t, store.Pool().QueryRow(ctx,
		`SELECT last_run FROM shift_templates WHERE id = 103`).Scan(&stamp))
	assert.True(t, stamp.Equal(nextMonth))

	require.NoError(t, store.AdvanceTemplateLastRun(ctx, 102, runAt.Add(time.Hour)))
	require.NoError(t, store.Pool().QueryRow(ctx,
		`SELECT last_run FROM shift_templates WHERE id = 102`).Scan(&stamp))
	assert.True(t, stamp.Equal(runAt.Add(time.Hour)))
}

func TestListClientScopedKeys(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	mine := futureShift(101, fixedToday)
	seedShift(t, store, mine)

	other := futureShift(102, fixedToday)
	other.ClientID = 20
	seedShift(t, store, other)

	from := fixedToday
	to := fixedToday.AddDate(0, 0, 7)

	keys, err := store.ListClientStandardKeys(ctx, 10, from, to)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, domain.NewStandardKey(10, 7, mine.StartAt, mine.EndAt), keys[0])

	openKeys, err := store.ListClientOpenClaimKeys(ctx, 20, from, to)
	require.NoError(t, err)
	require.Len(t, openKeys, 1)
	assert.Equal(t, int64(102), openKeys[0].TemplateID)
}
