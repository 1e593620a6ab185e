package engine

import (
	"context"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

// TemplateFilter narrows a template snapshot. Zero values mean no narrowing.
type TemplateFilter struct {
	CompanyID  int64
	TemplateID int64
	// Today is the run base date used for end-date and last_run eligibility.
	Today time.Time
}

// Repository is the storage surface the engine runs against. Implementations
// retry transient faults internally; callers see only terminal errors. Every
// method honors context cancellation.
type Repository interface {
	// === Run Session ===

	// AcquireRunSession atomically claims the cross-process run token for
	// session.JobName. Returns domain.ErrRunActive while another holder's
	// unexpired session exists; an expired session is taken over.
	AcquireRunSession(ctx context.Context, session domain.RunSession) error

	// ReleaseRunSession releases the token if runID still holds it.
	// Returns domain.ErrSessionNotHeld otherwise.
	ReleaseRunSession(ctx context.Context, jobName, runID string) error

	// ActiveRunSession returns the current unexpired session for jobName,
	// or nil when the token is free.
	ActiveRunSession(ctx context.Context, jobName string) (*domain.RunSession, error)

	// === Run Summary ===

	// InsertRunSummary writes the initial summary row for a run.
	InsertRunSummary(ctx context.Context, summary *domain.RunSummary) error

	// UpdateRunSummary overwrites the summary row for summary.RunID.
	UpdateRunSummary(ctx context.Context, summary *domain.RunSummary) error

	// ListRecentRuns returns the newest run summaries, most recent first.
	ListRecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// === Cleanup ===

	// ListRetractableShiftIDs returns ids of active future shifts whose
	// template is gone, reset, or deactivated, excluding shifts with a
	// timecard link or a claim reference. Future means starting on or after
	// the day after today.
	ListRetractableShiftIDs(ctx context.Context, today time.Time) ([]int64, error)

	// DeactivateShifts soft-deletes the given shifts and returns the number
	// of rows changed.
	DeactivateShifts(ctx context.Context, ids []int64) (int64, error)

	// ListResetMultiWeekTemplateIDs returns ids of multi-week templates
	// currently flagged reset.
	ListResetMultiWeekTemplateIDs(ctx context.Context) ([]int64, error)

	// ClearResetFlags clears is_reset on every flagged template and rewinds
	// last_run to the given value so the templates reload this run. Returns
	// the number of templates cleared.
	ClearResetFlags(ctx context.Context, lastRun time.Time) (int64, error)

	// MarkTemplatesReset flags templates matching the narrowing as reset.
	// Zero company and template ids flag nothing.
	MarkTemplatesReset(ctx context.Context, companyID, templateID int64) (int64, error)

	// TruncateWorkQueue empties the legacy scratch table shared with the
	// stored-procedure era consumers.
	TruncateWorkQueue(ctx context.Context) error

	// PurgeRetiredShifts hard-deletes up to limit soft-deleted shifts whose
	// last update is older than before. Returns rows deleted; callers loop
	// until zero.
	PurgeRetiredShifts(ctx context.Context, before time.Time, limit int) (int64, error)

	// === Snapshot ===

	// ListWeeklyTemplates returns active weekly templates eligible for the
	// run: active client and company, end date absent or >= Today, and
	// last_run absent or before the day after Today. Same-day reruns keep
	// their templates loaded; the dedup probe suppresses re-emission.
	ListWeeklyTemplates(ctx context.Context, filter TemplateFilter) ([]domain.ShiftTemplate, error)

	// ListMonthlyTemplates returns active monthly templates under the same
	// client, company, and end-date conditions. Monthly eligibility against
	// last_run is per target month and is applied in memory.
	ListMonthlyTemplates(ctx context.Context, filter TemplateFilter) ([]domain.ShiftTemplate, error)

	// ListStandardKeys returns the standard dedup key of every active shift
	// starting in [from, to).
	ListStandardKeys(ctx context.Context, from, to time.Time) ([]domain.StandardKey, error)

	// ListOpenClaimKeys returns the open-claim dedup key of every active
	// shift starting in [from, to).
	ListOpenClaimKeys(ctx context.Context, from, to time.Time) ([]domain.OpenClaimKey, error)

	// ListShiftIntervals returns the overlap tuples of active assigned
	// shifts starting in [from, to). Unassigned shifts (employee 0) are
	// excluded.
	ListShiftIntervals(ctx context.Context, from, to time.Time) ([]domain.ShiftInterval, error)

	// ListScanAreaTemplateIDs returns ids of templates carrying scan areas.
	ListScanAreaTemplateIDs(ctx context.Context) (map[int64]struct{}, error)

	// ListClaimTemplateIDs returns ids of templates carrying claim rows.
	ListClaimTemplateIDs(ctx context.Context) (map[int64]struct{}, error)

	// ListTracking returns every multi-week tracking row keyed by template.
	ListTracking(ctx context.Context) (map[int64]domain.TrackingRow, error)

	// LastShiftDates returns, per template, the date of its newest active
	// shift. Templates with no active shifts are absent from the map.
	LastShiftDates(ctx context.Context, templateIDs []int64) (map[int64]time.Time, error)

	// LastMatchedHistoricalDates returns, per template, the newest date on
	// or before today holding an active shift whose weekday is in the
	// template's day set.
	LastMatchedHistoricalDates(ctx context.Context, templateIDs []int64, today time.Time) (map[int64]time.Time, error)

	// === Shift Insertion ===

	// InsertShifts bulk-inserts one batch of shifts and returns the number
	// of rows written. The batch is applied atomically.
	InsertShifts(ctx context.Context, shifts []domain.Shift) (int64, error)

	// InsertShiftReturningID inserts a single shift and returns its new id.
	InsertShiftReturningID(ctx context.Context, shift domain.Shift) (int64, error)

	// CopyScanAreas set-copies scan-area rows from template tables to the
	// per-shift tables for the given keys.
	CopyScanAreas(ctx context.Context, keys []domain.CopyKey) (int64, error)

	// CopyClaims set-copies claim rows from claim templates to the
	// per-shift tables for the given keys.
	CopyClaims(ctx context.Context, keys []domain.CopyKey) (int64, error)

	// CloneGroupRow copies the group definition row and returns the new
	// occurrence group id.
	CloneGroupRow(ctx context.Context, groupID int64) (int64, error)

	// CreateGroupRow creates a fresh employee-schedule group row and
	// returns its id.
	CreateGroupRow(ctx context.Context) (int64, error)

	// === Finalization ===

	// AdvanceWeeklyLastRun stamps last_run on every given weekly template.
	AdvanceWeeklyLastRun(ctx context.Context, templateIDs []int64, runAt time.Time) error

	// AdvanceMonthlyLastRun stamps last_run on the given monthly templates;
	// callers pass the first day of the month after the one expanded.
	AdvanceMonthlyLastRun(ctx context.Context, templateIDs []int64, lastRun time.Time) error

	// SaveTracking upserts one multi-week tracking row.
	SaveTracking(ctx context.Context, row domain.TrackingRow) error

	// InsertAuditRows bulk-inserts one batch of audit rows.
	InsertAuditRows(ctx context.Context, rows []domain.AuditRow) error

	// InsertConflictRows bulk-inserts one batch of conflict rows.
	InsertConflictRows(ctx context.Context, rows []domain.ConflictRow) error

	// PruneAudit deletes audit, conflict, and run summary rows older than
	// before. Returns total rows deleted.
	PruneAudit(ctx context.Context, before time.Time) (int64, error)

	// === Single-template Path ===

	// FindTemplate returns one template by id, or
	// domain.ErrTemplateNotFound.
	FindTemplate(ctx context.Context, templateID int64) (*domain.ShiftTemplate, error)

	// DeleteFutureShiftsForTemplate soft-deletes the template's future
	// shifts that are unlinked and unclaimed. Returns rows changed.
	DeleteFutureShiftsForTemplate(ctx context.Context, templateID int64, from time.Time) (int64, error)

	// ListClientStandardKeys is ListStandardKeys narrowed to one client.
	ListClientStandardKeys(ctx context.Context, clientID int64, from, to time.Time) ([]domain.StandardKey, error)

	// ListClientOpenClaimKeys is ListOpenClaimKeys narrowed to one client.
	ListClientOpenClaimKeys(ctx context.Context, clientID int64, from, to time.Time) ([]domain.OpenClaimKey, error)

	// AdvanceTemplateLastRun stamps last_run on a single template.
	AdvanceTemplateLastRun(ctx context.Context, templateID int64, runAt time.Time) error
}
