package engine

import (
	"context"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

// mockRepo implements Repository in memory. Templates are held as pointers
// so stamp and reset methods mutate seeded state the way the SQL layer
// would, which lets tests drive consecutive runs against one repo. Any
// behavior can be overridden per test through the corresponding func field.
type mockRepo struct {
	// Seeded state.
	templates      []*domain.ShiftTemplate
	stdKeys        []domain.StandardKey
	openKeys       []domain.OpenClaimKey
	intervals      []domain.ShiftInterval
	scanAreas      map[int64]struct{}
	claims         map[int64]struct{}
	tracking       map[int64]domain.TrackingRow
	lastHistorical map[int64]time.Time
	retractable    []int64
	resetMultiWeek []int64
	session        *domain.RunSession

	// Recorded effects.
	shifts           []domain.Shift
	deactivated      map[int64]struct{}
	deactivateCalls  [][]int64
	scanCopies       []domain.CopyKey
	claimCopies      []domain.CopyKey
	clonedGroups     []int64
	createdGroups    int
	audits           []domain.AuditRow
	conflicts        []domain.ConflictRow
	summaries        map[string]domain.RunSummary
	summaryOrder     []string
	weeklyStamped    []int64
	weeklyStampedAt  time.Time
	monthlyStamps    map[time.Time][]int64
	savedTracking    []domain.TrackingRow
	clearedResetAt   *time.Time
	markResetCalls   int
	truncatedQueue   int
	purgeCalls       int
	pruneBefore      *time.Time
	acquireCalls     int
	purgedTemplates  map[int64]time.Time
	templateStamps   map[int64]time.Time
	bulkInsertCalls  int
	singleInsertIDs  []int64
	nextShiftID      int64
	nextGroupID      int64

	// Overrides.
	acquireFunc       func(ctx context.Context, session domain.RunSession) error
	listWeeklyFunc    func(ctx context.Context, filter TemplateFilter) ([]domain.ShiftTemplate, error)
	insertShiftsFunc  func(ctx context.Context, shifts []domain.Shift) (int64, error)
	deactivateFunc    func(ctx context.Context, ids []int64) (int64, error)
	insertSummaryFunc func(ctx context.Context, summary *domain.RunSummary) error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		scanAreas:       map[int64]struct{}{},
		claims:          map[int64]struct{}{},
		tracking:        map[int64]domain.TrackingRow{},
		lastHistorical:  map[int64]time.Time{},
		deactivated:     map[int64]struct{}{},
		summaries:       map[string]domain.RunSummary{},
		monthlyStamps:   map[time.Time][]int64{},
		purgedTemplates: map[int64]time.Time{},
		templateStamps:  map[int64]time.Time{},
		nextShiftID:     1000,
		nextGroupID:     9000,
	}
}

func (m *mockRepo) addTemplate(t domain.ShiftTemplate) *domain.ShiftTemplate {
	tpl := t
	m.templates = append(m.templates, &tpl)
	return &tpl
}

// seedShift registers a pre-existing shift so dedup keys, overlap tuples,
// and last-shift dates derive from it like rows already in the table.
func (m *mockRepo) seedShift(s domain.Shift) int64 {
	m.nextShiftID++
	s.ID = m.nextShiftID
	if s.Note == "" {
		s.Note = domain.NoteWeekly
	}
	s.IsActive = true
	m.shifts = append(m.shifts, s)
	return s.ID
}

func (m *mockRepo) activeShifts() []domain.Shift {
	out := make([]domain.Shift, 0, len(m.shifts))
	for _, s := range m.shifts {
		if _, gone := m.deactivated[s.ID]; gone {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (m *mockRepo) shiftsForTemplate(templateID int64) []domain.Shift {
	var out []domain.Shift
	for _, s := range m.activeShifts() {
		if s.TemplateID == templateID {
			out = append(out, s)
		}
	}
	return out
}

// === Run Session ===

func (m *mockRepo) AcquireRunSession(ctx context.Context, session domain.RunSession) error {
	m.acquireCalls++
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, session)
	}
	if m.session != nil && session.StartedAt.Before(m.session.ExpiresAt) {
		return domain.ErrRunActive
	}
	s := session
	m.session = &s
	return nil
}

func (m *mockRepo) ReleaseRunSession(ctx context.Context, jobName, runID string) error {
	if m.session == nil || m.session.JobName != jobName || m.session.RunID != runID {
		return domain.ErrSessionNotHeld
	}
	m.session = nil
	return nil
}

func (m *mockRepo) ActiveRunSession(ctx context.Context, jobName string) (*domain.RunSession, error) {
	if m.session == nil || m.session.JobName != jobName {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

// === Run Summary ===

func (m *mockRepo) InsertRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	if m.insertSummaryFunc != nil {
		return m.insertSummaryFunc(ctx, summary)
	}
	m.summaries[summary.RunID] = *summary
	m.summaryOrder = append(m.summaryOrder, summary.RunID)
	return nil
}

func (m *mockRepo) UpdateRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	m.summaries[summary.RunID] = *summary
	return nil
}

func (m *mockRepo) ListRecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	var out []domain.RunSummary
	for i := len(m.summaryOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.summaries[m.summaryOrder[i]])
	}
	return out, nil
}

// === Cleanup ===

func (m *mockRepo) ListRetractableShiftIDs(ctx context.Context, today time.Time) ([]int64, error) {
	return append([]int64(nil), m.retractable...), nil
}

func (m *mockRepo) DeactivateShifts(ctx context.Context, ids []int64) (int64, error) {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, ids)
	}
	m.deactivateCalls = append(m.deactivateCalls, append([]int64(nil), ids...))
	for _, id := range ids {
		m.deactivated[id] = struct{}{}
	}
	return int64(len(ids)), nil
}

func (m *mockRepo) ListResetMultiWeekTemplateIDs(ctx context.Context) ([]int64, error) {
	return append([]int64(nil), m.resetMultiWeek...), nil
}

func (m *mockRepo) ClearResetFlags(ctx context.Context, lastRun time.Time) (int64, error) {
	at := lastRun
	m.clearedResetAt = &at
	var n int64
	for _, tpl := range m.templates {
		if tpl.IsReset {
			tpl.IsReset = false
			lr := lastRun
			tpl.LastRun = &lr
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) MarkTemplatesReset(ctx context.Context, companyID, templateID int64) (int64, error) {
	m.markResetCalls++
	var n int64
	for _, tpl := range m.templates {
		if companyID != 0 && tpl.CompanyID != companyID {
			continue
		}
		if templateID != 0 && tpl.ID != templateID {
			continue
		}
		tpl.IsReset = true
		n++
	}
	return n, nil
}

func (m *mockRepo) TruncateWorkQueue(ctx context.Context) error {
	m.truncatedQueue++
	return nil
}

func (m *mockRepo) PurgeRetiredShifts(ctx context.Context, before time.Time, limit int) (int64, error) {
	m.purgeCalls++
	return 0, nil
}

// === Snapshot ===

func (m *mockRepo) ListWeeklyTemplates(ctx context.Context, filter TemplateFilter) ([]domain.ShiftTemplate, error) {
	if m.listWeeklyFunc != nil {
		return m.listWeeklyFunc(ctx, filter)
	}
	cutoff := filter.Today.AddDate(0, 0, 1)
	var out []domain.ShiftTemplate
	for _, tpl := range m.templates {
		if tpl.Recurrence != domain.RecurrenceWeekly || !tpl.IsActive {
			continue
		}
		if !matchesFilter(tpl, filter) {
			continue
		}
		if tpl.EndDate != nil && tpl.EndDate.Before(filter.Today) {
			continue
		}
		if tpl.LastRun != nil && !tpl.LastRun.Before(cutoff) {
			continue
		}
		out = append(out, *tpl)
	}
	return out, nil
}

func (m *mockRepo) ListMonthlyTemplates(ctx context.Context, filter TemplateFilter) ([]domain.ShiftTemplate, error) {
	var out []domain.ShiftTemplate
	for _, tpl := range m.templates {
		if tpl.Recurrence != domain.RecurrenceMonthly || !tpl.IsActive {
			continue
		}
		if !matchesFilter(tpl, filter) {
			continue
		}
		if tpl.EndDate != nil && tpl.EndDate.Before(filter.Today) {
			continue
		}
		out = append(out, *tpl)
	}
	return out, nil
}

func matchesFilter(tpl *domain.ShiftTemplate, filter TemplateFilter) bool {
	if filter.CompanyID != 0 && tpl.CompanyID != filter.CompanyID {
		return false
	}
	if filter.TemplateID != 0 && tpl.ID != filter.TemplateID {
		return false
	}
	return true
}

func (m *mockRepo) ListStandardKeys(ctx context.Context, from, to time.Time) ([]domain.StandardKey, error) {
	out := append([]domain.StandardKey(nil), m.stdKeys...)
	for _, s := range m.activeShifts() {
		out = append(out, domain.NewStandardKey(s.ClientID, s.EmployeeID, s.StartAt, s.EndAt))
	}
	return out, nil
}

func (m *mockRepo) ListOpenClaimKeys(ctx context.Context, from, to time.Time) ([]domain.OpenClaimKey, error) {
	out := append([]domain.OpenClaimKey(nil), m.openKeys...)
	for _, s := range m.activeShifts() {
		out = append(out, domain.NewOpenClaimKey(s.TemplateID, s.ClientID, s.EmployeeID, s.StartAt, s.EndAt))
	}
	return out, nil
}

func (m *mockRepo) ListShiftIntervals(ctx context.Context, from, to time.Time) ([]domain.ShiftInterval, error) {
	out := append([]domain.ShiftInterval(nil), m.intervals...)
	for _, s := range m.activeShifts() {
		if s.EmployeeID == 0 {
			continue
		}
		out = append(out, domain.ShiftInterval{
			EmployeeID: s.EmployeeID,
			ClientID:   s.ClientID,
			ShiftID:    s.ID,
			TemplateID: s.TemplateID,
			StartAt:    s.StartAt,
			EndAt:      s.EndAt,
		})
	}
	return out, nil
}

func (m *mockRepo) ListScanAreaTemplateIDs(ctx context.Context) (map[int64]struct{}, error) {
	return m.scanAreas, nil
}

func (m *mockRepo) ListClaimTemplateIDs(ctx context.Context) (map[int64]struct{}, error) {
	return m.claims, nil
}

func (m *mockRepo) ListTracking(ctx context.Context) (map[int64]domain.TrackingRow, error) {
	out := make(map[int64]domain.TrackingRow, len(m.tracking))
	for id, row := range m.tracking {
		out[id] = row
	}
	return out, nil
}

func (m *mockRepo) LastShiftDates(ctx context.Context, templateIDs []int64) (map[int64]time.Time, error) {
	out := map[int64]time.Time{}
	for _, id := range templateIDs {
		for _, s := range m.shiftsForTemplate(id) {
			d := domain.MidnightOf(s.StartAt)
			if cur, ok := out[id]; !ok || d.After(cur) {
				out[id] = d
			}
		}
	}
	return out, nil
}

func (m *mockRepo) LastMatchedHistoricalDates(ctx context.Context, templateIDs []int64, today time.Time) (map[int64]time.Time, error) {
	out := map[int64]time.Time{}
	for _, id := range templateIDs {
		if d, ok := m.lastHistorical[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

// === Shift Insertion ===

func (m *mockRepo) InsertShifts(ctx context.Context, shifts []domain.Shift) (int64, error) {
	if m.insertShiftsFunc != nil {
		return m.insertShiftsFunc(ctx, shifts)
	}
	m.bulkInsertCalls++
	for _, s := range shifts {
		m.nextShiftID++
		s.ID = m.nextShiftID
		m.shifts = append(m.shifts, s)
	}
	return int64(len(shifts)), nil
}

func (m *mockRepo) InsertShiftReturningID(ctx context.Context, shift domain.Shift) (int64, error) {
	m.nextShiftID++
	shift.ID = m.nextShiftID
	m.shifts = append(m.shifts, shift)
	m.singleInsertIDs = append(m.singleInsertIDs, shift.ID)
	return shift.ID, nil
}

func (m *mockRepo) CopyScanAreas(ctx context.Context, keys []domain.CopyKey) (int64, error) {
	m.scanCopies = append(m.scanCopies, keys...)
	return int64(len(keys)), nil
}

func (m *mockRepo) CopyClaims(ctx context.Context, keys []domain.CopyKey) (int64, error) {
	m.claimCopies = append(m.claimCopies, keys...)
	return int64(len(keys)), nil
}

func (m *mockRepo) CloneGroupRow(ctx context.Context, groupID int64) (int64, error) {
	m.clonedGroups = append(m.clonedGroups, groupID)
	m.nextGroupID++
	return m.nextGroupID, nil
}

func (m *mockRepo) CreateGroupRow(ctx context.Context) (int64, error) {
	m.createdGroups++
	m.nextGroupID++
	return m.nextGroupID, nil
}

// === Finalization ===

func (m *mockRepo) AdvanceWeeklyLastRun(ctx context.Context, templateIDs []int64, runAt time.Time) error {
	m.weeklyStamped = append(m.weeklyStamped, templateIDs...)
	m.weeklyStampedAt = runAt
	for _, tpl := range m.templates {
		for _, id := range templateIDs {
			if tpl.ID == id {
				at := runAt
				tpl.LastRun = &at
			}
		}
	}
	return nil
}

func (m *mockRepo) AdvanceMonthlyLastRun(ctx context.Context, templateIDs []int64, lastRun time.Time) error {
	m.monthlyStamps[lastRun] = append(m.monthlyStamps[lastRun], templateIDs...)
	for _, tpl := range m.templates {
		for _, id := range templateIDs {
			if tpl.ID == id {
				at := lastRun
				tpl.LastRun = &at
			}
		}
	}
	return nil
}

func (m *mockRepo) SaveTracking(ctx context.Context, row domain.TrackingRow) error {
	m.savedTracking = append(m.savedTracking, row)
	m.tracking[row.TemplateID] = row
	return nil
}

func (m *mockRepo) InsertAuditRows(ctx context.Context, rows []domain.AuditRow) error {
	m.audits = append(m.audits, rows...)
	return nil
}

func (m *mockRepo) InsertConflictRows(ctx context.Context, rows []domain.ConflictRow) error {
	m.conflicts = append(m.conflicts, rows...)
	return nil
}

func (m *mockRepo) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	at := before
	m.pruneBefore = &at
	return 0, nil
}

// === Single-template Path ===

func (m *mockRepo) FindTemplate(ctx context.Context, templateID int64) (*domain.ShiftTemplate, error) {
	for _, tpl := range m.templates {
		if tpl.ID == templateID {
			t := *tpl
			return &t, nil
		}
	}
	return nil, domain.ErrTemplateNotFound
}

func (m *mockRepo) DeleteFutureShiftsForTemplate(ctx context.Context, templateID int64, from time.Time) (int64, error) {
	m.purgedTemplates[templateID] = from
	var n int64
	for _, s := range m.shiftsForTemplate(templateID) {
		if !s.StartAt.Before(from) && !s.Linked() {
			m.deactivated[s.ID] = struct{}{}
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) ListClientStandardKeys(ctx context.Context, clientID int64, from, to time.Time) ([]domain.StandardKey, error) {
	all, _ := m.ListStandardKeys(ctx, from, to)
	var out []domain.StandardKey
	for _, k := range all {
		if k.ClientID == clientID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *mockRepo) ListClientOpenClaimKeys(ctx context.Context, clientID int64, from, to time.Time) ([]domain.OpenClaimKey, error) {
	all, _ := m.ListOpenClaimKeys(ctx, from, to)
	var out []domain.OpenClaimKey
	for _, k := range all {
		if k.Key.ClientID == clientID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *mockRepo) AdvanceTemplateLastRun(ctx context.Context, templateID int64, runAt time.Time) error {
	m.templateStamps[templateID] = runAt
	for _, tpl := range m.templates {
		if tpl.ID == templateID {
			at := runAt
			tpl.LastRun = &at
		}
	}
	return nil
}
