package engine

import (
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

// groupDateKey marks one group occurrence already handled on a date, so
// only one representative per group enters the group pathway.
type groupDateKey struct {
	GroupID int64
	Date    time.Time
}

// runState is the mutable state owned by a single run. It is built at run
// start, threaded explicitly through the stages, and never outlives the
// run.
type runState struct {
	runID string
	opts  RunOptions

	// today is the wall-clock base date; windowEnd closes the weekly day
	// walk (inclusive). dedupeTo is the exclusive snapshot bound covering
	// both horizons plus one day.
	today     time.Time
	windowEnd time.Time
	dedupeTo  time.Time

	advanceDays int
	monthsAhead int
	filter      TemplateFilter

	weekly  []domain.ShiftTemplate
	monthly []domain.ShiftTemplate

	dedup     *dedupSets
	overlaps  *overlapIndex
	scanAreas map[int64]struct{}
	claims    map[int64]struct{}
	tracking  map[int64]domain.TrackingRow

	// validDates holds the pre-computed multi-week date set per template.
	validDates map[int64]map[time.Time]struct{}

	// lastShift is the newest active shift date per multi-week template
	// before this run; lastProduced tracks the newest date committed during
	// it. Finalization advances tracking to the max of the two.
	lastShift    map[int64]time.Time
	lastProduced map[int64]time.Time

	// monthlyLoaded records the latest month each monthly template was
	// eligible for; finalization stamps last_run per month group.
	monthlyLoaded map[int64]time.Time

	// weeklyGroups and monthlyGroups index grouped templates by group id,
	// ascending template id.
	weeklyGroups  map[int64][]int
	monthlyGroups map[int64][]int

	groupDone map[groupDateKey]bool

	audit   *auditBuffer
	summary *domain.RunSummary
}

func newRunState(runID string, base time.Time, opts RunOptions, cfg Config) *runState {
	today := domain.DateIn(base, cfg.Location)

	advanceDays := opts.AdvanceDays
	if advanceDays <= 0 {
		advanceDays = cfg.AdvanceDays
	}
	monthsAhead := opts.MonthsAhead
	if monthsAhead <= 0 {
		monthsAhead = cfg.MonthsAhead
	}

	windowEnd := today.AddDate(0, 0, advanceDays)
	monthlyEnd := today.AddDate(0, monthsAhead, 0)
	dedupeTo := windowEnd
	if monthlyEnd.After(dedupeTo) {
		dedupeTo = monthlyEnd
	}
	dedupeTo = dedupeTo.AddDate(0, 0, 1)

	return &runState{
		runID:        runID,
		opts:         opts,
		today:        today,
		windowEnd:    windowEnd,
		dedupeTo:     dedupeTo,
		advanceDays:  advanceDays,
		monthsAhead:  monthsAhead,
		filter:       TemplateFilter{CompanyID: opts.CompanyID, TemplateID: opts.TemplateID, Today: today},
		dedup:        newDedupSets(),
		overlaps:     newOverlapIndex(),
		scanAreas:    make(map[int64]struct{}),
		claims:       make(map[int64]struct{}),
		tracking:     make(map[int64]domain.TrackingRow),
		validDates:   make(map[int64]map[time.Time]struct{}),
		lastShift:    make(map[int64]time.Time),
		lastProduced: make(map[int64]time.Time),

		monthlyLoaded: make(map[int64]time.Time),
		weeklyGroups:  make(map[int64][]int),
		monthlyGroups: make(map[int64][]int),

		groupDone: make(map[groupDateKey]bool),
		audit:     newAuditBuffer(runID, today),
	}
}

// noteProduced records a committed date for multi-week tracking advance.
func (st *runState) noteProduced(templateID int64, date time.Time) {
	if cur, ok := st.lastProduced[templateID]; !ok || date.After(cur) {
		st.lastProduced[templateID] = date
	}
}

// noteMonthlyLoaded records that a monthly template was eligible for the
// given month. Only the latest month matters for the last_run stamp.
func (st *runState) noteMonthlyLoaded(templateID int64, month time.Time) {
	if cur, ok := st.monthlyLoaded[templateID]; !ok || month.After(cur) {
		st.monthlyLoaded[templateID] = month
	}
}

// groupMembers returns the indexes of all templates sharing the group,
// ascending by template id.
func (st *runState) groupMembers(weekly bool, groupID int64) []int {
	if weekly {
		return st.weeklyGroups[groupID]
	}
	return st.monthlyGroups[groupID]
}

// hasScanAreas reports the template's scan-area capability.
func (st *runState) hasScanAreas(templateID int64) bool {
	_, ok := st.scanAreas[templateID]
	return ok
}

// hasClaims reports the template's claim capability.
func (st *runState) hasClaims(templateID int64) bool {
	_, ok := st.claims[templateID]
	return ok
}
