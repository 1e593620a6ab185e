package engine

import (
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

// auditBuffer accumulates the run's audit and conflict rows in memory; they
// are bulk-flushed during finalization. Counters partition every candidate
// evaluated, so created+duplicates+overlaps+errors always equals the number
// of candidates that reached the duplicate probe.
type auditBuffer struct {
	runID   string
	runDate time.Time

	rows      []domain.AuditRow
	conflicts []domain.ConflictRow

	created    int
	duplicates int
	overlaps   int
	errors     int
}

func newAuditBuffer(runID string, runDate time.Time) *auditBuffer {
	return &auditBuffer{runID: runID, runDate: runDate}
}

func (b *auditBuffer) row(tpl *domain.ShiftTemplate, start, end time.Time, outcome domain.Outcome) domain.AuditRow {
	return domain.AuditRow{
		RunID:      b.runID,
		RunDate:    b.runDate,
		TemplateID: tpl.ID,
		EmployeeID: tpl.EmployeeID,
		ClientID:   tpl.ClientID,
		StartAt:    start,
		EndAt:      end,
		Outcome:    outcome,
		Kind:       tpl.Recurrence,
		Pattern:    tpl.PatternText(),
	}
}

// addCreated records an accepted candidate. shiftID is non-nil only on the
// individual insert paths where the new row id is known.
func (b *auditBuffer) addCreated(tpl *domain.ShiftTemplate, start, end time.Time, shiftID *int64) {
	r := b.row(tpl, start, end, domain.OutcomeCreated)
	r.ShiftID = shiftID
	b.rows = append(b.rows, r)
	b.created++
}

func (b *auditBuffer) addDuplicate(tpl *domain.ShiftTemplate, start, end time.Time) {
	b.rows = append(b.rows, b.row(tpl, start, end, domain.OutcomeDuplicate))
	b.duplicates++
}

// addOverlap records a blocked candidate and the conflict pairing it with
// the colliding shift.
func (b *auditBuffer) addOverlap(tpl *domain.ShiftTemplate, start, end time.Time, with domain.ShiftInterval, detectedAt time.Time) {
	b.rows = append(b.rows, b.row(tpl, start, end, domain.OutcomeOverlap))
	b.conflicts = append(b.conflicts, domain.ConflictRow{
		RunID:          b.runID,
		TemplateID:     tpl.ID,
		EmployeeID:     tpl.EmployeeID,
		ClientID:       tpl.ClientID,
		StartAt:        start,
		EndAt:          end,
		WithShiftID:    with.ShiftID,
		WithTemplateID: with.TemplateID,
		WithClientID:   with.ClientID,
		WithStartAt:    with.StartAt,
		WithEndAt:      with.EndAt,
		DetectedAt:     detectedAt,
	})
	b.overlaps++
}

func (b *auditBuffer) addError(tpl *domain.ShiftTemplate, start, end time.Time, desc string) {
	r := b.row(tpl, start, end, domain.OutcomeError)
	r.ErrorDesc = desc
	b.rows = append(b.rows, r)
	b.errors++
}

// snapshotCounts returns the outcome counters in created, duplicates,
// overlaps, errors order, for per-stage delta logging.
func (b *auditBuffer) snapshotCounts() [4]int {
	return [4]int{b.created, b.duplicates, b.overlaps, b.errors}
}
