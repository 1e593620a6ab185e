package domain

import (
	"fmt"
	"strings"
	"time"
)

// RecurrenceKind selects the expansion algorithm for a template.
type RecurrenceKind int

const (
	RecurrenceWeekly  RecurrenceKind = 1
	RecurrenceMonthly RecurrenceKind = 2
)

// String returns the audit-facing name of the recurrence kind.
func (k RecurrenceKind) String() string {
	switch k {
	case RecurrenceWeekly:
		return "Weekly"
	case RecurrenceMonthly:
		return "Monthly"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ScheduleKind describes how a generated shift is assigned.
type ScheduleKind int

const (
	ScheduleIndividual  ScheduleKind = 0
	ScheduleOpenClaim   ScheduleKind = 1
	ScheduleSelectClaim ScheduleKind = 2
	ScheduleTeam        ScheduleKind = 3
)

// String returns a readable name for logs and audit rows.
func (k ScheduleKind) String() string {
	switch k {
	case ScheduleIndividual:
		return "Individual"
	case ScheduleOpenClaim:
		return "OpenClaim"
	case ScheduleSelectClaim:
		return "SelectClaim"
	case ScheduleTeam:
		return "Team"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Weekdays is a day-of-week flag set stored as a bitmask, bit 0 = Sunday
// through bit 6 = Saturday, matching time.Weekday ordinals.
type Weekdays uint8

// NewWeekdays builds a flag set from the given days.
func NewWeekdays(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

// On reports whether day d is in the set.
func (w Weekdays) On(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

// Empty reports whether no day is selected.
func (w Weekdays) Empty() bool {
	return w == 0
}

// First returns the lowest selected day. Monthly templates use exactly one
// flag; First picks it out.
func (w Weekdays) First() (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.On(d) {
			return d, true
		}
	}
	return time.Sunday, false
}

var shortDayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// String returns a comma-joined short-day form, e.g. "Mon,Wed,Fri".
func (w Weekdays) String() string {
	var parts []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.On(d) {
			parts = append(parts, shortDayNames[d])
		}
	}
	return strings.Join(parts, ",")
}

// ShiftTemplate is a recurrence definition owned by the surrounding CRUD
// application. The engine reads templates, never creates them; it writes back
// only last_run, is_reset, and the multi-week tracking row.
type ShiftTemplate struct {
	ID         int64
	ClientID   int64
	EmployeeID int64 // 0 = unassigned (open shift)
	CompanyID  int64
	GroupID    int64 // 0 = not grouped

	// Recurrence. WeekStride applies to weekly templates (1 = every week,
	// 2 = biweekly, ...). NthWeekday applies to monthly templates: 0..3 for
	// 1st..4th with overflow-to-last, 4 for an explicit "last".
	Recurrence RecurrenceKind
	WeekStride int
	NthWeekday int
	Weekdays   Weekdays

	// Effectivity. EndDate nil means open-ended; the storage layer folds the
	// legacy 0001-01-01 sentinel into nil so nothing upstream compares
	// against it. LastRun nil means the template has never run.
	StartDate time.Time
	EndDate   *time.Time
	LastRun   *time.Time

	// Timing as wall-clock offsets from midnight. TimeOut <= TimeIn denotes
	// an overnight shift; DaySpan counts how many midnights the shift
	// crosses. Duration is carried through to instances untouched.
	TimeIn   time.Duration
	TimeOut  time.Duration
	DaySpan  int
	Duration time.Duration

	Schedule ScheduleKind

	IsActive bool
	IsReset  bool

	// Attributes copied verbatim onto generated shifts.
	AlertEnabled      bool
	RoundingMinutes   int
	RestrictedClockIn bool
}

// IntervalOn returns the absolute shift interval for a target date, which
// must be a wall-clock midnight. End is always
// start + DaySpan*24h + (TimeOut - TimeIn), so overnight shifts need no
// special casing.
func (t *ShiftTemplate) IntervalOn(date time.Time) (start, end time.Time) {
	start = date.Add(t.TimeIn)
	end = date.Add(time.Duration(t.DaySpan)*24*time.Hour + t.TimeOut)
	return start, end
}

// IsMultiWeek reports whether the template uses multi-week cycle math.
func (t *ShiftTemplate) IsMultiWeek() bool {
	return t.Recurrence == RecurrenceWeekly && t.WeekStride > 1
}

// PatternText renders the recurrence in the audit log's human form.
func (t *ShiftTemplate) PatternText() string {
	switch t.Recurrence {
	case RecurrenceMonthly:
		dow, ok := t.Weekdays.First()
		if !ok {
			return "Monthly (no weekday)"
		}
		return fmt.Sprintf("Monthly %s %s", nthName(t.NthWeekday), shortDayNames[dow])
	default:
		if t.WeekStride > 1 {
			return fmt.Sprintf("Every %d Weeks on %s", t.WeekStride, t.Weekdays)
		}
		return fmt.Sprintf("Weekly on %s", t.Weekdays)
	}
}

func nthName(n int) string {
	switch n {
	case 0:
		return "1st"
	case 1:
		return "2nd"
	case 2:
		return "3rd"
	case 3:
		return "4th"
	default:
		return "Last"
	}
}
