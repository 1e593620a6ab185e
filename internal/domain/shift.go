package domain

import "time"

// Shift is a dated, absolute-time instance materialized from a template.
// All timestamps are wall-clock values tagged UTC (see DateIn).
type Shift struct {
	ID         int64
	TemplateID int64
	ClientID   int64
	EmployeeID int64
	CompanyID  int64
	GroupID    int64

	StartAt time.Time
	EndAt   time.Time

	// Note distinguishes engine-created rows in the shared shifts table.
	Note string

	// Fields owned by the clock-in path once set. The engine copies them on
	// load and must never write them.
	TimecardRef   string
	ActualStartAt *time.Time
	ActualEndAt   *time.Time

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Attributes carried over from the template.
	AlertEnabled      bool
	RoundingMinutes   int
	RestrictedClockIn bool
}

// Notes written on engine-created shifts, by recurrence kind.
const (
	NoteWeekly  = "Scheduled Event"
	NoteMonthly = "Schedule Event Monthly"
)

// Linked reports whether an external timecard references this shift. Legacy
// writers stored both empty and "0" for "no timecard".
func (s *Shift) Linked() bool {
	return s.TimecardRef != "" && s.TimecardRef != "0"
}

// StandardKey is the duplicate-detection key shared by all schedule kinds
// except open claims. Timestamps participate at minute precision.
type StandardKey struct {
	ClientID   int64
	EmployeeID int64
	StartMin   int64
	EndMin     int64
}

// NewStandardKey builds a StandardKey from an absolute interval.
func NewStandardKey(clientID, employeeID int64, start, end time.Time) StandardKey {
	return StandardKey{
		ClientID:   clientID,
		EmployeeID: employeeID,
		StartMin:   MinuteOf(start),
		EndMin:     MinuteOf(end),
	}
}

// OpenClaimKey narrows StandardKey by template so several open-claim
// templates may coexist at the same slot.
type OpenClaimKey struct {
	TemplateID int64
	Key        StandardKey
}

// NewOpenClaimKey builds an OpenClaimKey from an absolute interval.
func NewOpenClaimKey(templateID, clientID, employeeID int64, start, end time.Time) OpenClaimKey {
	return OpenClaimKey{
		TemplateID: templateID,
		Key:        NewStandardKey(clientID, employeeID, start, end),
	}
}

// CopyKey identifies one generated shift for the set-based scan-area and
// claim copies that run after a bulk insert.
type CopyKey struct {
	TemplateID int64
	EmployeeID int64
	Date       time.Time
}

// ShiftInterval is the overlap-index tuple for one existing assigned shift.
type ShiftInterval struct {
	EmployeeID int64
	ClientID   int64
	ShiftID    int64
	TemplateID int64
	StartAt    time.Time
	EndAt      time.Time
}
