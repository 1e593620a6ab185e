package domain

import "time"

// RunStatus is the terminal (or in-flight) state of one engine run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "Running"
	RunStatusCompleted RunStatus = "Completed"
	RunStatusBlocked   RunStatus = "Blocked"
	RunStatusCancelled RunStatus = "Cancelled"
	RunStatusFailed    RunStatus = "Failed"
)

// RunSummary is the one-row-per-run record in run_summary.
type RunSummary struct {
	RunID       string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	DurationSec float64

	// Totals. Retracted counts cleanup soft-deletes; the four audit counters
	// partition every candidate the expansion stage evaluated.
	WeeklyTemplates  int
	MonthlyTemplates int
	Created          int
	Duplicates       int
	Overlaps         int
	Errors           int
	Retracted        int

	Error string
}

// Outcome classifies one evaluated candidate in the audit log.
type Outcome string

const (
	OutcomeCreated   Outcome = "Created"
	OutcomeDuplicate Outcome = "Duplicate"
	OutcomeOverlap   Outcome = "Overlap"
	OutcomeError     Outcome = "Error"
)

// AuditRow records one evaluated candidate. ShiftID is set only when a
// concrete row id is known, i.e. on the individual insert paths.
type AuditRow struct {
	RunID      string
	RunDate    time.Time
	TemplateID int64
	ShiftID    *int64
	EmployeeID int64
	ClientID   int64
	StartAt    time.Time
	EndAt      time.Time
	Outcome    Outcome
	ErrorDesc  string
	Kind       RecurrenceKind
	Pattern    string
}

// ConflictRow records one overlap-blocked candidate together with the
// existing shift it collided with.
type ConflictRow struct {
	RunID string

	// Blocked candidate.
	TemplateID int64
	EmployeeID int64
	ClientID   int64
	StartAt    time.Time
	EndAt      time.Time

	// Colliding existing shift.
	WithShiftID    int64
	WithTemplateID int64
	WithClientID   int64
	WithStartAt    time.Time
	WithEndAt      time.Time

	DetectedAt time.Time
}

// TrackingRow is the per-template multi-week cursor.
type TrackingRow struct {
	TemplateID     int64
	NextDate       time.Time
	ChangedThisRun bool
	EditMode       bool
}

// RunSession is the cross-process mutex row. JobName is the lock key; a
// session past ExpiresAt is treated as abandoned by its holder.
type RunSession struct {
	JobName   string
	RunID     string
	Holder    string
	StartedAt time.Time
	ExpiresAt time.Time
}
