// Package recurrence implements the date math for weekly, multi-week, and
// monthly template expansion. Every input and output is a wall-clock
// midnight (see domain.DateIn); callers own effectivity and duplicate
// filtering.
package recurrence

import (
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

// AnchorInput carries everything anchor resolution looks at for one
// multi-week template.
type AnchorInput struct {
	// StartDate is the template's first effective date.
	StartDate time.Time
	// NeverRan is true when the template has a nil last_run.
	NeverRan bool
	// Tracking is the template's cursor row, nil when none exists.
	Tracking *domain.TrackingRow
	// LastHistorical is the most recent date on or before today that has an
	// instance matching the template's day-of-week set. Zero when none.
	LastHistorical time.Time
	// LastExisting is the most recent date with any instance of the
	// template. Zero when no instances remain.
	LastExisting time.Time
	// Today is the run's base date.
	Today time.Time
}

// ResolveAnchor picks the cycle walk origin and the exclusive lower bound
// below which no date is emitted. The cases are ordered: an edited or reset
// template must restart from its cursor even when history exists, and a
// template whose instances were all retracted must restart from its start
// date.
func ResolveAnchor(in AnchorInput) (anchor, restriction time.Time) {
	switch {
	case in.NeverRan:
		return in.StartDate, in.Today.AddDate(0, 0, -1)
	case in.Tracking != nil && in.Tracking.EditMode:
		return in.Tracking.NextDate, in.Today
	case in.LastExisting.IsZero():
		return in.StartDate, in.StartDate.AddDate(0, 0, -1)
	case !in.LastHistorical.IsZero():
		return in.LastHistorical, in.LastExisting
	case in.Tracking != nil:
		return in.Tracking.NextDate, in.LastExisting
	default:
		return in.LastExisting, in.LastExisting
	}
}

// ValidDates returns the set of dates a template with the given week stride
// may emit in the windowDays after the anchor. Dates come from the first
// week of each stride-sized cycle: cycle i covers the seven days starting
// at anchor + 7*stride*i. Dates at or before restriction are excluded.
//
// The result may extend past the caller's expansion window; membership
// tests against the day iteration bound it.
func ValidDates(anchor, restriction time.Time, stride int, days domain.Weekdays, windowDays int) map[time.Time]struct{} {
	if stride < 1 {
		stride = 1
	}

	valid := make(map[time.Time]struct{})
	cycles := windowDays / (7 * stride)
	for i := 0; i <= cycles; i++ {
		weekStart := anchor.AddDate(0, 0, 7*stride*i)
		for off := 0; off < 7; off++ {
			d := weekStart.AddDate(0, 0, off)
			if days.On(d.Weekday()) && d.After(restriction) {
				valid[d] = struct{}{}
			}
		}
	}
	return valid
}
