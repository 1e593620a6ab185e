package recurrence

import "time"

// NthWeekdayInMonth returns the date of the nth occurrence of dow in the
// month starting at monthStart. n is zero-based: 0..3 select the 1st..4th
// occurrence, 4 and above select the last. A request that walks past the
// end of the month backs off one week; "4th" therefore lands on the last
// occurrence in a four-occurrence month. The second return is false when n
// is negative or no date in the month qualifies.
func NthWeekdayInMonth(monthStart time.Time, dow time.Weekday, n int) (time.Time, bool) {
	if n < 0 {
		return time.Time{}, false
	}
	if n > 4 {
		n = 4
	}

	first := monthStart
	for first.Weekday() != dow {
		first = first.AddDate(0, 0, 1)
	}

	candidate := first.AddDate(0, 0, 7*n)
	if candidate.Month() != monthStart.Month() {
		candidate = candidate.AddDate(0, 0, -7)
	}
	if candidate.Month() != monthStart.Month() {
		return time.Time{}, false
	}
	return candidate, true
}
