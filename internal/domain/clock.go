package domain

import "time"

// The engine computes on wall-clock values: calendar components tagged UTC,
// regardless of the zone they were observed in. A day is then always exactly
// 24h, so interval math (DaySpan * 24h) cannot drift across DST transitions
// in the session zone. The configured zone is consulted exactly once per
// run, to turn the real clock into a base date.

// DateIn returns the calendar date of instant t observed in loc, as a
// wall-clock midnight.
func DateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a wall-clock midnight from components.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MidnightOf truncates a wall-clock timestamp to its date.
func MidnightOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MinuteOf truncates a wall-clock timestamp to minute precision. Dedup keys
// compare at this resolution.
func MinuteOf(t time.Time) int64 {
	return t.Unix() / 60
}

// MonthStart returns the first day of t's month as a wall-clock midnight.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths advances a month start by n calendar months.
func AddMonths(monthStart time.Time, n int) time.Time {
	return time.Date(monthStart.Year(), monthStart.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of t's month as a wall-clock midnight.
func MonthEnd(t time.Time) time.Time {
	return AddMonths(MonthStart(t), 1).AddDate(0, 0, -1)
}
