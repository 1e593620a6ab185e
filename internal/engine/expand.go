package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/recurrence"
)

// expandWeekly walks the emission window one day at a time and evaluates
// every weekly template whose weekday set covers the day. Day-major order
// makes intra-run conflict resolution deterministic: a candidate on an
// earlier date always wins the overlap probe against one on a later date.
func (e *Engine) expandWeekly(ctx context.Context, logger *slog.Logger, st *runState) error {
	if len(st.weekly) == 0 {
		logger.InfoContext(ctx, "no weekly templates in working set")
		return nil
	}

	before := st.audit.snapshotCounts()
	b := newShiftBatcher(e, logger)
	for day := st.today; !day.After(st.windowEnd); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		dow := day.Weekday()
		for i := range st.weekly {
			tpl := &st.weekly[i]
			if !tpl.Weekdays.On(dow) {
				continue
			}
			if !effectiveOn(tpl, st.today, day) {
				continue
			}
			if tpl.IsMultiWeek() {
				if _, ok := st.validDates[tpl.ID][day]; !ok {
					continue
				}
			}
			if tpl.GroupID > 0 {
				if err := e.expandGroup(ctx, st, tpl, day, true); err != nil {
					return err
				}
				continue
			}
			start, end, ok := e.admit(st, tpl, day)
			if !ok {
				continue
			}
			st.audit.addCreated(tpl, start, end, nil)
			if err := b.add(ctx, routeFor(st, tpl, true), buildShift(tpl, start, end, domain.NoteWeekly, 0)); err != nil {
				return err
			}
		}
	}
	if err := b.flushAll(ctx); err != nil {
		return err
	}

	logStageCounts(ctx, logger, "weekly expansion complete", before, st.audit.snapshotCounts())
	return nil
}

// expandMonthly evaluates every monthly template against each month in the
// horizon. Eligibility is stamp based: a template whose last_run already
// lies past the month's end was handled by an earlier run and is skipped
// without auditing. Candidates that resolve to a date before today are
// also skipped silently, since the dedup window cannot vouch for the past.
func (e *Engine) expandMonthly(ctx context.Context, logger *slog.Logger, st *runState) error {
	if len(st.monthly) == 0 {
		logger.InfoContext(ctx, "no monthly templates in working set")
		return nil
	}

	before := st.audit.snapshotCounts()
	b := newShiftBatcher(e, logger)
	first := domain.MonthStart(st.today)
	for k := 0; k < st.monthsAhead; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		month := domain.AddMonths(first, k)
		monthEnd := domain.MonthEnd(month)
		for i := range st.monthly {
			tpl := &st.monthly[i]
			if tpl.LastRun != nil && tpl.LastRun.After(monthEnd) {
				continue
			}
			st.noteMonthlyLoaded(tpl.ID, month)

			dow, ok := tpl.Weekdays.First()
			if !ok {
				start, end := tpl.IntervalOn(month)
				st.audit.addError(tpl, start, end, domain.ErrNoWeekday.Error())
				continue
			}
			if tpl.NthWeekday < 0 {
				start, end := tpl.IntervalOn(month)
				st.audit.addError(tpl, start, end, fmt.Sprintf("invalid nth weekday index %d", tpl.NthWeekday))
				continue
			}
			date, ok := recurrence.NthWeekdayInMonth(month, dow, tpl.NthWeekday)
			if !ok {
				continue
			}
			if date.Before(st.today) {
				continue
			}
			if !effectiveOn(tpl, st.today, date) {
				continue
			}
			if tpl.GroupID > 0 {
				if err := e.expandGroup(ctx, st, tpl, date, false); err != nil {
					return err
				}
				continue
			}
			start, end, ok := e.admit(st, tpl, date)
			if !ok {
				continue
			}
			st.audit.addCreated(tpl, start, end, nil)
			if err := b.add(ctx, routeFor(st, tpl, false), buildShift(tpl, start, end, domain.NoteMonthly, 0)); err != nil {
				return err
			}
		}
	}
	if err := b.flushAll(ctx); err != nil {
		return err
	}

	logStageCounts(ctx, logger, "monthly expansion complete", before, st.audit.snapshotCounts())
	return nil
}

// admit runs the candidate pipeline for (tpl, date): the duplicate probe
// against both key sets, then the overlap probe. Rejections are audited.
// Acceptance commits the interval to the in-run indexes so every later
// candidate, weekly or monthly, sees it.
func (e *Engine) admit(st *runState, tpl *domain.ShiftTemplate, date time.Time) (start, end time.Time, ok bool) {
	start, end = tpl.IntervalOn(date)
	if st.dedup.seen(tpl, start, end) {
		st.audit.addDuplicate(tpl, start, end)
		return start, end, false
	}
	if with, hit := st.overlaps.probe(tpl.EmployeeID, tpl.ClientID, start, end); hit {
		st.audit.addOverlap(tpl, start, end, with, e.clock().UTC())
		return start, end, false
	}

	st.dedup.commit(tpl, start, end)
	st.overlaps.register(domain.ShiftInterval{
		EmployeeID: tpl.EmployeeID,
		ClientID:   tpl.ClientID,
		TemplateID: tpl.ID,
		StartAt:    start,
		EndAt:      end,
	})
	if tpl.IsMultiWeek() {
		st.noteProduced(tpl.ID, date)
	}
	return start, end, true
}

// effectiveOn reports whether the template is live today and still covers
// the candidate date.
func effectiveOn(tpl *domain.ShiftTemplate, today, date time.Time) bool {
	if tpl.StartDate.After(today) {
		return false
	}
	if tpl.EndDate != nil && date.After(*tpl.EndDate) {
		return false
	}
	return true
}

// routeFor picks the insert route by template capability. Claim rows are
// copied for weekly emissions only; monthly occurrences never carry them.
func routeFor(st *runState, tpl *domain.ShiftTemplate, weekly bool) int {
	scan := st.hasScanAreas(tpl.ID)
	claim := weekly && st.hasClaims(tpl.ID)
	switch {
	case claim && scan:
		return routeClaimScan
	case claim:
		return routeClaim
	case scan:
		return routeScan
	default:
		return routePlain
	}
}

func buildShift(tpl *domain.ShiftTemplate, start, end time.Time, note string, groupID int64) domain.Shift {
	return domain.Shift{
		TemplateID:        tpl.ID,
		ClientID:          tpl.ClientID,
		EmployeeID:        tpl.EmployeeID,
		CompanyID:         tpl.CompanyID,
		GroupID:           groupID,
		StartAt:           start,
		EndAt:             end,
		Note:              note,
		IsActive:          true,
		AlertEnabled:      tpl.AlertEnabled,
		RoundingMinutes:   tpl.RoundingMinutes,
		RestrictedClockIn: tpl.RestrictedClockIn,
	}
}

func logStageCounts(ctx context.Context, logger *slog.Logger, msg string, before, after [4]int) {
	logger.InfoContext(ctx, msg,
		"created", after[0]-before[0],
		"duplicates", after[1]-before[1],
		"overlaps", after[2]-before[2],
		"errors", after[3]-before[3])
}
