package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/recurrence"
)

// RegenerateTemplate serves the "regenerate this template now" action. It
// bypasses the run scaffolding entirely: no session token, no cleanup, no
// overlap probe, no audit trail. Purge first soft-deletes the template's
// future unlinked, unclaimed shifts; expansion then reruns the standard
// date selection against dedup keys scoped to the template's client, so a
// shift that survived the purge is not produced twice. Returns the number
// of shifts created.
//
// Grouped templates regenerate as individual occurrences here; rebuilding
// a whole group occurrence is full-run work.
func (e *Engine) RegenerateTemplate(ctx context.Context, templateID int64, purge bool) (int, error) {
	tpl, err := e.repo.FindTemplate(ctx, templateID)
	if err != nil {
		return 0, err
	}
	if !tpl.IsActive {
		return 0, fmt.Errorf("template %d: %w", templateID, domain.ErrTemplateNotFound)
	}

	logger := e.logger.With("template_id", templateID)
	today := domain.DateIn(e.clock(), e.cfg.Location)

	if purge {
		deleted, err := e.repo.DeleteFutureShiftsForTemplate(ctx, templateID, today)
		if err != nil {
			return 0, fmt.Errorf("failed to purge future shifts: %w", err)
		}
		logger.InfoContext(ctx, "purged future shifts", "count", deleted)
	}

	windowEnd := today.AddDate(0, 0, e.cfg.AdvanceDays)
	dedupeTo := windowEnd
	if monthly := today.AddDate(0, e.cfg.MonthsAhead, 0); monthly.After(dedupeTo) {
		dedupeTo = monthly
	}
	dedupeTo = dedupeTo.AddDate(0, 0, 1)

	dedup := newDedupSets()
	stdKeys, err := e.repo.ListClientStandardKeys(ctx, tpl.ClientID, today, dedupeTo)
	if err != nil {
		return 0, fmt.Errorf("failed to list client dedup keys: %w", err)
	}
	for _, k := range stdKeys {
		dedup.addStandard(k)
	}
	openKeys, err := e.repo.ListClientOpenClaimKeys(ctx, tpl.ClientID, today, dedupeTo)
	if err != nil {
		return 0, fmt.Errorf("failed to list client open-claim keys: %w", err)
	}
	for _, k := range openKeys {
		dedup.addOpenClaim(k)
	}

	var dates []time.Time
	switch tpl.Recurrence {
	case domain.RecurrenceMonthly:
		dates, err = e.leanMonthlyDates(tpl, today)
	default:
		dates, err = e.leanWeeklyDates(ctx, tpl, today, windowEnd)
	}
	if err != nil {
		return 0, err
	}

	created, err := e.insertLean(ctx, logger, tpl, dates, dedup)
	if err != nil {
		return created, err
	}

	if err := e.repo.AdvanceTemplateLastRun(ctx, templateID, e.clock().UTC()); err != nil {
		return created, fmt.Errorf("failed to advance last_run: %w", err)
	}
	logger.InfoContext(ctx, "template regenerated", "created", created)
	return created, nil
}

// leanWeeklyDates selects the weekly emission dates for one template,
// including the multi-week anchor resolution when the stride exceeds one.
func (e *Engine) leanWeeklyDates(ctx context.Context, tpl *domain.ShiftTemplate, today, windowEnd time.Time) ([]time.Time, error) {
	var valid map[time.Time]struct{}
	if tpl.IsMultiWeek() {
		ids := []int64{tpl.ID}
		lastShift, err := e.repo.LastShiftDates(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to list last shift dates: %w", err)
		}
		historical, err := e.repo.LastMatchedHistoricalDates(ctx, ids, today)
		if err != nil {
			return nil, fmt.Errorf("failed to list historical dates: %w", err)
		}
		tracking, err := e.repo.ListTracking(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tracking: %w", err)
		}
		var trackingRow *domain.TrackingRow
		if row, ok := tracking[tpl.ID]; ok {
			trackingRow = &row
		}
		anchor, restriction := recurrence.ResolveAnchor(recurrence.AnchorInput{
			StartDate:      tpl.StartDate,
			NeverRan:       tpl.LastRun == nil,
			Tracking:       trackingRow,
			LastHistorical: historical[tpl.ID],
			LastExisting:   lastShift[tpl.ID],
			Today:          today,
		})
		valid = recurrence.ValidDates(anchor, restriction, tpl.WeekStride, tpl.Weekdays, e.cfg.AdvanceDays)
	}

	var dates []time.Time
	for day := today; !day.After(windowEnd); day = day.AddDate(0, 0, 1) {
		if !tpl.Weekdays.On(day.Weekday()) {
			continue
		}
		if !effectiveOn(tpl, today, day) {
			continue
		}
		if valid != nil {
			if _, ok := valid[day]; !ok {
				continue
			}
		}
		dates = append(dates, day)
	}
	return dates, nil
}

// leanMonthlyDates resolves the nth-weekday occurrence for each month in
// the horizon. Stamp eligibility is ignored here: the action is explicit,
// and the dedup probe suppresses anything that already exists.
func (e *Engine) leanMonthlyDates(tpl *domain.ShiftTemplate, today time.Time) ([]time.Time, error) {
	dow, ok := tpl.Weekdays.First()
	if !ok {
		return nil, fmt.Errorf("template %d: %w", tpl.ID, domain.ErrNoWeekday)
	}
	if tpl.NthWeekday < 0 {
		return nil, fmt.Errorf("template %d: invalid nth weekday index %d", tpl.ID, tpl.NthWeekday)
	}

	var dates []time.Time
	first := domain.MonthStart(today)
	for k := 0; k < e.cfg.MonthsAhead; k++ {
		date, ok := recurrence.NthWeekdayInMonth(domain.AddMonths(first, k), dow, tpl.NthWeekday)
		if !ok {
			continue
		}
		if date.Before(today) || !effectiveOn(tpl, today, date) {
			continue
		}
		dates = append(dates, date)
	}
	return dates, nil
}

func (e *Engine) insertLean(ctx context.Context, logger *slog.Logger, tpl *domain.ShiftTemplate, dates []time.Time, dedup *dedupSets) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}

	scanSet, err := e.repo.ListScanAreaTemplateIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list scan-area templates: %w", err)
	}
	claimSet, err := e.repo.ListClaimTemplateIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list claim templates: %w", err)
	}
	_, hasScan := scanSet[tpl.ID]
	_, hasClaim := claimSet[tpl.ID]
	weekly := tpl.Recurrence != domain.RecurrenceMonthly
	note := domain.NoteWeekly
	if !weekly {
		note = domain.NoteMonthly
	}

	var batch []domain.Shift
	for _, date := range dates {
		start, end := tpl.IntervalOn(date)
		if dedup.seen(tpl, start, end) {
			continue
		}
		dedup.commit(tpl, start, end)
		batch = append(batch, buildShift(tpl, start, end, note, 0))
	}
	if len(batch) == 0 {
		return 0, nil
	}

	inserted, err := e.repo.InsertShifts(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to insert shifts: %w", err)
	}
	if hasScan {
		if _, err := e.repo.CopyScanAreas(ctx, copyKeys(batch)); err != nil {
			return int(inserted), fmt.Errorf("failed to copy scan areas: %w", err)
		}
	}
	if weekly && hasClaim {
		if _, err := e.repo.CopyClaims(ctx, copyKeys(batch)); err != nil {
			return int(inserted), fmt.Errorf("failed to copy claims: %w", err)
		}
	}
	logger.DebugContext(ctx, "inserted regenerated shifts", "count", inserted)
	return int(inserted), nil
}
