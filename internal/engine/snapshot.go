package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/recurrence"
)

// loadSnapshot reads everything expansion consults into memory: the
// template working set, both dedup key sets over the probe window, the
// overlap interval index, capability sets, and the multi-week state
// needed to pre-compute valid emission dates. Expansion itself never
// queries existing shifts again, so a candidate is judged against the
// world as it stood at this point plus whatever the run committed.
func (e *Engine) loadSnapshot(ctx context.Context, logger *slog.Logger, st *runState) error {
	var err error

	st.weekly, err = e.repo.ListWeeklyTemplates(ctx, st.filter)
	if err != nil {
		return fmt.Errorf("failed to list weekly templates: %w", err)
	}
	st.monthly, err = e.repo.ListMonthlyTemplates(ctx, st.filter)
	if err != nil {
		return fmt.Errorf("failed to list monthly templates: %w", err)
	}
	st.summary.WeeklyTemplates = len(st.weekly)
	st.summary.MonthlyTemplates = len(st.monthly)
	indexGroups(st)

	stdKeys, err := e.repo.ListStandardKeys(ctx, st.today, st.dedupeTo)
	if err != nil {
		return fmt.Errorf("failed to list standard dedup keys: %w", err)
	}
	for _, k := range stdKeys {
		st.dedup.addStandard(k)
	}
	openKeys, err := e.repo.ListOpenClaimKeys(ctx, st.today, st.dedupeTo)
	if err != nil {
		return fmt.Errorf("failed to list open-claim dedup keys: %w", err)
	}
	for _, k := range openKeys {
		st.dedup.addOpenClaim(k)
	}

	intervals, err := e.repo.ListShiftIntervals(ctx, st.today, st.dedupeTo)
	if err != nil {
		return fmt.Errorf("failed to list shift intervals: %w", err)
	}
	st.overlaps.load(intervals)

	st.scanAreas, err = e.repo.ListScanAreaTemplateIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scan-area templates: %w", err)
	}
	st.claims, err = e.repo.ListClaimTemplateIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list claim templates: %w", err)
	}
	st.tracking, err = e.repo.ListTracking(ctx)
	if err != nil {
		return fmt.Errorf("failed to list multi-week tracking: %w", err)
	}

	if err := e.resolveMultiWeek(ctx, st); err != nil {
		return err
	}

	logger.InfoContext(ctx, "snapshot loaded",
		"weekly_templates", len(st.weekly),
		"monthly_templates", len(st.monthly),
		"dedup_keys", st.dedup.size(),
		"overlap_intervals", st.overlaps.size(),
		"scan_area_templates", len(st.scanAreas),
		"claim_templates", len(st.claims))
	return nil
}

// resolveMultiWeek computes the valid emission date set for every
// multi-week template in the working set. Anchors come from the tracking
// table and shift history loaded in one pass for all such templates.
func (e *Engine) resolveMultiWeek(ctx context.Context, st *runState) error {
	var ids []int64
	for i := range st.weekly {
		if st.weekly[i].IsMultiWeek() {
			ids = append(ids, st.weekly[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var err error
	st.lastShift, err = e.repo.LastShiftDates(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to list last shift dates: %w", err)
	}
	historical, err := e.repo.LastMatchedHistoricalDates(ctx, ids, st.today)
	if err != nil {
		return fmt.Errorf("failed to list historical dates: %w", err)
	}

	for i := range st.weekly {
		tpl := &st.weekly[i]
		if !tpl.IsMultiWeek() {
			continue
		}
		in := recurrence.AnchorInput{
			StartDate:      tpl.StartDate,
			NeverRan:       tpl.LastRun == nil,
			Tracking:       trackingFor(st, tpl.ID),
			LastHistorical: historical[tpl.ID],
			LastExisting:   st.lastShift[tpl.ID],
			Today:          st.today,
		}
		anchor, restriction := recurrence.ResolveAnchor(in)
		st.validDates[tpl.ID] = recurrence.ValidDates(anchor, restriction, tpl.WeekStride, tpl.Weekdays, st.advanceDays)
	}
	return nil
}

func trackingFor(st *runState, templateID int64) *domain.TrackingRow {
	row, ok := st.tracking[templateID]
	if !ok {
		return nil
	}
	return &row
}

// indexGroups builds the group membership indexes. Template queries order
// by id, so appending preserves ascending member order.
func indexGroups(st *runState) {
	for i := range st.weekly {
		if gid := st.weekly[i].GroupID; gid > 0 {
			st.weeklyGroups[gid] = append(st.weeklyGroups[gid], i)
		}
	}
	for i := range st.monthly {
		if gid := st.monthly[i].GroupID; gid > 0 {
			st.monthlyGroups[gid] = append(st.monthlyGroups[gid], i)
		}
	}
}
