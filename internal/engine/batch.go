package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rotaforge/scheduler/internal/domain"
)

// Batch routes. Shifts are grouped by which set-based copies must follow
// their insert so each flush issues at most one scan-area and one claim
// copy statement.
const (
	routePlain = iota
	routeScan
	routeClaim
	routeClaimScan
	routeCount
)

// shiftBatcher accumulates accepted candidates per route and flushes each
// route as a single bulk insert once it reaches the configured size.
// Copies run set-based against the just-inserted rows, keyed by
// (template, employee, date).
type shiftBatcher struct {
	e      *Engine
	logger *slog.Logger

	routes [routeCount][]domain.Shift
}

func newShiftBatcher(e *Engine, logger *slog.Logger) *shiftBatcher {
	return &shiftBatcher{e: e, logger: logger}
}

// add appends a shift to its route and flushes the route if it reached
// the batch size.
func (b *shiftBatcher) add(ctx context.Context, route int, s domain.Shift) error {
	b.routes[route] = append(b.routes[route], s)
	if len(b.routes[route]) >= b.e.cfg.InsertBatchSize {
		return b.flush(ctx, route)
	}
	return nil
}

// flushAll drains every pending route.
func (b *shiftBatcher) flushAll(ctx context.Context) error {
	for route := range b.routes {
		if len(b.routes[route]) == 0 {
			continue
		}
		if err := b.flush(ctx, route); err != nil {
			return err
		}
	}
	return nil
}

func (b *shiftBatcher) flush(ctx context.Context, route int) error {
	shifts := b.routes[route]
	if len(shifts) == 0 {
		return nil
	}
	b.routes[route] = nil

	inserted, err := b.e.repo.InsertShifts(ctx, shifts)
	if err != nil {
		return fmt.Errorf("failed to bulk insert shifts: %w", err)
	}

	if route == routeScan || route == routeClaimScan {
		if _, err := b.e.repo.CopyScanAreas(ctx, copyKeys(shifts)); err != nil {
			return fmt.Errorf("failed to copy scan areas: %w", err)
		}
	}
	if route == routeClaim || route == routeClaimScan {
		if _, err := b.e.repo.CopyClaims(ctx, copyKeys(shifts)); err != nil {
			return fmt.Errorf("failed to copy claims: %w", err)
		}
	}

	b.logger.DebugContext(ctx, "flushed shift batch",
		"route", routeName(route),
		"inserted", inserted)
	return b.e.sleepBetween(ctx)
}

func copyKeys(shifts []domain.Shift) []domain.CopyKey {
	keys := make([]domain.CopyKey, len(shifts))
	for i, s := range shifts {
		keys[i] = domain.CopyKey{
			TemplateID: s.TemplateID,
			EmployeeID: s.EmployeeID,
			Date:       domain.MidnightOf(s.StartAt),
		}
	}
	return keys
}

func routeName(route int) string {
	switch route {
	case routeScan:
		return "scan"
	case routeClaim:
		return "claim"
	case routeClaimScan:
		return "claim+scan"
	default:
		return "plain"
	}
}
