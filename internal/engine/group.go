package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/ptr"
)

// expandGroup emits one occurrence of a grouped template set. The first
// member to reach a (group, date) pair processes the whole membership and
// marks the pair done, so every later member hit on the same date is a
// no-op regardless of which weekday sets matched. Members are evaluated
// in ascending template id order and each one passes the full candidate
// pipeline individually; a fresh occurrence group row is created lazily
// when the first member is admitted, weekly by cloning the definition
// row, monthly as a new employee-schedule group.
//
// Group occurrences are inserted row by row to recover each shift id for
// the audit trail. Scan-area and claim copies never run on this path.
func (e *Engine) expandGroup(ctx context.Context, st *runState, seen *domain.ShiftTemplate, date time.Time, weekly bool) error {
	key := groupDateKey{GroupID: seen.GroupID, Date: date}
	if st.groupDone[key] {
		return nil
	}
	st.groupDone[key] = true

	note := domain.NoteWeekly
	src := st.weekly
	if !weekly {
		note = domain.NoteMonthly
		src = st.monthly
	}

	var occurrenceID int64
	for _, idx := range st.groupMembers(weekly, seen.GroupID) {
		if err := ctx.Err(); err != nil {
			return err
		}
		tpl := &src[idx]
		if !effectiveOn(tpl, st.today, date) {
			continue
		}
		start, end, ok := e.admit(st, tpl, date)
		if !ok {
			continue
		}

		if occurrenceID == 0 {
			var err error
			if weekly {
				occurrenceID, err = e.repo.CloneGroupRow(ctx, seen.GroupID)
			} else {
				occurrenceID, err = e.repo.CreateGroupRow(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to create group occurrence for group %d: %w", seen.GroupID, err)
			}
		}

		id, err := e.repo.InsertShiftReturningID(ctx, buildShift(tpl, start, end, note, occurrenceID))
		if err != nil {
			return fmt.Errorf("failed to insert group shift for template %d: %w", tpl.ID, err)
		}
		st.audit.addCreated(tpl, start, end, ptr.To(id))
	}
	return nil
}
