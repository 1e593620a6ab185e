package engine

import (
	"sort"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

// overlapIndex detects cross-client interval collisions per employee. The
// per-employee slices stay sorted by start so probes can stop at the first
// interval beginning at or after the probe's end. It holds both preloaded
// existing shifts and those accepted this run, so intra-run conflicts are
// caught too.
type overlapIndex struct {
	byEmployee map[int64][]domain.ShiftInterval
}

func newOverlapIndex() *overlapIndex {
	return &overlapIndex{byEmployee: make(map[int64][]domain.ShiftInterval)}
}

// probe returns the first existing interval of the employee at a different
// client that intersects [start, end). Intervals touch without conflict:
// overlap requires start < existing.end and end > existing.start, both
// strict. Employee 0 never conflicts.
func (x *overlapIndex) probe(employeeID, clientID int64, start, end time.Time) (domain.ShiftInterval, bool) {
	if employeeID == 0 {
		return domain.ShiftInterval{}, false
	}
	for _, iv := range x.byEmployee[employeeID] {
		if !iv.StartAt.Before(end) {
			break
		}
		if iv.ClientID == clientID {
			continue
		}
		if start.Before(iv.EndAt) && end.After(iv.StartAt) {
			return iv, true
		}
	}
	return domain.ShiftInterval{}, false
}

// register adds an interval, keeping the employee's slice sorted by start.
// Appends during the day walk are usually already in order, so the common
// case is O(1). Employee 0 is never indexed.
func (x *overlapIndex) register(iv domain.ShiftInterval) {
	if iv.EmployeeID == 0 {
		return
	}
	ivs := x.byEmployee[iv.EmployeeID]
	n := len(ivs)
	if n == 0 || !iv.StartAt.Before(ivs[n-1].StartAt) {
		x.byEmployee[iv.EmployeeID] = append(ivs, iv)
		return
	}
	at := sort.Search(n, func(i int) bool { return ivs[i].StartAt.After(iv.StartAt) })
	ivs = append(ivs, domain.ShiftInterval{})
	copy(ivs[at+1:], ivs[at:])
	ivs[at] = iv
	x.byEmployee[iv.EmployeeID] = ivs
}

// load preloads a batch of existing intervals and sorts each employee once.
func (x *overlapIndex) load(intervals []domain.ShiftInterval) {
	for _, iv := range intervals {
		if iv.EmployeeID == 0 {
			continue
		}
		x.byEmployee[iv.EmployeeID] = append(x.byEmployee[iv.EmployeeID], iv)
	}
	for id := range x.byEmployee {
		ivs := x.byEmployee[id]
		sort.Slice(ivs, func(i, j int) bool { return ivs[i].StartAt.Before(ivs[j].StartAt) })
	}
}

func (x *overlapIndex) size() int {
	total := 0
	for _, ivs := range x.byEmployee {
		total += len(ivs)
	}
	return total
}
