package engine

import (
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

// dedupSets holds the two duplicate-detection sets for one run. Both are
// probed and grown in O(1); the run owns them and they never outlive it.
type dedupSets struct {
	standard  map[domain.StandardKey]struct{}
	openClaim map[domain.OpenClaimKey]struct{}
}

func newDedupSets() *dedupSets {
	return &dedupSets{
		standard:  make(map[domain.StandardKey]struct{}),
		openClaim: make(map[domain.OpenClaimKey]struct{}),
	}
}

// seen probes the key appropriate to the template's schedule kind: open
// claims match only within the same template, everything else matches
// across templates.
func (d *dedupSets) seen(tpl *domain.ShiftTemplate, start, end time.Time) bool {
	if tpl.Schedule == domain.ScheduleOpenClaim {
		_, ok := d.openClaim[domain.NewOpenClaimKey(tpl.ID, tpl.ClientID, tpl.EmployeeID, start, end)]
		return ok
	}
	_, ok := d.standard[domain.NewStandardKey(tpl.ClientID, tpl.EmployeeID, start, end)]
	return ok
}

// commit records an accepted candidate under both keys so a later standard
// candidate cannot land on an open-claim slot and vice versa.
func (d *dedupSets) commit(tpl *domain.ShiftTemplate, start, end time.Time) {
	d.standard[domain.NewStandardKey(tpl.ClientID, tpl.EmployeeID, start, end)] = struct{}{}
	d.openClaim[domain.NewOpenClaimKey(tpl.ID, tpl.ClientID, tpl.EmployeeID, start, end)] = struct{}{}
}

// addStandard preloads one existing standard key.
func (d *dedupSets) addStandard(k domain.StandardKey) {
	d.standard[k] = struct{}{}
}

// addOpenClaim preloads one existing open-claim key.
func (d *dedupSets) addOpenClaim(k domain.OpenClaimKey) {
	d.openClaim[k] = struct{}{}
}

func (d *dedupSets) size() int {
	return len(d.standard)
}
