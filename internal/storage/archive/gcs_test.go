package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotaforge/scheduler/internal/domain"
)

func TestObjectName(t *testing.T) {
	name := objectName("audit", domain.Date(2026, time.March, 2), "0195f9e2-run")
	assert.Equal(t, "audit/2026-03-02/0195f9e2-run.json", name)
}

func TestRunDocumentMapping(t *testing.T) {
	completed := time.Date(2026, time.March, 2, 4, 0, 12, 0, time.UTC)
	shiftID := int64(812)
	summary := &domain.RunSummary{
		RunID:            "run-1",
		Status:           domain.RunStatusCompleted,
		StartedAt:        time.Date(2026, time.March, 2, 4, 0, 0, 0, time.UTC),
		CompletedAt:      &completed,
		DurationSec:      12.0,
		WeeklyTemplates:  3,
		MonthlyTemplates: 1,
		Created:          5,
		Overlaps:         1,
	}
	audits := []domain.AuditRow{{
		RunID:      "run-1",
		RunDate:    domain.Date(2026, time.March, 2),
		TemplateID: 101,
		ShiftID:    &shiftID,
		EmployeeID: 7,
		ClientID:   10,
		StartAt:    time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2026, time.March, 2, 17, 0, 0, 0, time.UTC),
		Outcome:    domain.OutcomeCreated,
		Kind:       domain.RecurrenceWeekly,
		Pattern:    "Mon,Wed",
	}}
	conflicts := []domain.ConflictRow{{
		RunID:        "run-1",
		TemplateID:   103,
		EmployeeID:   7,
		ClientID:     30,
		WithShiftID:  812,
		WithClientID: 10,
		DetectedAt:   completed,
	}}

	doc := runDocument(summary, audits, conflicts)

	assert.Equal(t, "run-1", doc.Summary.RunID)
	assert.Equal(t, "Completed", doc.Summary.Status)
	assert.Equal(t, 5, doc.Summary.Created)
	require.NotNil(t, doc.Summary.CompletedAt)

	require.Len(t, doc.Audits, 1)
	assert.Equal(t, "2026-03-02", doc.Audits[0].RunDate)
	require.NotNil(t, doc.Audits[0].InstanceID)
	assert.Equal(t, int64(812), *doc.Audits[0].InstanceID)
	assert.Equal(t, "Created", doc.Audits[0].Outcome)
	assert.Equal(t, "Weekly", doc.Audits[0].Kind)

	require.Len(t, doc.Conflicts, 1)
	assert.Equal(t, int64(812), doc.Conflicts[0].OtherShiftID)
	assert.Equal(t, int64(10), doc.Conflicts[0].OtherClientID)
}

func TestRunDocumentEmptyRows(t *testing.T) {
	doc := runDocument(&domain.RunSummary{RunID: "run-2", Status: domain.RunStatusBlocked}, nil, nil)
	assert.Empty(t, doc.Audits)
	assert.Empty(t, doc.Conflicts)
	assert.NotNil(t, doc.Audits, "marshals as [] rather than null")
}
