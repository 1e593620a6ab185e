package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
)

type runSummary struct {
	RunID            string     `json:"run_id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DurationSec      float64    `json:"duration_s"`
	WeeklyTemplates  int        `json:"weekly_templates"`
	MonthlyTemplates int        `json:"monthly_templates"`
	Created          int        `json:"created"`
	Duplicates       int        `json:"duplicates"`
	Overlaps         int        `json:"overlaps"`
	Errors           int        `json:"errors"`
	Retracted        int        `json:"retracted"`
	Error            string     `json:"error,omitempty"`
}

type listRunsResponse struct {
	Runs []runSummary `json:"runs"`
}

func summaryResponse(s *domain.RunSummary) runSummary {
	return runSummary{
		RunID:            s.RunID,
		Status:           string(s.Status),
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		DurationSec:      s.DurationSec,
		WeeklyTemplates:  s.WeeklyTemplates,
		MonthlyTemplates: s.MonthlyTemplates,
		Created:          s.Created,
		Duplicates:       s.Duplicates,
		Overlaps:         s.Overlaps,
		Errors:           s.Errors,
		Retracted:        s.Retracted,
		Error:            s.Error,
	}
}

func parseLimit(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > 100 {
		return 0, fmt.Errorf("limit %d out of range", n)
	}
	return n, nil
}
