package postgres

import (
	"context"
	"fmt"

	"github.com/rotaforge/scheduler/internal/domain"
)

// === Run Summary ===

// InsertRunSummary writes the initial summary row for a run.
func (s *Store) InsertRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	err := s.query(ctx, "insert run summary", s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO run_summary (
				run_id, status, started_at, completed_at, duration_s,
				weekly_templates, monthly_templates,
				created, duplicates, overlaps, errors, retracted, error
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (run_id) DO NOTHING
		`,
			summary.RunID, string(summary.Status), summary.StartedAt, summary.CompletedAt, summary.DurationSec,
			summary.WeeklyTemplates, summary.MonthlyTemplates,
			summary.Created, summary.Duplicates, summary.Overlaps, summary.Errors, summary.Retracted, summary.Error)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert run summary: %w", err)
	}
	return nil
}

// UpdateRunSummary overwrites the summary row for summary.RunID.
func (s *Store) UpdateRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	err := s.query(ctx, "update run summary", s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			UPDATE run_summary
			SET status            = $2,
				completed_at      = $3,
				duration_s        = $4,
				weekly_templates  = $5,
				monthly_templates = $6,
				created           = $7,
				duplicates        = $8,
				overlaps          = $9,
				errors            = $10,
				retracted         = $11,
				error             = $12
			WHERE run_id = $1
		`,
			summary.RunID, string(summary.Status), summary.CompletedAt, summary.DurationSec,
			summary.WeeklyTemplates, summary.MonthlyTemplates,
			summary.Created, summary.Duplicates, summary.Overlaps, summary.Errors, summary.Retracted, summary.Error)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update run summary: %w", err)
	}
	return nil
}

// ListRecentRuns returns the newest run summaries, most recent first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var summaries []domain.RunSummary
	err := s.query(ctx, "list recent runs", s.queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT run_id, status, started_at, completed_at, duration_s,
				   weekly_templates, monthly_templates,
				   created, duplicates, overlaps, errors, retracted, error
			FROM run_summary
			ORDER BY started_at DESC
			LIMIT $1
		`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		summaries = summaries[:0]
		for rows.Next() {
			var sum domain.RunSummary
			var status string
			if err := rows.Scan(
				&sum.RunID, &status, &sum.StartedAt, &sum.CompletedAt, &sum.DurationSec,
				&sum.WeeklyTemplates, &sum.MonthlyTemplates,
				&sum.Created, &sum.Duplicates, &sum.Overlaps, &sum.Errors, &sum.Retracted, &sum.Error,
			); err != nil {
				return err
			}
			sum.Status = domain.RunStatus(status)
			summaries = append(summaries, sum)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	return summaries, nil
}
