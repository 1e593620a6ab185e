package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rotaforge/scheduler/internal/domain"
)

// === Run Session ===

// AcquireRunSession claims the cross-process run token in one atomic upsert.
// The conflict predicate admits two takeovers only: an expired session, and a
// re-claim by the same run id (so a retried acquire after a lost ack is
// idempotent).
func (s *Store) AcquireRunSession(ctx context.Context, session domain.RunSession) error {
	var claimed int64
	err := s.query(ctx, "acquire run session", s.queryTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO scheduler_session (job_name, run_id, holder, started_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (job_name) DO UPDATE
			SET run_id     = EXCLUDED.run_id,
				holder     = EXCLUDED.holder,
				started_at = EXCLUDED.started_at,
				expires_at = EXCLUDED.expires_at
			WHERE scheduler_session.expires_at <= EXCLUDED.started_at
			   OR scheduler_session.run_id = EXCLUDED.run_id
		`, session.JobName, session.RunID, session.Holder, session.StartedAt, session.ExpiresAt)
		if err != nil {
			return err
		}
		claimed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to acquire run session: %w", err)
	}
	if claimed == 0 {
		return domain.ErrRunActive
	}
	return nil
}

// ReleaseRunSession frees the token iff runID still holds it.
func (s *Store) ReleaseRunSession(ctx context.Context, jobName, runID string) error {
	var released int64
	err := s.query(ctx, "release run session", s.queryTimeout, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM scheduler_session
			WHERE job_name = $1 AND run_id = $2
		`, jobName, runID)
		if err != nil {
			return err
		}
		released = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to release run session: %w", err)
	}
	if released == 0 {
		return domain.ErrSessionNotHeld
	}
	return nil
}

// ActiveRunSession returns the unexpired session for jobName, or nil.
func (s *Store) ActiveRunSession(ctx context.Context, jobName string) (*domain.RunSession, error) {
	var session domain.RunSession
	err := s.query(ctx, "active run session", s.queryTimeout, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, `
			SELECT job_name, run_id, holder, started_at, expires_at
			FROM scheduler_session
			WHERE job_name = $1 AND expires_at > now()
		`, jobName).Scan(&session.JobName, &session.RunID, &session.Holder, &session.StartedAt, &session.ExpiresAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run session: %w", err)
	}
	return &session, nil
}
