package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/trustfit/internal/session"
	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

// Record writes one estimate row and upserts the session's latest
// parameters in a single transaction.
func (s *Store) Record(ctx context.Context, u session.Update) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO trust_estimates (id, session_id, idx, performance, feedback, prior_estimate, new_estimate,
			alpha0, beta0, ws, wf, optimized, status, evaluations, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		uuid.New(), u.SessionID, u.Index, u.Performance, u.Feedback, u.PriorEstimate, u.NewEstimate,
		u.Params.Alpha0, u.Params.Beta0, u.Params.Ws, u.Params.Wf, u.Optimized, u.Status, u.Evaluations, u.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert estimate: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO session_parameters (session_id, alpha0, beta0, ws, wf, observations, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (session_id)
		DO UPDATE SET
			alpha0 = $2,
			beta0 = $3,
			ws = $4,
			wf = $5,
			observations = $6,
			updated_at = now()`,
		u.SessionID, u.Params.Alpha0, u.Params.Beta0, u.Params.Ws, u.Params.Wf, u.Index+1,
	)
	if err != nil {
		return fmt.Errorf("upsert parameters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetParameters fetches the last parameters stored for a session and the
// number of observations they were fit on. Unknown sessions return
// session.ErrNotFound.
func (s *Store) GetParameters(ctx context.Context, sessionID string) (trust.Parameters, int, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT alpha0, beta0, ws, wf, observations
		FROM session_parameters
		WHERE session_id = $1`,
		sessionID,
	)

	var p trust.Parameters
	var n int
	if err := row.Scan(&p.Alpha0, &p.Beta0, &p.Ws, &p.Wf, &n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return trust.Parameters{}, 0, session.ErrNotFound
		}
		return trust.Parameters{}, 0, fmt.Errorf("query parameters: %w", err)
	}
	return p, n, nil
}

// ListEstimates returns a session's estimate history, oldest first.
func (s *Store) ListEstimates(ctx context.Context, sessionID string, limit int) ([]session.Update, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, idx, performance, feedback, prior_estimate, new_estimate,
			alpha0, beta0, ws, wf, optimized, status, evaluations, recorded_at
		FROM trust_estimates
		WHERE session_id = $1
		ORDER BY recorded_at, idx
		LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	var out []session.Update
	for rows.Next() {
		var u session.Update
		if err := rows.Scan(&u.SessionID, &u.Index, &u.Performance, &u.Feedback, &u.PriorEstimate, &u.NewEstimate,
			&u.Params.Alpha0, &u.Params.Beta0, &u.Params.Ws, &u.Params.Wf, &u.Optimized, &u.Status, &u.Evaluations, &u.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
