package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS trust_estimates (
	id             UUID PRIMARY KEY,
	session_id     TEXT NOT NULL,
	idx            INTEGER NOT NULL,
	performance    SMALLINT NOT NULL,
	feedback       SMALLINT NOT NULL,
	prior_estimate DOUBLE PRECISION NOT NULL,
	new_estimate   DOUBLE PRECISION NOT NULL,
	alpha0         DOUBLE PRECISION NOT NULL,
	beta0          DOUBLE PRECISION NOT NULL,
	ws             DOUBLE PRECISION NOT NULL,
	wf             DOUBLE PRECISION NOT NULL,
	optimized      BOOLEAN NOT NULL,
	status         TEXT NOT NULL,
	evaluations    INTEGER NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trust_estimates_session_idx ON trust_estimates (session_id, recorded_at, idx);

CREATE TABLE IF NOT EXISTS session_parameters (
	session_id   TEXT PRIMARY KEY,
	alpha0       DOUBLE PRECISION NOT NULL,
	beta0        DOUBLE PRECISION NOT NULL,
	ws           DOUBLE PRECISION NOT NULL,
	wf           DOUBLE PRECISION NOT NULL,
	observations INTEGER NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
`

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the tables trustfit writes to.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}
