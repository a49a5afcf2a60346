package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/trustfit/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS estimates (
	id             TEXT PRIMARY KEY,
	session_id     TEXT NOT NULL,
	idx            INTEGER NOT NULL,
	performance    INTEGER NOT NULL,
	feedback       INTEGER NOT NULL,
	prior_estimate REAL NOT NULL,
	new_estimate   REAL NOT NULL,
	alpha0         REAL NOT NULL,
	beta0          REAL NOT NULL,
	ws             REAL NOT NULL,
	wf             REAL NOT NULL,
	optimized      INTEGER NOT NULL,
	status         TEXT NOT NULL,
	evaluations    INTEGER NOT NULL,
	recorded_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS estimates_session ON estimates (session_id, idx);
`

// timeLayout is fixed width so recorded_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Archive is a file-backed SQLite sink for offline replays.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive at path and runs migrations.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Record implements session.Sink.
func (a *Archive) Record(ctx context.Context, u session.Update) error {
	optimized := 0
	if u.Optimized {
		optimized = 1
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO estimates (id, session_id, idx, performance, feedback, prior_estimate, new_estimate,
			alpha0, beta0, ws, wf, optimized, status, evaluations, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), u.SessionID, u.Index, u.Performance, u.Feedback, u.PriorEstimate, u.NewEstimate,
		u.Params.Alpha0, u.Params.Beta0, u.Params.Ws, u.Params.Wf, optimized, u.Status, u.Evaluations,
		u.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert estimate: %w", err)
	}
	return nil
}

// List returns the archived updates of a session in ingestion order.
func (a *Archive) List(ctx context.Context, sessionID string) ([]session.Update, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT session_id, idx, performance, feedback, prior_estimate, new_estimate,
			alpha0, beta0, ws, wf, optimized, status, evaluations, recorded_at
		 FROM estimates WHERE session_id = ? ORDER BY recorded_at, rowid`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	var out []session.Update
	for rows.Next() {
		var u session.Update
		var optimized int
		var recorded string
		if err := rows.Scan(&u.SessionID, &u.Index, &u.Performance, &u.Feedback, &u.PriorEstimate, &u.NewEstimate,
			&u.Params.Alpha0, &u.Params.Beta0, &u.Params.Ws, &u.Params.Wf, &optimized, &u.Status, &u.Evaluations, &recorded); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		recordedAt, err := time.Parse(timeLayout, recorded)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recorded, err)
		}
		u.Optimized = optimized == 1
		u.RecordedAt = recordedAt
		out = append(out, u)
	}
	return out, rows.Err()
}
