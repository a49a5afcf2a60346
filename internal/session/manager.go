package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

// ErrNotFound is returned for session IDs that have never ingested data.
var ErrNotFound = errors.New("session not found")

// neutralEstimate is the Beta(1,1) mean, reported as the prior estimate of
// a session's first observation.
const neutralEstimate = 0.5

// Update is produced for every ingested observation: the original feedback,
// the point estimate before the observation and the one after refitting.
type Update struct {
	SessionID     string           `json:"session_id"`
	Index         int              `json:"index"`
	Performance   int              `json:"performance"`
	Feedback      int              `json:"feedback"`
	PriorEstimate float64          `json:"prior_estimate"`
	NewEstimate   float64          `json:"new_estimate"`
	Params        trust.Parameters `json:"params"`
	Optimized     bool             `json:"optimized"`
	Status        string           `json:"status"`
	Evaluations   int              `json:"evaluations"`
	RecordedAt    time.Time        `json:"recorded_at"`
}

// Sink accepts updates for durable storage.
type Sink interface {
	Record(ctx context.Context, u Update) error
}

// Snapshot is the current state of one session.
type Snapshot struct {
	SessionID    string           `json:"session_id"`
	Estimate     float64          `json:"estimate"`
	Params       trust.Parameters `json:"params"`
	Observations int              `json:"observations"`
}

type session struct {
	mu        sync.Mutex
	estimator *trust.Estimator
	params    trust.Parameters
	hasParams bool
}

// Manager owns one estimator per session. Calls on the same session are
// serialized; different sessions proceed in parallel.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	sinks  []Sink
	opts   []trust.Option
	logger *slog.Logger
}

func New(logger *slog.Logger, sinks []Sink, opts ...trust.Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*session),
		sinks:    sinks,
		opts:     append([]trust.Option{trust.WithLogger(logger)}, opts...),
		logger:   logger,
	}
}

func (m *Manager) get(id string, create bool) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok && create {
		s = &session{estimator: trust.NewEstimator(m.opts...)}
		m.sessions[id] = s
		ok = true
	}
	return s, ok
}

// Ingest feeds one observation into the session, refits its parameters and
// hands the resulting Update to every sink. Sink failures are logged only.
func (m *Manager) Ingest(ctx context.Context, sessionID string, performance, feedback int) (Update, error) {
	if err := (trust.Observation{Performance: performance, Feedback: feedback}).Validate(); err != nil {
		return Update{}, err
	}
	s, _ := m.get(sessionID, true)

	s.mu.Lock()
	defer s.mu.Unlock()

	prior := neutralEstimate
	if s.hasParams {
		prior = s.estimator.Estimate(s.params)
	}

	params, err := s.estimator.Ingest(performance, feedback, s.params)
	if err != nil {
		return Update{}, err
	}
	s.params = params
	s.hasParams = true

	u := Update{
		SessionID:     sessionID,
		Index:         s.estimator.Len() - 1,
		Performance:   performance,
		Feedback:      feedback,
		PriorEstimate: prior,
		NewEstimate:   s.estimator.Estimate(params),
		Params:        params,
		Status:        "initial_guess",
		RecordedAt:    time.Now().UTC(),
	}
	if res, ran := s.estimator.LastResult(); ran {
		u.Optimized = true
		u.Status = res.Status.String()
		u.Evaluations = res.Evaluations
	}

	for _, sink := range m.sinks {
		if err := sink.Record(ctx, u); err != nil {
			m.logger.Error("failed to record trust update",
				"session_id", sessionID,
				"index", u.Index,
				"error", err,
			)
		}
	}
	return u, nil
}

// Estimate returns the current state of a session.
func (m *Manager) Estimate(sessionID string) (Snapshot, error) {
	s, ok := m.get(sessionID, false)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasParams {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{
		SessionID:    sessionID,
		Estimate:     s.estimator.Estimate(s.params),
		Params:       s.params,
		Observations: s.estimator.Len(),
	}, nil
}

// Reset clears a session's observation log. The next observation starts
// over from the heuristic initial guess.
func (m *Manager) Reset(sessionID string) error {
	s, ok := m.get(sessionID, false)
	if !ok {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimator.Reset()
	s.hasParams = false
	return nil
}

// Forget drops a session entirely.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Sessions returns the IDs of all tracked sessions.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
