package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/trustfit/internal/hermes"
	"github.com/MikeSquared-Agency/trustfit/internal/session"
	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

// Sessions is the part of session.Manager the processor drives.
type Sessions interface {
	Ingest(ctx context.Context, sessionID string, performance, feedback int) (session.Update, error)
	Reset(sessionID string) error
}

// Publisher sends JSON events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor turns observation events into trust estimates.
type Processor struct {
	sessions  Sessions
	publisher Publisher
	logger    *slog.Logger
}

func New(sessions Sessions, publisher Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleObservation is the NATS handler for trust.observation.recorded.
func (p *Processor) HandleObservation(subject string, data []byte) {
	ctx := context.Background()

	var evt hermes.ObservationEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse observation event", "error", err)
		return
	}
	if evt.SessionID == "" {
		p.logger.Warn("observation without session_id dropped")
		return
	}

	u, err := p.sessions.Ingest(ctx, evt.SessionID, evt.Performance, evt.Feedback)
	if err != nil {
		if errors.Is(err, trust.ErrInvalidObservation) {
			p.logger.Warn("invalid observation rejected",
				"session_id", evt.SessionID,
				"performance", evt.Performance,
				"feedback", evt.Feedback,
				"error", err,
			)
			return
		}
		p.logger.Error("ingest failed", "session_id", evt.SessionID, "error", err)
		return
	}

	p.logger.Info("trust estimate updated",
		"session_id", u.SessionID,
		"index", u.Index,
		"prior", u.PriorEstimate,
		"estimate", u.NewEstimate,
		"status", u.Status,
	)

	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(hermes.SubjectEstimate, estimateEvent(u)); err != nil {
		p.logger.Error("failed to publish estimate", "session_id", u.SessionID, "error", err)
	}
}

// HandleReset is the NATS handler for trust.session.reset.
func (p *Processor) HandleReset(subject string, data []byte) {
	var evt hermes.ResetEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse reset event", "error", err)
		return
	}
	if err := p.sessions.Reset(evt.SessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			p.logger.Debug("reset for unknown session", "session_id", evt.SessionID)
			return
		}
		p.logger.Error("reset failed", "session_id", evt.SessionID, "error", err)
		return
	}
	p.logger.Info("session reset", "session_id", evt.SessionID)
}

func estimateEvent(u session.Update) hermes.EstimateEvent {
	return hermes.EstimateEvent{
		EventID:       uuid.New().String(),
		SessionID:     u.SessionID,
		Index:         u.Index,
		Feedback:      u.Feedback,
		PriorEstimate: u.PriorEstimate,
		NewEstimate:   u.NewEstimate,
		Alpha0:        u.Params.Alpha0,
		Beta0:         u.Params.Beta0,
		Ws:            u.Params.Ws,
		Wf:            u.Params.Wf,
		Status:        u.Status,
		Timestamp:     u.RecordedAt,
	}
}
