package hermes

import "time"

// Subjects trustfit consumes and produces.
const (
	SubjectObservation = "trust.observation.recorded"
	SubjectReset       = "trust.session.reset"
	SubjectEstimate    = "trust.estimate.updated"
)

// ObservationEvent carries one interaction outcome for a session.
type ObservationEvent struct {
	SessionID   string    `json:"session_id"`
	Performance int       `json:"performance"`
	Feedback    int       `json:"feedback"`
	ObservedAt  time.Time `json:"observed_at,omitempty"`
}

// ResetEvent clears a session's observation history.
type ResetEvent struct {
	SessionID string `json:"session_id"`
}

// EstimateEvent is published after every ingested observation.
type EstimateEvent struct {
	EventID       string    `json:"event_id"`
	SessionID     string    `json:"session_id"`
	Index         int       `json:"index"`
	Feedback      int       `json:"feedback"`
	PriorEstimate float64   `json:"prior_estimate"`
	NewEstimate   float64   `json:"new_estimate"`
	Alpha0        float64   `json:"alpha0"`
	Beta0         float64   `json:"beta0"`
	Ws            float64   `json:"ws"`
	Wf            float64   `json:"wf"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}
