package trust

import (
	"errors"
	"fmt"
)

// ErrInvalidObservation is returned when performance or feedback fall
// outside their declared domains.
var ErrInvalidObservation = errors.New("invalid observation")

const (
	MinFeedback = 0
	MaxFeedback = 100
)

// Observation is one interaction: a binary performance outcome and the
// participant's self-reported trust on a 0-100 scale.
type Observation struct {
	Performance int `json:"performance"`
	Feedback    int `json:"feedback"`
}

// NewObservation validates and builds an Observation.
func NewObservation(performance, feedback int) (Observation, error) {
	o := Observation{Performance: performance, Feedback: feedback}
	if err := o.Validate(); err != nil {
		return Observation{}, err
	}
	return o, nil
}

func (o Observation) Validate() error {
	if o.Performance != 0 && o.Performance != 1 {
		return fmt.Errorf("%w: performance %d not in {0,1}", ErrInvalidObservation, o.Performance)
	}
	if o.Feedback < MinFeedback || o.Feedback > MaxFeedback {
		return fmt.Errorf("%w: feedback %d not in [%d,%d]", ErrInvalidObservation, o.Feedback, MinFeedback, MaxFeedback)
	}
	return nil
}

// ObservationLog is the ordered, append-only history of one session.
// Order matters: the Beta fold applies observations in arrival order.
type ObservationLog struct {
	obs []Observation
}

// NewObservationLog seeds a log from a batch, validating each entry.
func NewObservationLog(obs ...Observation) (*ObservationLog, error) {
	l := &ObservationLog{obs: make([]Observation, 0, len(obs))}
	for i, o := range obs {
		if err := l.Append(o); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
	}
	return l, nil
}

func (l *ObservationLog) Append(o Observation) error {
	if err := o.Validate(); err != nil {
		return err
	}
	l.obs = append(l.obs, o)
	return nil
}

func (l *ObservationLog) Len() int {
	return len(l.obs)
}

func (l *ObservationLog) At(i int) Observation {
	return l.obs[i]
}

// Observations returns a copy of the log contents.
func (l *ObservationLog) Observations() []Observation {
	out := make([]Observation, len(l.obs))
	copy(out, l.obs)
	return out
}

func (l *ObservationLog) Reset() {
	l.obs = l.obs[:0]
}
