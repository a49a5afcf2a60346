package trust

import "github.com/MikeSquared-Agency/trustfit/internal/optimize"

// Box constraints on the hyperparameters.
const (
	MinShape  = 1.0
	MaxShape  = 200.0
	MinWeight = 0.1
	MaxWeight = 200.0
)

// Heuristic seed used while fewer than two observations exist.
const (
	initialWs       = 1.0
	initialWf       = 2.0
	minInitialAlpha = 1.1
	maxInitialAlpha = 98.9
)

// Parameters are the Beta prior shapes and the per-observation weight
// increments applied on success (Ws) and failure (Wf).
type Parameters struct {
	Alpha0 float64 `json:"alpha0"`
	Beta0  float64 `json:"beta0"`
	Ws     float64 `json:"ws"`
	Wf     float64 `json:"wf"`
}

func (p Parameters) Vector() []float64 {
	return []float64{p.Alpha0, p.Beta0, p.Ws, p.Wf}
}

func ParametersFromVector(x []float64) Parameters {
	return Parameters{Alpha0: x[0], Beta0: x[1], Ws: x[2], Wf: x[3]}
}

// InBounds reports whether p satisfies DefaultBounds.
func (p Parameters) InBounds() bool {
	return DefaultBounds().Contains(p.Vector())
}

// DefaultBounds returns alpha0, beta0 in [1,200] and ws, wf in [0.1,200].
func DefaultBounds() optimize.Bounds {
	return optimize.Bounds{
		Lower: []float64{MinShape, MinShape, MinWeight, MinWeight},
		Upper: []float64{MaxShape, MaxShape, MaxWeight, MaxWeight},
	}
}

// InitialGuess seeds the prior directly from a single self-report.
func InitialGuess(feedback int) Parameters {
	alpha0 := float64(feedback)
	if alpha0 <= 1 {
		alpha0 = minInitialAlpha
	}
	if alpha0 >= 99 {
		alpha0 = maxInitialAlpha
	}
	return Parameters{
		Alpha0: alpha0,
		Beta0:  100 - alpha0,
		Ws:     initialWs,
		Wf:     initialWf,
	}
}

// FoldState is the running Beta shape and success/failure counts after
// folding a log forward from some Parameters.
type FoldState struct {
	Alpha float64
	Beta  float64
	Ns    int
	Nf    int
}

func newFoldState(p Parameters) FoldState {
	return FoldState{Alpha: p.Alpha0, Beta: p.Beta0}
}

func (s *FoldState) step(o Observation, p Parameters) {
	ps := float64(o.Performance)
	s.Ns += o.Performance
	s.Nf += 1 - o.Performance
	s.Alpha += ps * p.Ws
	s.Beta += (1 - ps) * p.Wf
}

// Mean is the Beta posterior mean, read as the trust probability.
func (s FoldState) Mean() float64 {
	return s.Alpha / (s.Alpha + s.Beta)
}

// Fold applies every observation in log order starting from p.
func Fold(log *ObservationLog, p Parameters) FoldState {
	s := newFoldState(p)
	for _, o := range log.obs {
		s.step(o, p)
	}
	return s
}
