package optimize

import "math"

// Func evaluates an objective at x. When grad is non-nil it is overwritten
// with the gradient at x. Implementations spend from b on every call.
type Func func(x, grad []float64, b *Budget) float64

// Maximizer searches for a maximum of fn inside bounds starting at x.
// The final iterate is written back into x and returned in Result.X.
// Implementations never fail: every termination yields a usable iterate.
type Maximizer interface {
	Maximize(fn Func, x []float64, bounds Bounds, budget *Budget) Result
}

// Settings holds stopping criteria for a bounded search.
type Settings struct {
	MaxIterations int
	XTolRel       float64
	FTolRel       float64
	FTolAbs       float64
	// Memory is the number of curvature pairs kept for the inverse Hessian
	// approximation.
	Memory int
	// MaxLineSearch caps backtracking steps per iteration.
	MaxLineSearch int
}

func DefaultSettings() Settings {
	return Settings{
		MaxIterations: 15,
		XTolRel:       1e-1,
		FTolRel:       1e-1,
		FTolAbs:       1e-4,
		Memory:        5,
		MaxLineSearch: 20,
	}
}

// Status describes why a search terminated. None of them is a failure.
type Status int

const (
	MaxIterReached Status = iota
	XTolReached
	FTolReached
	GradientVanished
	ForcedStop
	LineSearchFailed
	NumericalFailure
)

func (s Status) String() string {
	switch s {
	case MaxIterReached:
		return "max_iter_reached"
	case XTolReached:
		return "xtol_reached"
	case FTolReached:
		return "ftol_reached"
	case GradientVanished:
		return "gradient_vanished"
	case ForcedStop:
		return "forced_stop"
	case LineSearchFailed:
		return "line_search_failed"
	case NumericalFailure:
		return "numerical_failure"
	default:
		return "unknown"
	}
}

// Converged reports whether the search stopped on a tolerance rather than a
// cap or an internal failure.
func (s Status) Converged() bool {
	return s == XTolReached || s == FTolReached || s == GradientVanished
}

// Result is the outcome of a Maximize call.
type Result struct {
	X           []float64
	F           float64
	Status      Status
	Iterations  int
	Evaluations int
}

// Bounds are independent lower/upper limits per coordinate.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Project clamps x into the box in place. NaN coordinates are moved to the
// lower bound.
func (b Bounds) Project(x []float64) {
	for i := range x {
		if math.IsNaN(x[i]) {
			if i < len(b.Lower) {
				x[i] = b.Lower[i]
			}
			continue
		}
		if i < len(b.Lower) && x[i] < b.Lower[i] {
			x[i] = b.Lower[i]
		}
		if i < len(b.Upper) && x[i] > b.Upper[i] {
			x[i] = b.Upper[i]
		}
	}
}

// Contains reports whether every coordinate of x lies inside the box.
func (b Bounds) Contains(x []float64) bool {
	for i, v := range x {
		if math.IsNaN(v) {
			return false
		}
		if i < len(b.Lower) && v < b.Lower[i] {
			return false
		}
		if i < len(b.Upper) && v > b.Upper[i] {
			return false
		}
	}
	return true
}

func (b Bounds) atLower(x []float64, i int) bool {
	return i < len(b.Lower) && x[i] <= b.Lower[i]
}

func (b Bounds) atUpper(x []float64, i int) bool {
	return i < len(b.Upper) && x[i] >= b.Upper[i]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if !finite(x) {
			return false
		}
	}
	return true
}
