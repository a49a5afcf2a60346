package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// armijo is the sufficient-increase constant for the backtracking line search.
const armijo = 1e-4

// LBFGSB is a projected limited-memory BFGS ascent. Variables pinned at a
// bound with the gradient pointing outward are held fixed for the iteration;
// the rest move along the quasi-Newton direction and every trial point is
// projected back into the box.
type LBFGSB struct {
	settings Settings
}

// NewLBFGSB returns a maximizer using s. Zero fields fall back to
// DefaultSettings.
func NewLBFGSB(s Settings) *LBFGSB {
	d := DefaultSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.Memory <= 0 {
		s.Memory = d.Memory
	}
	if s.MaxLineSearch <= 0 {
		s.MaxLineSearch = d.MaxLineSearch
	}
	return &LBFGSB{settings: s}
}

func (o *LBFGSB) Settings() Settings {
	return o.settings
}

// Maximize runs the search. The seed is projected into bounds first, so any
// returned X satisfies bounds.Contains.
func (o *LBFGSB) Maximize(fn Func, x []float64, bounds Bounds, budget *Budget) Result {
	if budget == nil {
		budget = NewBudget(0)
	}
	n := len(x)
	bounds.Project(x)

	g := make([]float64, n)
	f := fn(x, g, budget)
	res := Result{X: x, F: f, Evaluations: budget.Used()}
	if !finite(f) || !allFinite(g) {
		res.Status = NumericalFailure
		return res
	}
	if budget.Stopped() {
		res.Status = ForcedStop
		return res
	}

	var (
		hist  = newHistory(o.settings.Memory)
		pg    = make([]float64, n)
		d     = make([]float64, n)
		xt    = make([]float64, n)
		gt    = make([]float64, n)
		s     = make([]float64, n)
		y     = make([]float64, n)
		done  bool
		state = MaxIterReached
	)

	for iter := 0; iter < o.settings.MaxIterations && !done; iter++ {
		o.projectedGradient(x, g, bounds, pg)
		pgNorm := floats.Norm(pg, 2)
		if pgNorm == 0 {
			state, done = GradientVanished, true
			break
		}

		hist.apply(pg, d)
		for i := range d {
			if pg[i] == 0 {
				d[i] = 0
			}
		}
		if floats.Dot(d, pg) <= 0 || !allFinite(d) {
			hist.reset()
			copy(d, pg)
		}

		step := 1.0
		if hist.len() == 0 {
			step = math.Min(1, 1/floats.Norm(d, 2))
		}

		var ft float64
		accepted := false
		for ls := 0; ls < o.settings.MaxLineSearch; ls++ {
			floats.AddScaledTo(xt, x, step, d)
			bounds.Project(xt)
			floats.SubTo(s, xt, x)

			ft = fn(xt, gt, budget)
			if finite(ft) && allFinite(gt) && ft > f && ft >= f+armijo*floats.Dot(g, s) {
				accepted = true
				break
			}
			if budget.Stopped() {
				break
			}
			step *= 0.5
		}
		res.Evaluations = budget.Used()

		if !accepted {
			if budget.Stopped() {
				state = ForcedStop
			} else {
				state = LineSearchFailed
			}
			break
		}

		floats.SubTo(y, g, gt)
		if floats.Dot(s, y) > 1e-10 {
			hist.push(s, y)
		}

		fPrev := f
		copy(x, xt)
		copy(g, gt)
		f = ft
		res.Iterations++

		switch {
		case budget.Stopped():
			state, done = ForcedStop, true
		case math.Abs(f-fPrev) <= o.settings.FTolAbs:
			state, done = FTolReached, true
		case math.Abs(f-fPrev) <= o.settings.FTolRel*math.Abs(f):
			state, done = FTolReached, true
		case o.xConverged(x, s):
			state, done = XTolReached, true
		}
	}

	res.F = f
	res.Status = state
	return res
}

// projectedGradient zeroes components that would push a variable already at
// a bound further outside the box.
func (o *LBFGSB) projectedGradient(x, g []float64, bounds Bounds, pg []float64) {
	for i := range g {
		switch {
		case bounds.atLower(x, i) && g[i] < 0:
			pg[i] = 0
		case bounds.atUpper(x, i) && g[i] > 0:
			pg[i] = 0
		default:
			pg[i] = g[i]
		}
	}
}

func (o *LBFGSB) xConverged(x, step []float64) bool {
	if o.settings.XTolRel <= 0 {
		return false
	}
	for i := range x {
		if math.Abs(step[i]) > o.settings.XTolRel*math.Abs(x[i]) {
			return false
		}
	}
	return true
}

// history stores the most recent curvature pairs. y holds the gradient
// decrease g_k - g_{k+1}, which is the curvature of -f.
type history struct {
	m   int
	s   [][]float64
	y   [][]float64
	rho []float64
}

func newHistory(m int) *history {
	return &history{m: m}
}

func (h *history) len() int {
	return len(h.s)
}

func (h *history) reset() {
	h.s, h.y, h.rho = h.s[:0], h.y[:0], h.rho[:0]
}

func (h *history) push(s, y []float64) {
	if len(h.s) == h.m {
		h.s, h.y, h.rho = h.s[1:], h.y[1:], h.rho[1:]
	}
	h.s = append(h.s, append([]float64(nil), s...))
	h.y = append(h.y, append([]float64(nil), y...))
	h.rho = append(h.rho, 1/floats.Dot(y, s))
}

// apply writes H*q into d using the two-loop recursion. With no history d is
// a copy of q.
func (h *history) apply(q, d []float64) {
	copy(d, q)
	k := len(h.s)
	if k == 0 {
		return
	}
	alpha := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		alpha[i] = h.rho[i] * floats.Dot(h.s[i], d)
		floats.AddScaled(d, -alpha[i], h.y[i])
	}
	last := k - 1
	gamma := floats.Dot(h.s[last], h.y[last]) / floats.Dot(h.y[last], h.y[last])
	floats.Scale(gamma, d)
	for i := 0; i < k; i++ {
		beta := h.rho[i] * floats.Dot(h.y[i], d)
		floats.AddScaled(d, alpha[i]-beta, h.s[i])
	}
}
