package trust

import (
	"math"

	"gonum.org/v1/gonum/mathext"

	"github.com/MikeSquared-Agency/trustfit/internal/optimize"
)

// Feedback probabilities are kept off 0 and 1 so the log terms stay finite.
const (
	minProbability = 0.01
	maxProbability = 0.99
)

// feedbackProbability maps a 0-100 feedback score onto the clamped
// probability used in the likelihood.
func feedbackProbability(feedback int) float64 {
	t := float64(feedback) / 100
	if t < minProbability {
		return minProbability
	}
	if t > maxProbability {
		return maxProbability
	}
	return t
}

// Objective is the sequential Beta-Bernoulli log-likelihood of a session's
// feedback. Each observation's Beta density is evaluated with the running
// shapes after that observation has been folded in.
type Objective struct {
	log *ObservationLog
}

func NewObjective(log *ObservationLog) *Objective {
	return &Objective{log: log}
}

// Evaluate returns L(x) for x = (alpha0, beta0, ws, wf) and, when grad is
// non-nil, overwrites grad with its analytic gradient. It spends one unit of
// budget and forces a stop once the budget is exhausted.
func (o *Objective) Evaluate(x, grad []float64, budget *optimize.Budget) float64 {
	budget.Spend()
	if budget.Exhausted() {
		budget.ForceStop()
	}

	p := ParametersFromVector(x)
	for i := range grad {
		grad[i] = 0
	}

	var logl float64
	s := newFoldState(p)
	for _, obs := range o.log.obs {
		t := feedbackProbability(obs.Feedback)
		s.step(obs, p)

		logt := math.Log(t)
		log1t := math.Log(1 - t)
		logl += lgamma(s.Alpha+s.Beta) - lgamma(s.Alpha) - lgamma(s.Beta)
		logl += (s.Alpha-1)*logt + (s.Beta-1)*log1t

		if grad == nil {
			continue
		}
		both := mathext.Digamma(s.Alpha + s.Beta)
		da := both - mathext.Digamma(s.Alpha) + logt
		db := both - mathext.Digamma(s.Beta) + log1t
		grad[0] += da
		grad[1] += db
		grad[2] += da * float64(s.Ns)
		grad[3] += db * float64(s.Nf)
	}
	return logl
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
