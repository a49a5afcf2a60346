package trust

import (
	"log/slog"

	"github.com/MikeSquared-Agency/trustfit/internal/optimize"
)

// DefaultMaxEvaluations is the per-update objective evaluation budget.
const DefaultMaxEvaluations = 10

// Estimator tracks one participant session. It is not safe for concurrent
// use; callers serialize access per session.
type Estimator struct {
	log       *ObservationLog
	maximizer optimize.Maximizer
	bounds    optimize.Bounds
	maxEval   int
	logger    *slog.Logger

	last      optimize.Result
	optimized bool
}

type Option func(*Estimator)

// WithMaxEvaluations sets the evaluation budget of each optimization.
func WithMaxEvaluations(n int) Option {
	return func(e *Estimator) { e.maxEval = n }
}

// WithMaximizer swaps the numerical routine behind Ingest.
func WithMaximizer(m optimize.Maximizer) Option {
	return func(e *Estimator) { e.maximizer = m }
}

// WithSettings configures the default L-BFGS-B maximizer.
func WithSettings(s optimize.Settings) Option {
	return func(e *Estimator) { e.maximizer = optimize.NewLBFGSB(s) }
}

// WithObservations starts the estimator from an existing log, such as one
// built from a whole batch with NewObservationLog.
func WithObservations(log *ObservationLog) Option {
	return func(e *Estimator) {
		if log != nil {
			e.log = log
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Estimator) { e.logger = l }
}

func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		log:       &ObservationLog{},
		maximizer: optimize.NewLBFGSB(optimize.DefaultSettings()),
		bounds:    DefaultBounds(),
		maxEval:   DefaultMaxEvaluations,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest records an observation and returns refreshed parameters. With fewer
// than two observations the heuristic initial guess is returned and no
// optimization runs; otherwise the maximizer is seeded at last. Only invalid
// observations produce an error.
func (e *Estimator) Ingest(performance, feedback int, last Parameters) (Parameters, error) {
	obs := Observation{Performance: performance, Feedback: feedback}
	if err := e.log.Append(obs); err != nil {
		return Parameters{}, err
	}
	e.optimized = false

	if e.log.Len() < 2 {
		return InitialGuess(feedback), nil
	}

	x := last.Vector()
	budget := optimize.NewBudget(e.maxEval)
	res := e.maximizer.Maximize(NewObjective(e.log).Evaluate, x, e.bounds, budget)
	e.last = res
	e.optimized = true

	if res.Status.Converged() {
		e.logger.Debug("trust parameters refit",
			"observations", e.log.Len(),
			"status", res.Status.String(),
			"iterations", res.Iterations,
			"evaluations", res.Evaluations,
		)
	} else {
		e.logger.Debug("trust refit degraded, keeping last iterate",
			"observations", e.log.Len(),
			"status", res.Status.String(),
			"iterations", res.Iterations,
			"evaluations", res.Evaluations,
		)
	}
	return ParametersFromVector(res.X), nil
}

// Estimate folds the log forward from p and returns the posterior mean.
// It does not modify the estimator.
func (e *Estimator) Estimate(p Parameters) float64 {
	return Fold(e.log, p).Mean()
}

// LastResult returns the diagnostics of the optimization run by the most
// recent Ingest, if one ran.
func (e *Estimator) LastResult() (optimize.Result, bool) {
	return e.last, e.optimized
}

func (e *Estimator) Len() int {
	return e.log.Len()
}

// Observations returns a copy of the session history.
func (e *Estimator) Observations() []Observation {
	return e.log.Observations()
}

// Reset clears the observation log. Parameters belong to the caller.
func (e *Estimator) Reset() {
	e.log.Reset()
	e.last = optimize.Result{}
	e.optimized = false
}
