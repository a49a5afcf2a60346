package optimize

// Budget caps the number of objective evaluations inside one Maximize call.
// The objective spends from it on every evaluation and calls ForceStop once
// the cap is reached; the optimizer checks Stopped after each evaluation and
// returns its last iterate.
//
// A Budget with Max <= 0 never exhausts. All methods are safe on a nil
// receiver so objectives can be evaluated outside an optimization.
type Budget struct {
	max     int
	used    int
	stopped bool
}

// NewBudget returns a budget allowing max evaluations.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Spend records one evaluation.
func (b *Budget) Spend() {
	if b == nil {
		return
	}
	b.used++
}

// Exhausted reports whether the evaluation cap has been reached.
func (b *Budget) Exhausted() bool {
	if b == nil {
		return false
	}
	return b.max > 0 && b.used >= b.max
}

// ForceStop asks the optimizer to terminate after the current evaluation.
func (b *Budget) ForceStop() {
	if b == nil {
		return
	}
	b.stopped = true
}

func (b *Budget) Stopped() bool {
	return b != nil && b.stopped
}

func (b *Budget) Used() int {
	if b == nil {
		return 0
	}
	return b.used
}

func (b *Budget) Max() int {
	if b == nil {
		return 0
	}
	return b.max
}
