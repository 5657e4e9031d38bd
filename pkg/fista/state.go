package fista

// State is the warm-start value carried from one solve to the next. It is
// returned by Solve and may be passed back, by value, through Options.Init.
type State struct {
	// W is the best iterate of the previous solve
	W []float64

	// Z is the matching extrapolation (momentum) point
	Z []float64

	// T is the momentum coefficient
	T float64

	// DgapTol is the inner duality-gap tolerance reached so far
	DgapTol float64

	// Stepsize is the gradient step, 1/L after any backtracking
	Stepsize float64
}

// Clone returns a deep copy so later solves cannot alias the slices.
func (s State) Clone() State {
	out := s
	if s.W != nil {
		out.W = append([]float64(nil), s.W...)
	}
	if s.Z != nil {
		out.Z = append([]float64(nil), s.Z...)
	}
	return out
}

// IsZero reports whether the state carries no iterate.
func (s State) IsZero() bool { return len(s.W) == 0 }

// Iterate is what an Observer sees at the top of every iteration. W is the
// solver's live iterate: observers must not modify or retain it.
type Iterate struct {
	Iteration   int
	W           []float64
	Energy      float64
	EnergyDelta float64
}

// Observer is consulted once per iteration; returning true stops the solve.
type Observer interface {
	Observe(it Iterate) bool
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(it Iterate) bool

// Observe calls f.
func (f ObserverFunc) Observe(it Iterate) bool { return f(it) }

// StopReason tells why Solve returned.
type StopReason int

const (
	StopMaxIter StopReason = iota
	StopConverged
	StopDualGap
	StopObserver
	StopStalled
	StopFixedPoint
)

func (r StopReason) String() string {
	switch r {
	case StopMaxIter:
		return "max-iter"
	case StopConverged:
		return "converged"
	case StopDualGap:
		return "dual-gap"
	case StopObserver:
		return "observer"
	case StopStalled:
		return "stalled"
	case StopFixedPoint:
		return "fixed-point"
	default:
		return "unknown"
	}
}
