// Package fista implements the monotone fast iterative shrinkage-thresholding
// algorithm (MFISTA) for composite objectives f(w) + g(w) where f is smooth
// with a Lipschitz gradient and g has an (possibly inexact) proximal operator.
package fista

import (
	"context"
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"

	"spacenet/pkg/prox"
)

// ProxFunc evaluates the proximal operator of g at w for the given
// stepsize. dgapTol is the duality-gap tolerance for iterative operators and
// init a warm start; closed-form operators may ignore both.
type ProxFunc func(w []float64, stepsize, dgapTol float64, init []float64) ([]float64, prox.Info)

// Problem describes one composite objective.
type Problem struct {
	// Smooth evaluates f. Only needed when backtracking is enabled.
	Smooth func(w []float64) float64

	// SmoothGrad evaluates the gradient of f.
	SmoothGrad func(w []float64) []float64

	// Prox is the proximal operator of g.
	Prox ProxFunc

	// Energy evaluates the full objective f + g.
	Energy func(w []float64) float64

	// Lipschitz is an upper bound on the Lipschitz constant of SmoothGrad.
	Lipschitz float64

	// Size is the length of the coefficient vector.
	Size int
}

// Options controls the solver loop.
type Options struct {
	MaxIter int
	Tol     float64

	// PureISTA drops the momentum step.
	PureISTA bool

	// Backtracking doubles the local Lipschitz estimate whenever the
	// quadratic upper bound fails at the new iterate.
	Backtracking bool

	// CheckMonotonous rejects steps that increase the energy and restarts
	// from the previous iterate with a plain ISTA step.
	CheckMonotonous bool

	// DgapFactor scales the inner prox tolerance. When positive it also
	// enables the relative energy stop |ΔE| < DgapFactor*Tol*max(1,|E|).
	DgapFactor float64

	// MaxRejections bounds consecutive rejected steps.
	MaxRejections int

	Observer Observer
	Init     *State
	Logger   *slog.Logger
}

// DefaultOptions returns the settings used by the path solvers.
func DefaultOptions() Options {
	return Options{
		MaxIter:         1000,
		Tol:             1e-4,
		CheckMonotonous: true,
		MaxRejections:   10,
	}
}

// Result is what Solve returns.
type Result struct {
	// W is the iterate with the lowest energy seen.
	W []float64

	// Energies holds the energy at the start of every iteration followed
	// by the final energy. With CheckMonotonous it is non-increasing.
	Energies []float64

	// State allows warm-starting the next solve.
	State State

	Iterations int
	Reason     StopReason

	// InexactProx counts iterations whose prox did not certify its tolerance.
	InexactProx int
}

const (
	maxProxRetries     = 10
	proxTightening     = 0.2
	maxBacktrackSteps  = 60
	backtrackSlackUlps = 1e-12
)

func (p Problem) validate(opts Options) error {
	switch {
	case p.Size <= 0:
		return errors.Wrapf(ErrProblem, "size %d", p.Size)
	case p.SmoothGrad == nil || p.Prox == nil || p.Energy == nil:
		return errors.Wrap(ErrProblem, "missing callback")
	case !(p.Lipschitz > 0) || math.IsInf(p.Lipschitz, 0):
		return errors.Wrapf(ErrProblem, "lipschitz constant %g", p.Lipschitz)
	case opts.Backtracking && p.Smooth == nil:
		return errors.Wrap(ErrProblem, "backtracking needs the smooth part")
	}
	if opts.Init != nil && len(opts.Init.W) != 0 && len(opts.Init.W) != p.Size {
		return errors.Wrapf(ErrProblem, "warm start has %d coefficients, want %d", len(opts.Init.W), p.Size)
	}
	return nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// Solve runs MFISTA from zero or from opts.Init and returns the best iterate.
func Solve(p Problem, opts Options) (Result, error) {
	if err := p.validate(opts); err != nil {
		return Result{}, err
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultOptions().MaxIter
	}
	if opts.MaxRejections <= 0 {
		opts.MaxRejections = DefaultOptions().MaxRejections
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debug := logger.Enabled(context.Background(), slog.LevelDebug)

	n := p.Size
	w := make([]float64, n)
	z := make([]float64, n)
	t := 1.0
	stepsize := 1 / p.Lipschitz
	dgapTol := math.Inf(1)
	if init := opts.Init; init != nil && !init.IsZero() {
		copy(w, init.W)
		if len(init.Z) == n {
			copy(z, init.Z)
		} else {
			copy(z, w)
		}
		if init.T >= 1 {
			t = init.T
		}
		if init.Stepsize > 0 && init.Stepsize < stepsize {
			stepsize = init.Stepsize
		}
		if init.DgapTol > 0 {
			dgapTol = init.DgapTol
		}
	}
	if opts.PureISTA {
		copy(z, w)
	}
	factor := 1.0
	if opts.DgapFactor > 0 {
		factor = opts.DgapFactor
	}

	energy := p.Energy(w)
	if !finite(energy) {
		return Result{}, errors.WithAssertionFailure(errors.Wrapf(ErrNonFinite, "initial energy %g", energy))
	}
	res := Result{Reason: StopMaxIter}
	best := append([]float64(nil), w...)
	bestZ := append([]float64(nil), z...)
	bestEnergy, bestT, bestDgapTol := energy, t, dgapTol

	wOld := make([]float64, n)
	diff := make([]float64, n)
	delta := math.Inf(1)
	istaStep := opts.PureISTA
	rejections := 0

	k := 0
loop:
	for ; k < opts.MaxIter; k++ {
		res.Energies = append(res.Energies, energy)
		if opts.Observer != nil && opts.Observer.Observe(Iterate{Iteration: k + 1, W: w, Energy: energy, EnergyDelta: delta}) {
			res.Reason = StopObserver
			break
		}
		copy(wOld, w)
		if istaStep {
			copy(z, w)
		}
		grad := p.SmoothGrad(z)

		var (
			wNew      []float64
			info      prox.Info
			newEnergy float64
		)
		for attempt := 0; attempt < maxProxRetries; attempt++ {
			wNew, info, stepsize = forwardBackward(p, opts.Backtracking, z, grad, stepsize, factor*dgapTol, w, diff)
			newEnergy = p.Energy(wNew)
			// An exact prox that still raises the energy on an ISTA step
			// means the tolerance is too loose for this iterate.
			if istaStep && info.Converged && newEnergy > energy && !math.IsInf(dgapTol, 1) {
				factor *= proxTightening
				continue
			}
			break
		}
		if !info.Converged {
			res.InexactProx++
		}
		if !finite(newEnergy) {
			return Result{}, errors.WithAssertionFailure(errors.Wrapf(ErrNonFinite, "energy %g at iteration %d", newEnergy, k+1))
		}

		delta = energy - newEnergy
		if opts.CheckMonotonous && delta < 0 {
			rejections++
			copy(w, wOld)
			copy(z, wOld)
			istaStep = true
			if debug {
				logger.Debug("mfista step rejected", "iter", k+1, "energy", newEnergy, "previous", energy)
			}
			if rejections > opts.MaxRejections {
				res.Reason = StopStalled
				k++
				break
			}
		} else {
			rejections = 0
			moved := !floats.Equal(wNew, w)
			if istaStep {
				copy(z, wNew)
			} else {
				t0 := t
				t = (1 + math.Sqrt(1+4*t*t)) / 2
				beta := (t0 - 1) / t
				for i := range z {
					z[i] = wNew[i] + beta*(wNew[i]-w[i])
				}
			}
			istaStep = opts.PureISTA
			copy(w, wNew)
			energy = newEnergy
			if energy <= bestEnergy {
				copy(best, w)
				copy(bestZ, z)
				bestEnergy, bestT = energy, t
				bestDgapTol = math.Abs(delta) / float64(k+1)
			}
			if debug {
				logger.Debug("mfista iteration", "iter", k+1, "energy", energy, "delta", delta, "stepsize", stepsize)
			}
			if !moved {
				res.Reason = StopFixedPoint
				k++
				break
			}
		}

		dgapTol = math.Abs(delta) / float64(k+1)
		switch {
		case math.Abs(delta) < opts.Tol:
			res.Reason = StopConverged
			k++
			break loop
		case opts.DgapFactor > 0 && math.Abs(delta) < opts.DgapFactor*opts.Tol*math.Max(1, math.Abs(energy)):
			res.Reason = StopDualGap
			k++
			break loop
		}
	}
	res.Energies = append(res.Energies, energy)

	res.Iterations = k
	res.W = best
	res.State = State{W: append([]float64(nil), best...), Z: bestZ, T: bestT, DgapTol: bestDgapTol, Stepsize: stepsize}
	logger.Debug("mfista done",
		"reason", res.Reason.String(),
		"iterations", res.Iterations,
		"energy", bestEnergy,
		"inexact_prox", res.InexactProx)
	return res, nil
}

// forwardBackward takes one proximal gradient step from z. With
// backtracking the stepsize is halved until the quadratic upper bound of f
// around z holds at the new point; the possibly reduced stepsize is returned.
func forwardBackward(p Problem, backtrack bool, z, grad []float64, stepsize, tol float64, init, diff []float64) ([]float64, prox.Info, float64) {
	fwd := make([]float64, len(z))
	step := func(s float64) ([]float64, prox.Info) {
		copy(fwd, z)
		floats.AddScaled(fwd, -s, grad)
		return p.Prox(fwd, s, tol, init)
	}
	wNew, info := step(stepsize)
	if !backtrack {
		return wNew, info, stepsize
	}
	fz := p.Smooth(z)
	for i := 0; i < maxBacktrackSteps; i++ {
		floats.SubTo(diff, wNew, z)
		bound := fz + floats.Dot(grad, diff) + floats.Dot(diff, diff)/(2*stepsize)
		if p.Smooth(wNew) <= bound+backtrackSlackUlps*math.Abs(bound) {
			break
		}
		stepsize /= 2
		wNew, info = step(stepsize)
	}
	return wNew, info, stepsize
}
