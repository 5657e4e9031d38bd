// Package solver binds the generic MFISTA engine to the Graph-Net and
// TV-L1 penalties, each crossed with the squared and logistic losses.
//
// All four adapters share one signature, see Func. For the logistic loss
// the coefficient vector carries the intercept as its last entry; it is
// never penalised.
package solver

import (
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/fista"
	"spacenet/pkg/volume"
)

// Params are the inputs of one penalised fit.
type Params struct {
	X mat.Matrix
	Y []float64

	Alpha   float64
	L1Ratio float64

	// Mask gives the spatial layout of the columns of X. Nil means a
	// one-dimensional chain of n_features voxels.
	Mask *volume.Mask

	Init     *fista.State
	Observer fista.Observer

	Tol     float64
	MaxIter int

	// RescaleAlpha multiplies Alpha by the number of samples so that the
	// penalty scales like the un-normalised loss.
	RescaleAlpha bool

	Logger *slog.Logger
}

// Result is the outcome of one adapter call.
type Result = fista.Result

// DefaultTol and DefaultMaxIter are used when Params leaves them at zero.
const (
	DefaultTol     = 1e-4
	DefaultMaxIter = 1000
)

// problem is the validated, derived view of Params shared by adapters.
type problem struct {
	Params
	nSamples  int
	nFeatures int
	mask      *volume.Mask
	alpha     float64
	logger    *slog.Logger
}

func prepare(p Params) (*problem, error) {
	if p.X == nil {
		return nil, errors.Wrap(ErrDimensionMismatch, "nil design matrix")
	}
	n, d := p.X.Dims()
	if n == 0 || d == 0 {
		return nil, errors.Wrapf(ErrDimensionMismatch, "design is %dx%d", n, d)
	}
	if len(p.Y) != n {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d samples but %d targets", n, len(p.Y))
	}
	if p.L1Ratio < 0 || p.L1Ratio > 1 || math.IsNaN(p.L1Ratio) {
		return nil, errors.Wrapf(ErrL1Ratio, "got %g", p.L1Ratio)
	}
	if p.Alpha < 0 || math.IsNaN(p.Alpha) || math.IsInf(p.Alpha, 0) {
		return nil, errors.Wrapf(ErrAlpha, "got %g", p.Alpha)
	}
	mask := p.Mask
	if mask == nil {
		var err error
		if mask, err = volume.FullMask([]int{d}); err != nil {
			return nil, err
		}
	}
	if c := mask.Count(); c != d {
		return nil, errors.Wrapf(ErrDimensionMismatch, "mask has %d active voxels, X has %d features", c, d)
	}
	if p.Tol <= 0 {
		p.Tol = DefaultTol
	}
	if p.MaxIter <= 0 {
		p.MaxIter = DefaultMaxIter
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	alpha := p.Alpha
	if p.RescaleAlpha {
		alpha *= float64(n)
	}
	return &problem{Params: p, nSamples: n, nFeatures: d, mask: mask, alpha: alpha, logger: logger}, nil
}

// gapFactor is the relative duality-gap factor handed to the solver. The
// TV part is harder to converge, so small l1 ratios get a tighter gap.
func (pb *problem) gapFactor() float64 {
	return (0.1 + pb.L1Ratio) * (0.1 + pb.L1Ratio)
}

func (pb *problem) options() fista.Options {
	opts := fista.DefaultOptions()
	opts.Tol = pb.Tol
	opts.MaxIter = pb.MaxIter
	opts.DgapFactor = pb.gapFactor()
	opts.Observer = pb.Observer
	opts.Logger = pb.logger
	if pb.Init != nil && !pb.Init.IsZero() {
		init := pb.Init.Clone()
		opts.Init = &init
	}
	return opts
}

// coef returns the penalised part of w.
func (pb *problem) coef(w []float64) []float64 { return w[:pb.nFeatures] }

func (pb *problem) solve(prob fista.Problem) (Result, error) {
	res, err := fista.Solve(prob, pb.options())
	if err != nil {
		return Result{}, errors.Wrapf(err, "alpha %g, l1_ratio %g", pb.alpha, pb.L1Ratio)
	}
	if res.InexactProx > 0 {
		pb.logger.Warn("inner prox did not reach its tolerance",
			"calls", res.InexactProx, "iterations", res.Iterations, "alpha", pb.alpha)
	}
	return res, nil
}
