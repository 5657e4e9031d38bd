package prox

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"spacenet/pkg/objective"
)

// TVL1Options configures the exact TV-L1 proximal evaluation.
type TVL1Options struct {
	// L1Ratio mixes the TV term (0) and the L1 term (1)
	L1Ratio float64

	// Weight is the multiplier of the penalty, usually alpha * stepsize
	Weight float64

	// DgapTol is the duality gap below which the dual iterations stop
	DgapTol float64

	// MaxIter bounds the number of dual iterations
	MaxIter int

	// CheckGapFrequency is the period, in iterations, of the gap check
	CheckGapFrequency int

	// Init optionally warm-starts the primal variable
	Init []float64

	// DisableFISTA runs plain projected gradient on the dual
	DisableFISTA bool
}

// DefaultTVL1Options returns the settings used by the TV-L1 solvers.
func DefaultTVL1Options() TVL1Options {
	return TVL1Options{
		L1Ratio:           0.5,
		Weight:            1,
		DgapTol:           5e-5,
		MaxIter:           1000,
		CheckGapFrequency: 4,
	}
}

// projectOnTVL1Dual projects a GradientID-shaped array onto the dual ball
// of the TV-L1 norm: every voxel's spatial channels onto the unit Euclidean
// ball, and the identity channel onto [-1, 1].
func projectOnTVL1Dual(p []float64, ndim, n int) {
	for i := 0; i < n; i++ {
		sq := 0.0
		for d := 0; d < ndim; d++ {
			sq += p[d*n+i] * p[d*n+i]
		}
		if sq > 1 {
			inv := 1 / math.Sqrt(sq)
			for d := 0; d < ndim; d++ {
				p[d*n+i] *= inv
			}
		}
	}
	id := p[ndim*n:]
	for i, v := range id {
		id[i] = math.Max(-1, math.Min(1, v))
	}
}

// dualGap returns the duality gap of the prox problem at primal x:
// 0.5 * (||x - y||^2 + 2 w TVL1(x) - ||y||^2 + ||x||^2).
func dualGap(x, y []float64, shape []int, weight, l1Ratio, yNorm2 float64) float64 {
	diff2 := 0.0
	for i := range x {
		d := x[i] - y[i]
		diff2 += d * d
	}
	tv := objective.TVL1(x, shape, l1Ratio)
	return 0.5 * (diff2 + 2*weight*tv - yNorm2 + floats.Dot(x, x))
}

// TVL1 evaluates the proximal operator of weight * TVL1 at img:
//
//	argmin_x 0.5 * ||x - img||^2 + weight * TVL1(x)
//
// It runs FISTA on the dual problem over p in the TV-L1 dual ball, with the
// primal recovered as x = img + weight * DivID(p). The duality gap is checked
// every CheckGapFrequency iterations; when it grows, momentum is dropped
// until it decreases again. Hitting MaxIter is not an error: the best-effort
// iterate is returned with Info.Converged set to false.
func TVL1(img []float64, shape []int, opts TVL1Options) ([]float64, Info) {
	if opts.Weight <= 0 {
		return append([]float64(nil), img...), Info{Converged: true}
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultTVL1Options().MaxIter
	}
	if opts.CheckGapFrequency <= 0 {
		opts.CheckGapFrequency = 1
	}

	n := len(img)
	ndim := len(shape)
	r := opts.L1Ratio
	weight := opts.Weight
	lipschitz := 1.1 * (4*float64(ndim)*(1-r)*(1-r) + r*r)
	yNorm2 := floats.Dot(img, img)

	p := make([]float64, (ndim+1)*n)
	pAux := make([]float64, (ndim+1)*n)
	pPrev := make([]float64, (ndim+1)*n)

	x := append([]float64(nil), img...)
	if len(opts.Init) == n {
		copy(x, opts.Init)
	}

	t := 1.0
	dgap := math.Inf(1)
	fistaStep := !opts.DisableFISTA
	i := 0
	for ; i < opts.MaxIter; i++ {
		// ascent step on the dual at the extrapolated point
		g := objective.GradientID(x, shape, r)
		floats.AddScaled(pAux, 1/(lipschitz*weight), g)
		projectOnTVL1Dual(pAux, ndim, n)

		tNew := 0.5 * (1 + math.Sqrt(1+4*t*t))
		tFactor := (t - 1) / tNew
		copy(pPrev, p)
		copy(p, pAux)
		if fistaStep {
			for k := range pAux {
				pAux[k] = (1+tFactor)*p[k] - tFactor*pPrev[k]
			}
		}
		t = tNew

		div := objective.DivID(pAux, shape, r)
		for k := range x {
			x[k] = img[k] + weight*div[k]
		}

		if i%opts.CheckGapFrequency == 0 {
			// the gap is certified at the feasible (projected) iterate
			oldGap := dgap
			dgap = dualGap(primal(img, p, shape, weight, r), img, shape, weight, r, yNorm2)
			if dgap < opts.DgapTol {
				break
			}
			if oldGap < dgap {
				fistaStep = false
			} else if !opts.DisableFISTA {
				fistaStep = true
			}
		}
	}

	// primal from the non-extrapolated dual iterate
	return primal(img, p, shape, weight, r), Info{
		Converged:  i < opts.MaxIter,
		Iterations: i,
		DualGap:    dgap,
	}
}

// primal returns img + weight * DivID(p).
func primal(img, p []float64, shape []int, weight, l1Ratio float64) []float64 {
	div := objective.DivID(p, shape, l1Ratio)
	for k := range div {
		div[k] = img[k] + weight*div[k]
	}
	return div
}

// TVL1WithIntercept applies TVL1 to w[:len(w)-1] and passes the last entry,
// an unpenalised intercept, through unchanged.
func TVL1WithIntercept(w []float64, shape []int, opts TVL1Options) ([]float64, Info) {
	k := len(w) - 1
	if len(opts.Init) == len(w) {
		opts.Init = opts.Init[:k]
	}
	out, info := TVL1(w[:k], shape, opts)
	return append(out, w[k]), info
}
