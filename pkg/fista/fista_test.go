package fista

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/objective"
	"spacenet/pkg/prox"
)

// spikeProblem is a 125 coefficient denoising problem with an identity
// design, an l1 penalty of weight alpha*n*l1Ratio and L = 1.
func spikeProblem(t *testing.T) (Problem, []float64, float64) {
	t.Helper()
	const p = 125
	rng := rand.New(rand.NewSource(0))
	sig := make([]float64, p)
	for _, i := range []int{0, 2, 13, 4, 25, 32, 80, 89, 91, 93, p - 1} {
		sig[i] = 1
	}
	for i := 0; i < 6; i++ {
		sig[i] = 2
	}
	for i := p - 7; i < p; i++ {
		sig[i] = 2
	}
	for i := 60; i < 75; i++ {
		sig[i] = 1
	}
	y := make([]float64, p)
	for i := range y {
		y[i] = sig[i] + 0.1*rng.NormFloat64()
	}
	ones := make([]float64, p)
	for i := range ones {
		ones[i] = 1
	}
	X := mat.NewDiagDense(p, ones)
	l1Weight := 0.01 * p * 0.2

	prob := Problem{
		Smooth:     func(w []float64) float64 { return objective.SquaredLoss(X, y, w) },
		SmoothGrad: func(w []float64) []float64 { return objective.SquaredLossGrad(X, y, w) },
		Prox: func(w []float64, step, _ float64, _ []float64) ([]float64, prox.Info) {
			return prox.L1(w, step*l1Weight), prox.Info{Converged: true}
		},
		Energy: func(w []float64) float64 {
			return objective.SquaredLoss(X, y, w) + l1Weight*floats.Norm(w, 1)
		},
		Lipschitz: 1,
		Size:      p,
	}
	return prob, y, l1Weight
}

func assertNonIncreasing(t *testing.T, energies []float64) {
	t.Helper()
	for i := 1; i < len(energies); i++ {
		assert.LessOrEqualf(t, energies[i], energies[i-1]+1e-12, "energy increased at %d", i)
	}
}

func TestSolveOptionGrid(t *testing.T) {
	prob, _, _ := spikeProblem(t)
	for _, pureISTA := range []bool{true, false} {
		for _, stop := range []bool{false, true} {
			for _, bt := range []bool{false, true} {
				for _, cm := range []bool{true, false} {
					for _, dgap := range []float64{1, 0} {
						stop := stop
						res, err := Solve(prob, Options{
							MaxIter:         100,
							Tol:             1e-4,
							PureISTA:        pureISTA,
							Backtracking:    bt,
							CheckMonotonous: cm,
							DgapFactor:      dgap,
							Observer:        ObserverFunc(func(Iterate) bool { return stop }),
						})
						require.NoError(t, err)
						assert.Len(t, res.W, prob.Size)
						assert.NotEmpty(t, res.Energies)
						assert.Len(t, res.State.W, prob.Size)
						assert.GreaterOrEqual(t, res.State.T, 1.0)
						assert.Greater(t, res.State.Stepsize, 0.0)
						assert.False(t, math.IsNaN(res.State.DgapTol))
						if stop {
							assert.Equal(t, StopObserver, res.Reason)
							assert.Equal(t, 0, res.Iterations)
						}
						if cm {
							assertNonIncreasing(t, res.Energies)
						}
					}
				}
			}
		}
	}
}

func TestSolveIdentityDesignIsSoftThreshold(t *testing.T) {
	prob, y, l1Weight := spikeProblem(t)
	res, err := Solve(prob, DefaultOptions())
	require.NoError(t, err)
	want := prox.L1(y, l1Weight)
	assert.InDeltaSlice(t, want, res.W, 1e-12)
	assert.Equal(t, StopFixedPoint, res.Reason)
}

func TestSolveBacktrackingRecoversFromSmallStep(t *testing.T) {
	prob, y, l1Weight := spikeProblem(t)
	prob.Lipschitz = 0.01
	opts := DefaultOptions()
	opts.Backtracking = true
	opts.MaxIter = 500
	opts.Tol = 1e-12
	res, err := Solve(prob, opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.State.Stepsize, 1.0)
	assert.InDeltaSlice(t, prox.L1(y, l1Weight), res.W, 1e-5)
}

func TestSolveZeroGradientStopsAtFirstIteration(t *testing.T) {
	prob := Problem{
		SmoothGrad: func(w []float64) []float64 { return make([]float64, len(w)) },
		Prox: func(w []float64, step, _ float64, _ []float64) ([]float64, prox.Info) {
			return prox.L1(w, step), prox.Info{Converged: true}
		},
		Energy:    func(w []float64) float64 { return floats.Norm(w, 1) },
		Lipschitz: 1,
		Size:      8,
	}
	res, err := Solve(prob, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, StopFixedPoint, res.Reason)
	assert.Equal(t, make([]float64, 8), res.W)
}

func TestSolveTVL1IsMonotone(t *testing.T) {
	shape := []int{4, 4}
	const nSamples, nFeatures = 20, 16
	rng := rand.New(rand.NewSource(42))
	data := make([]float64, nSamples*nFeatures)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	X := mat.NewDense(nSamples, nFeatures, data)
	y := make([]float64, nSamples)
	for i := range y {
		y[i] = rng.NormFloat64()
	}
	const alpha, l1Ratio = 2.0, 0.5

	prob := Problem{
		SmoothGrad: func(w []float64) []float64 { return objective.SquaredLossGrad(X, y, w) },
		Prox: func(w []float64, step, tol float64, init []float64) ([]float64, prox.Info) {
			opts := prox.DefaultTVL1Options()
			opts.L1Ratio = l1Ratio
			opts.Weight = alpha * step
			opts.DgapTol = tol
			opts.Init = init
			return prox.TVL1(w, shape, opts)
		},
		Energy: func(w []float64) float64 {
			return objective.SquaredLoss(X, y, w) + alpha*objective.TVL1(w, shape, l1Ratio)
		},
		Lipschitz: 1.05 * objective.SquaredLossLipschitz(X),
		Size:      nFeatures,
	}
	opts := DefaultOptions()
	opts.DgapFactor = (0.1 + l1Ratio) * (0.1 + l1Ratio)
	opts.MaxIter = 200
	res, err := Solve(prob, opts)
	require.NoError(t, err)
	assertNonIncreasing(t, res.Energies)
	assert.Less(t, res.Energies[len(res.Energies)-1], res.Energies[0])

	again, err := Solve(prob, opts)
	require.NoError(t, err)
	assert.Equal(t, res.W, again.W, "solve is deterministic")

	opts.Init = &res.State
	warm, err := Solve(prob, opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, prob.Energy(warm.W), prob.Energy(res.W)+1e-10)
}

func TestSolveInexactProxStillDescends(t *testing.T) {
	shape := []int{4, 4}
	const nSamples, nFeatures = 20, 16
	rng := rand.New(rand.NewSource(7))
	data := make([]float64, nSamples*nFeatures)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	X := mat.NewDense(nSamples, nFeatures, data)
	y := make([]float64, nSamples)
	for i := range y {
		y[i] = rng.NormFloat64()
	}
	const alpha, l1Ratio = 0.1, 0.5

	prob := Problem{
		SmoothGrad: func(w []float64) []float64 { return objective.SquaredLossGrad(X, y, w) },
		// three dual iterations with a zero tolerance never certify the gap
		Prox: func(w []float64, step, _ float64, init []float64) ([]float64, prox.Info) {
			opts := prox.DefaultTVL1Options()
			opts.L1Ratio = l1Ratio
			opts.Weight = alpha * step
			opts.MaxIter = 3
			opts.DgapTol = 0
			opts.Init = init
			return prox.TVL1(w, shape, opts)
		},
		Energy: func(w []float64) float64 {
			return objective.SquaredLoss(X, y, w) + alpha*objective.TVL1(w, shape, l1Ratio)
		},
		Lipschitz: 1.05 * objective.SquaredLossLipschitz(X),
		Size:      nFeatures,
	}
	opts := DefaultOptions()
	opts.MaxIter = 50
	res, err := Solve(prob, opts)
	require.NoError(t, err)
	require.Positive(t, res.Iterations)
	assert.Equal(t, res.Iterations, res.InexactProx)
	assertNonIncreasing(t, res.Energies)
	assert.Less(t, res.Energies[len(res.Energies)-1], res.Energies[0])
}

func TestSolveTightensProxToleranceOnEnergyIncrease(t *testing.T) {
	// f(w) = 0.5 * ||w - c||^2 with a prox that claims convergence but
	// overshoots by one whenever its tolerance is looser than 1e-3
	c := []float64{.1, .1, .1, .1}
	var tols []float64
	prob := Problem{
		SmoothGrad: func(w []float64) []float64 {
			g := make([]float64, len(w))
			floats.SubTo(g, w, c)
			return g
		},
		Prox: func(w []float64, _, tol float64, _ []float64) ([]float64, prox.Info) {
			tols = append(tols, tol)
			out := append([]float64(nil), w...)
			if tol > 1e-3 {
				floats.AddConst(1, out)
			}
			return out, prox.Info{Converged: true}
		},
		Energy: func(w []float64) float64 {
			d := make([]float64, len(w))
			floats.SubTo(d, w, c)
			return 0.5 * floats.Dot(d, d)
		},
		Lipschitz: 1,
		Size:      len(c),
	}
	opts := DefaultOptions()
	opts.PureISTA = true
	res, err := Solve(prob, opts)
	require.NoError(t, err)
	assert.InDeltaSlice(t, c, res.W, 1e-15)
	assert.Equal(t, StopFixedPoint, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	assertNonIncreasing(t, res.Energies)

	// the first step runs with an infinite tolerance and is rejected, the
	// second retries five times at a fifth of the previous tolerance
	require.Len(t, tols, 8)
	assert.True(t, math.IsInf(tols[0], 1))
	assert.InDelta(t, 1.98, tols[1], 1e-12)
	for i := 2; i <= 6; i++ {
		assert.InDeltaf(t, proxTightening, tols[i]/tols[i-1], 1e-12, "retry %d", i-1)
	}
	assert.LessOrEqual(t, tols[6], 1e-3)
	assert.Greater(t, tols[5], 1e-3)
}

func TestSolveNonFiniteEnergy(t *testing.T) {
	prob, _, _ := spikeProblem(t)
	prob.Energy = func([]float64) float64 { return math.NaN() }
	_, err := Solve(prob, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonFinite))
	assert.True(t, errors.HasAssertionFailure(err))
}

func TestSolveInvalidProblem(t *testing.T) {
	prob, _, _ := spikeProblem(t)
	bad := prob
	bad.Lipschitz = 0
	_, err := Solve(bad, DefaultOptions())
	assert.ErrorIs(t, err, ErrProblem)

	bad = prob
	bad.Smooth = nil
	opts := DefaultOptions()
	opts.Backtracking = true
	_, err = Solve(bad, opts)
	assert.ErrorIs(t, err, ErrProblem)

	opts = DefaultOptions()
	opts.Init = &State{W: []float64{1, 2}}
	_, err = Solve(prob, opts)
	assert.ErrorIs(t, err, ErrProblem)
}

func TestSquaredLossLipschitz(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for e := -3; e <= 3; e++ {
		scaling := math.Pow(10, float64(e))
		X, y := randomDesign(rng, 4, 2, scaling)
		L := objective.SquaredLossLipschitz(X)
		grad := func(w []float64) []float64 { return objective.SquaredLossGrad(X, y, w) }
		assert.NoError(t, CheckLipschitz(grad, 2, L, 50, rng), "scaling %g", scaling)
	}
}

func TestLogisticLipschitz(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for e := -3; e <= 3; e++ {
		scaling := math.Pow(10, float64(e))
		X, y := randomDesign(rng, 4, 2, scaling)
		for i := range y {
			y[i] = math.Copysign(1, y[i])
		}
		L := objective.LogisticLipschitz(X)
		grad := func(w []float64) []float64 { return objective.LogisticGrad(X, y, w) }
		assert.NoError(t, CheckLipschitz(grad, 3, L, 50, rng), "scaling %g", scaling)
	}
}

func TestCheckLipschitzDetectsViolation(t *testing.T) {
	grad := func(w []float64) []float64 {
		out := make([]float64, len(w))
		floats.AddScaled(out, 3, w)
		return out
	}
	err := CheckLipschitz(grad, 4, 1, 10, nil)
	assert.ErrorIs(t, err, ErrNotLipschitz)
	assert.NoError(t, CheckLipschitz(grad, 4, 3, 10, nil))
}

func randomDesign(rng *rand.Rand, n, p int, scaling float64) (*mat.Dense, []float64) {
	data := make([]float64, n*p)
	for i := range data {
		data[i] = scaling * rng.NormFloat64()
	}
	y := make([]float64, n)
	for i := range y {
		y[i] = rng.NormFloat64()
	}
	return mat.NewDense(n, p, data), y
}
