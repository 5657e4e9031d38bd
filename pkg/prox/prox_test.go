package prox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"spacenet/pkg/objective"
)

func TestL1(t *testing.T) {
	got := L1([]float64{-3, -0.5, 0, 0.2, 2}, 1)
	assert.InDeltaSlice(t, []float64{-2, 0, 0, 0, 1}, got, 1e-15)

	w := []float64{1.5, -1.5}
	L1Into(w, w, 0.5)
	assert.Equal(t, []float64{1, -1}, w)
}

func proxEnergy(x, y []float64, shape []int, weight, l1Ratio float64) float64 {
	e := 0.0
	for i := range x {
		d := x[i] - y[i]
		e += 0.5 * d * d
	}
	return e + weight*objective.TVL1(x, shape, l1Ratio)
}

func TestTVL1ReducesToSoftThreshold(t *testing.T) {
	img := []float64{3, -0.2, 0.7, -2, 0.1, 1.2}
	opts := DefaultTVL1Options()
	opts.L1Ratio = 1
	opts.Weight = 0.5
	opts.DgapTol = 1e-10

	out, info := TVL1(img, []int{2, 3}, opts)
	assert.True(t, info.Converged)
	assert.InDeltaSlice(t, L1(img, 0.5), out, 1e-4)
}

func TestTVL1IsMinimiser(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	shape := []int{4, 4, 3}
	img := make([]float64, 48)
	for i := range img {
		img[i] = rng.NormFloat64()
	}
	opts := DefaultTVL1Options()
	opts.L1Ratio = 0.3
	opts.Weight = 0.4
	opts.DgapTol = 1e-5
	opts.MaxIter = 20000

	out, info := TVL1(img, shape, opts)
	require.True(t, info.Converged)

	best := proxEnergy(out, img, shape, opts.Weight, opts.L1Ratio)
	assert.True(t, best <= proxEnergy(img, img, shape, opts.Weight, opts.L1Ratio))
	for trial := 0; trial < 20; trial++ {
		perturbed := append([]float64(nil), out...)
		for i := range perturbed {
			perturbed[i] += 1e-2 * rng.NormFloat64()
		}
		e := proxEnergy(perturbed, img, shape, opts.Weight, opts.L1Ratio)
		assert.True(t, best <= e+1e-6, "perturbation %d lowers the prox energy: %g < %g", trial, e, best)
	}
}

func TestTVL1ReportsNonConvergence(t *testing.T) {
	img := []float64{1, 5, -2, 4, 0, 3, -1}
	opts := DefaultTVL1Options()
	opts.Weight = 2
	opts.DgapTol = 0
	opts.MaxIter = 3

	out, info := TVL1(img, []int{7}, opts)
	assert.False(t, info.Converged)
	assert.Equal(t, 3, info.Iterations)
	assert.Len(t, out, len(img))
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
	}
}

func TestTVL1ZeroWeight(t *testing.T) {
	img := []float64{1, 2}
	out, info := TVL1(img, []int{2}, TVL1Options{Weight: 0})
	assert.True(t, info.Converged)
	assert.Equal(t, img, out)
}

func TestTVL1WithIntercept(t *testing.T) {
	w := []float64{2, -2, 0.1, 7}
	opts := DefaultTVL1Options()
	opts.L1Ratio = 1
	opts.Weight = 1
	opts.DgapTol = 1e-10

	out, _ := TVL1WithIntercept(w, []int{3}, opts)
	require.Len(t, out, 4)
	assert.Equal(t, 7.0, out[3], "intercept must pass through")
	assert.InDeltaSlice(t, []float64{1, -1, 0}, out[:3], 1e-4)
}
