package fista

import (
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// CheckLipschitz probes grad at trials random pairs of points drawn at
// several scales and reports ErrNotLipschitz if any pair violates
// ||grad(a)-grad(b)|| <= L ||a-b||.
func CheckLipschitz(grad func([]float64) []float64, size int, L float64, trials int, rng *rand.Rand) error {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	a := make([]float64, size)
	b := make([]float64, size)
	for i := 0; i < trials; i++ {
		scale := math.Pow(10, float64(i%7-3))
		for j := range a {
			a[j] = scale * rng.NormFloat64()
			b[j] = scale * rng.NormFloat64()
		}
		ga, gb := grad(a), grad(b)
		lhs := floats.Distance(ga, gb, 2)
		rhs := L * floats.Distance(a, b, 2)
		if lhs > rhs*(1+1e-9)+1e-12 {
			return errors.Wrapf(ErrNotLipschitz, "trial %d: %g > %g", i, lhs, rhs)
		}
	}
	return nil
}
