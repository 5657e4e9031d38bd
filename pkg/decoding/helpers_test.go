package decoding

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/volume"
)

// randomRegression draws an n x p Gaussian design and a response driven by
// every third feature.
func randomRegression(rng *rand.Rand, n, p int) (*mat.Dense, []float64) {
	X := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
	}
	w := make([]float64, p)
	for j := 0; j < p; j += 3 {
		w[j] = 1
	}
	y := make([]float64, n)
	for i := range y {
		y[i] = floats.Dot(X.RawRowView(i), w) + 0.1*rng.NormFloat64()
	}
	return X, y
}

// blobProblem is a regression on a shape grid where the response only
// depends on the voxels of a central block four voxels wide.
func blobProblem(t *testing.T, rng *rand.Rand, n int, shape []int) (*mat.Dense, []float64, *volume.Mask, []bool) {
	t.Helper()
	mask, err := volume.FullMask(shape)
	require.NoError(t, err)
	p := mask.Len()
	inBlob := make([]bool, p)
	coords := make([]int, len(shape))
	for i := range inBlob {
		volume.Coords(shape, i, coords)
		in := true
		for d, c := range coords {
			mid := shape[d] / 2
			if c < mid-2 || c > mid+1 {
				in = false
			}
		}
		inBlob[i] = in
	}
	X := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		s := rng.NormFloat64()
		y[i] = s + 0.1*rng.NormFloat64()
		for j := 0; j < p; j++ {
			v := rng.NormFloat64()
			if inBlob[j] {
				v += 2 * s
			}
			X.Set(i, j, v)
		}
	}
	return X, y, mask, inBlob
}

// classificationProblem draws two shifted Gaussian classes labelled 0 and 1.
func classificationProblem(rng *rand.Rand, n, p int) (*mat.Dense, []float64) {
	X := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = float64(i % 2)
		shift := 2*y[i] - 1
		for j := 0; j < p; j++ {
			v := rng.NormFloat64()
			if j < p/2 {
				v += shift
			}
			X.Set(i, j, v)
		}
	}
	return X, y
}

func signs(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		if v > 0 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}
