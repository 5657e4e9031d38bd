package decoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/solver"
)

func TestAlphaGridIsDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	X, y := randomRegression(rng, 30, 12)
	for _, l1 := range []float64{0, 0.2, 0.5, 1} {
		grid, err := AlphaGrid(X, y, l1, 1e-3, 10, false)
		require.NoError(t, err)
		require.Len(t, grid, 10)
		assert.Equal(t, AlphaMax(X, y, l1, false), grid[0])
		assert.InEpsilon(t, grid[0]*1e-3, grid[9], 1e-9)
		for i := 1; i < len(grid); i++ {
			assert.Less(t, grid[i], grid[i-1])
		}
	}

	one, err := AlphaGrid(X, y, .5, 1e-3, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{AlphaMax(X, y, .5, false)}, one)
}

func TestAlphaGridRejectsDegenerateInput(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	_, err := AlphaGrid(X, []float64{0, 0, 0}, .5, 1e-3, 5, false)
	assert.ErrorIs(t, err, ErrAlphaGrid)
	_, err = AlphaGrid(X, []float64{1, 2, 3}, .5, 2, 5, false)
	assert.ErrorIs(t, err, ErrAlphaGrid)
	_, err = AlphaGrid(X, []float64{1, 2, 3}, .5, 1e-3, 0, false)
	assert.ErrorIs(t, err, ErrAlphaGrid)
}

func TestAlphaMaxLogistic(t *testing.T) {
	// n+ = 2, n- = 2: b = [.5, -.5, .5, -.5]
	X := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		2, 0,
		0, 3,
	})
	y := []float64{1, -1, 1, -1}
	// X^T b = [1.5, -2]
	assert.InDelta(t, 2.0/(4*0.5), AlphaMax(X, y, .5, true), 1e-12)

	// a constant column is orthogonal to the balanced residuals: fall back
	// to max|X^T y|
	ones := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	yUnbalanced := []float64{1, 1, 1, -1}
	assert.InDelta(t, 2.0/4, AlphaMax(ones, yUnbalanced, 1, true), 1e-12)

	// l1_ratio 0 is clipped to 1e-3
	assert.InDelta(t, 2.0/(4*1e-3), AlphaMax(ones, yUnbalanced, 0, true), 1e-9)
}

func TestAlphaMaxKillsAllWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	X, y := randomRegression(rng, 25, 15)
	grid, err := AlphaGrid(X, y, 1, 1e-2, 4, false)
	require.NoError(t, err)

	for _, solve := range []solver.Func{solver.SmoothLassoSquaredLoss, solver.TVL1SquaredLoss} {
		res, err := solve(solver.Params{X: X, Y: y, Alpha: grid[0], L1Ratio: 1, RescaleAlpha: true})
		require.NoError(t, err)
		assert.InDeltaSlice(t, make([]float64, 15), res.W, 1e-8)

		res, err = solve(solver.Params{X: X, Y: y, Alpha: grid[3], L1Ratio: 1, RescaleAlpha: true})
		require.NoError(t, err)
		nonzero := 0
		for _, v := range res.W {
			if v != 0 {
				nonzero++
			}
		}
		assert.Positive(t, nonzero)
	}
}
