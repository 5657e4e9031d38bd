package decoding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/solver"
	"spacenet/pkg/volume"
)

func TestPathScoresSingleFoldClassification(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	X, labels := classificationProblem(rng, 30, 8)
	y := signs(labels)
	mask, err := volume.FullMask([]int{8})
	require.NoError(t, err)

	res, err := PathScores(PathTask{
		Penalty:             solver.SmoothLasso,
		Loss:                solver.Logistic,
		X:                   X,
		Y:                   y,
		Mask:                mask,
		NAlphas:             3,
		Eps:                 1e-2,
		L1Ratio:             .5,
		Fold:                SingleFold(30)[0],
		ScreeningPercentile: 20,
		MaxIter:             200,
		Tol:                 1e-4,
	})
	require.NoError(t, err)
	require.Len(t, res.TestScores, 1)
	assert.True(t, math.IsNaN(res.TestScores[0]))
	assert.Len(t, res.W, 9)
	assert.Nil(t, res.Support, "8 features are never screened")

	centred := mat.DenseCopyOf(X)
	centerColumns(centred)
	grid, err := AlphaGrid(centred, y, .5, 1e-2, 3, true)
	require.NoError(t, err)
	assert.InEpsilon(t, grid[0], res.BestAlpha, 1e-12, "without test samples the largest alpha is kept")
}

func TestPathScoresScreeningZeroesDroppedFeatures(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	shape := []int{10, 10, 6}
	X, y, mask, inBlob := blobProblem(t, rng, 40, shape)

	res, err := PathScores(PathTask{
		Penalty:             solver.SmoothLasso,
		Loss:                solver.MSE,
		X:                   X,
		Y:                   y,
		Mask:                mask,
		Alphas:              []float64{0.05},
		L1Ratio:             .5,
		Fold:                SingleFold(40)[0],
		ScreeningPercentile: 20,
		MaxIter:             300,
		Tol:                 1e-4,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Support)
	require.Len(t, res.W, mask.Count()+1)

	kept := countTrue(res.Support)
	assert.Positive(t, kept)
	assert.Less(t, kept, mask.Count(), "screening reduces the features passed to the solver")
	for i, keep := range res.Support {
		if !keep {
			assert.Zero(t, res.W[i], "dropped feature %d", i)
		}
	}
	// the informative block survives screening
	blobKept := 0
	for i, b := range inBlob {
		if b && res.Support[i] {
			blobKept++
		}
	}
	assert.Greater(t, blobKept, countTrue(inBlob)/2)
}

func TestPathScoresScansGridWithTestFold(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	X, y := randomRegression(rng, 40, 12)
	mask, err := volume.FullMask([]int{3, 4})
	require.NoError(t, err)
	folds, err := KFold(40, 4)
	require.NoError(t, err)

	for _, penalty := range []solver.Penalty{solver.SmoothLasso, solver.TVL1} {
		res, err := PathScores(PathTask{
			Penalty: penalty,
			Loss:    solver.MSE,
			X:       X,
			Y:       y,
			Mask:    mask,
			NAlphas: 4,
			Eps:     1e-2,
			L1Ratio: .5,
			Fold:    folds[0],
			Debias:  true,
			MaxIter: 200,
			Tol:     1e-4,
		})
		require.NoError(t, err)
		assert.Len(t, res.TestScores, 4)
		assert.Len(t, res.W, 13)
		best := math.Inf(-1)
		for _, s := range res.TestScores {
			if s > best {
				best = s
			}
		}
		assert.Greater(t, best, 0.5, "held-out correlation of the best alpha")
	}
}

func TestPathScoresRejectsBadTask(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	X, y := randomRegression(rng, 10, 4)
	mask, err := volume.FullMask([]int{5})
	require.NoError(t, err)
	_, err = PathScores(PathTask{X: X, Y: y, Mask: mask, Fold: SingleFold(10)[0], Alphas: []float64{1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	mask, err = volume.FullMask([]int{4})
	require.NoError(t, err)
	_, err = PathScores(PathTask{X: X, Y: y, Mask: mask, Fold: Fold{Test: []int{1}}, Alphas: []float64{1}})
	assert.ErrorIs(t, err, ErrFolds)

	_, err = PathScores(PathTask{Penalty: solver.Penalty(9), X: X, Y: y, Mask: mask, Fold: SingleFold(10)[0]})
	assert.ErrorIs(t, err, solver.ErrUnknownKind)
}

func TestPathTaskKey(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	X, y := randomRegression(rng, 10, 4)
	mask, err := volume.FullMask([]int{4})
	require.NoError(t, err)
	task := PathTask{X: X, Y: y, Mask: mask, Fold: SingleFold(10)[0], Alphas: []float64{1}, L1Ratio: .5}
	other := task
	assert.Equal(t, task.Key(), other.Key())
	other.L1Ratio = .4
	assert.NotEqual(t, task.Key(), other.Key())
	other = task
	other.Fold = Fold{Train: []int{0, 1, 2}, Test: []int{3}}
	assert.NotEqual(t, task.Key(), other.Key())
}

func TestScreenFeaturesReducesMask(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	X, y, mask, _ := blobProblem(t, rng, 40, []int{10, 10, 6})
	support, reduced, err := screenFeatures(X, y, mask, false, 20)
	require.NoError(t, err)
	require.Len(t, support, mask.Count())
	assert.True(t, reduced.SubsetOf(mask))
	assert.Equal(t, countTrue(support), reduced.Count())
	assert.Equal(t, mask.Shape, reduced.Shape)

	short := mat.NewDense(40, 5, nil)
	_, _, err = screenFeatures(short, y, mask, false, 20)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
