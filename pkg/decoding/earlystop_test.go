package decoding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/fista"
)

func TestEarlyStoppingScore(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 0,
		2, 1,
		3, 0,
		4, 1,
		5, 0,
	})
	y := []float64{1, 8, 27, 64, 125}

	reg := NewEarlyStopping(X, y, false, nil)
	primary, secondary := reg.Score([]float64{1, 0})
	assert.Less(t, primary, 1.0, "pearson leads for regression")
	assert.InDelta(t, 1.0, secondary, 1e-12)

	clf := NewEarlyStopping(X, y, true, nil)
	primary, secondary = clf.Score([]float64{1, 0, 42})
	assert.InDelta(t, 1.0, primary, 1e-12, "spearman leads for classification")
	assert.Less(t, secondary, 1.0)

	// constant maps never win
	primary, secondary = reg.Score([]float64{3, 3})
	assert.True(t, math.IsInf(primary, -1))
	assert.True(t, math.IsInf(secondary, -1))
	primary, _ = clf.Score([]float64{0, 0, 5})
	assert.True(t, math.IsInf(primary, -1), "intercept is ignored")

	// constant held-out response
	flat := NewEarlyStopping(X, []float64{2, 2, 2, 2, 2}, false, nil)
	primary, _ = flat.Score([]float64{1, 0})
	assert.True(t, math.IsInf(primary, -1))
}

func TestEarlyStoppingPlateau(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 0, 2, 1, 3, 0, 4, 1})
	y := []float64{1, 2, 3, 5}
	e := NewEarlyStopping(X, y, false, nil)
	w := []float64{1, 0.5}
	for it := 1; it <= 21; it++ {
		assert.False(t, e.Observe(fista.Iterate{Iteration: it, W: w}), "iteration %d", it)
	}
	assert.True(t, e.Observe(fista.Iterate{Iteration: 22, W: w}))
	assert.Len(t, e.Scores(), 22)
}

func TestEarlyStoppingKeepsGoingWhileImproving(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 4,
		2, -3,
		3, 2,
		4, -1,
	})
	y := []float64{1, 2, 3, 4}
	e := NewEarlyStopping(X, y, false, nil)
	// the weight of the noisy column shrinks, so the correlation rises
	for it := 1; it <= 32; it++ {
		w := []float64{1, 1 / float64(it)}
		assert.False(t, e.Observe(fista.Iterate{Iteration: it, W: w}), "iteration %d", it)
	}
}

func TestEarlyStoppingDebias(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	e := NewEarlyStopping(X, []float64{2, 4, 6}, false, nil)
	w := []float64{1}
	e.Debias(w)
	assert.InDelta(t, 2.0, w[0], 1e-12)

	clf := NewEarlyStopping(X, []float64{2, 4, 6}, true, nil)
	w = []float64{1, 7}
	clf.Debias(w)
	assert.InDeltaSlice(t, []float64{2, 7}, w, 1e-12)

	zero := []float64{0}
	e.Debias(zero)
	assert.Equal(t, []float64{0}, zero)
}
