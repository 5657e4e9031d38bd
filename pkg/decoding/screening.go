package decoding

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"spacenet/internal/ndimage"
	"spacenet/pkg/stats"
	"spacenet/pkg/volume"
)

// Screening is applied only above this many features.
const minScreeningFeatures = 100

// ScreeningSmoothing is the width, in voxels, of the Gaussian applied to
// every sample before the F-test.
const ScreeningSmoothing = 2.0

// screeningEnabled reports whether univariate screening runs for a problem
// with nFeatures columns.
func screeningEnabled(nFeatures int, percentile float64) bool {
	return nFeatures > minScreeningFeatures && percentile < 100
}

// screenFeatures keeps the screening percentile best features of X by
// univariate F-test on spatially smoothed samples, then cleans the kept
// support with a binary opening followed by a closing on the mask grid.
// It returns the support over the active voxels of mask and the reduced
// mask. An empty support is returned as is; the caller decides.
func screenFeatures(X *mat.Dense, y []float64, mask *volume.Mask, classif bool, percentile float64) ([]bool, *volume.Mask, error) {
	n, p := X.Dims()
	if mask.Count() != p {
		return nil, nil, errors.Wrapf(ErrDimensionMismatch, "mask has %d voxels, X has %d features", mask.Count(), p)
	}
	smoothed := mat.NewDense(n, p, nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		img := ndimage.GaussianFilter(mask.Unmask(row), mask.Shape, ScreeningSmoothing)
		smoothed.SetRow(i, mask.Gather(img))
	}

	var (
		scores []float64
		err    error
	)
	if classif {
		scores, _, err = stats.FClassif(smoothed, y)
	} else {
		scores, _, err = stats.FRegression(smoothed, y)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "univariate screening")
	}
	selected := stats.SelectPercentile(scores, percentile)

	grid := make([]bool, mask.Len())
	j := 0
	for i, on := range mask.Data {
		if on {
			grid[i] = selected[j]
			j++
		}
	}
	grid = ndimage.BinaryOpening(grid, mask.Shape)
	grid = ndimage.BinaryClosing(grid, mask.Shape)

	reduced := mask.Clone()
	support := make([]bool, 0, p)
	for i, on := range mask.Data {
		keep := on && grid[i]
		reduced.Data[i] = keep
		if on {
			support = append(support, keep)
		}
	}
	return support, reduced, nil
}

// selectColumns returns the columns of X where keep is set.
func selectColumns(X mat.Matrix, keep []bool) *mat.Dense {
	n, _ := X.Dims()
	var idx []int
	for j, k := range keep {
		if k {
			idx = append(idx, j)
		}
	}
	out := mat.NewDense(n, len(idx), nil)
	for c, j := range idx {
		for i := 0; i < n; i++ {
			out.Set(i, c, X.At(i, j))
		}
	}
	return out
}

// selectRows returns the rows of X listed in idx.
func selectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, p := X.Dims()
	if len(idx) == 0 {
		return nil
	}
	out := mat.NewDense(len(idx), p, nil)
	row := make([]float64, p)
	for r, i := range idx {
		mat.Row(row, i, X)
		out.SetRow(r, row)
	}
	return out
}

func selectValues(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for r, i := range idx {
		out[r] = y[i]
	}
	return out
}
