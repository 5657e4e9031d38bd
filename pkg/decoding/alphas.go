package decoding

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// AlphaMax returns the smallest alpha for which a sparse-only fit on (X, y)
// has all-zero coefficients, divided by n_samples*max(l1Ratio, 1e-3).
//
// For the squared loss it is max|X^T y|. For the logistic loss, with y in
// {-1, +1}, the class-balanced pseudo-residuals b (n-/n on positives,
// -n+/n on negatives) give max|X^T b|; when that vanishes the squared-loss
// bound is used instead.
func AlphaMax(X mat.Matrix, y []float64, l1Ratio float64, logistic bool) float64 {
	n, _ := X.Dims()
	var alphaMax float64
	if logistic {
		var nPlus, nMinus float64
		for _, v := range y {
			switch v {
			case 1:
				nPlus++
			case -1:
				nMinus++
			}
		}
		b := make([]float64, n)
		for i, v := range y {
			switch v {
			case 1:
				b[i] = nMinus / float64(n)
			case -1:
				b[i] = -nPlus / float64(n)
			}
		}
		alphaMax = maxAbsXty(X, b)
	}
	if alphaMax == 0 {
		alphaMax = maxAbsXty(X, y)
	}
	return alphaMax / (float64(n) * math.Max(l1Ratio, 1e-3))
}

func maxAbsXty(X mat.Matrix, y []float64) float64 {
	n, _ := X.Dims()
	var xty mat.VecDense
	xty.MulVec(X.T(), mat.NewVecDense(n, y))
	return mat.Norm(&xty, math.Inf(1))
}

// AlphaGrid returns nAlphas log-spaced values from AlphaMax down to
// AlphaMax*eps, in decreasing order.
func AlphaGrid(X mat.Matrix, y []float64, l1Ratio, eps float64, nAlphas int, logistic bool) ([]float64, error) {
	if nAlphas < 1 {
		return nil, errors.Wrapf(ErrAlphaGrid, "n_alphas %d", nAlphas)
	}
	if nAlphas > 1 && !(eps > 0 && eps < 1) {
		return nil, errors.Wrapf(ErrAlphaGrid, "eps %g not in (0, 1)", eps)
	}
	alphaMax := AlphaMax(X, y, l1Ratio, logistic)
	if !(alphaMax > 0) || math.IsInf(alphaMax, 0) {
		return nil, errors.Wrapf(ErrAlphaGrid, "alpha_max %g", alphaMax)
	}
	if nAlphas == 1 {
		return []float64{alphaMax}, nil
	}
	hi := math.Log10(alphaMax)
	lo := math.Log10(alphaMax * eps)
	step := (hi - lo) / float64(nAlphas-1)
	grid := make([]float64, nAlphas)
	for i := range grid {
		grid[i] = math.Pow(10, hi-float64(i)*step)
	}
	grid[0] = alphaMax
	return grid, nil
}
