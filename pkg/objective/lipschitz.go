package objective

import (
	"gonum.org/v1/gonum/mat"
)

// SpectralNormSquared returns the square of the largest singular value of X.
// It is the Lipschitz constant of the gradient of w -> 0.5*||y - Xw||^2.
// If the SVD fails to converge the squared Frobenius norm, which bounds it
// from above, is returned instead.
func SpectralNormSquared(X mat.Matrix) float64 {
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDNone); ok {
		values := svd.Values(nil)
		if len(values) > 0 {
			return values[0] * values[0]
		}
	}
	f := mat.Norm(X, 2)
	return f * f
}

// SquaredLossLipschitz is the Lipschitz constant of SquaredLossGrad.
func SquaredLossLipschitz(X mat.Matrix) float64 {
	return SpectralNormSquared(X)
}

// LogisticLipschitz upper-bounds the Lipschitz constant of LogisticGrad.
// The intercept is accounted for by appending a column of ones to X.
func LogisticLipschitz(X mat.Matrix) float64 {
	n, _ := X.Dims()
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	var aug mat.Dense
	aug.Augment(X, mat.NewDense(n, 1, ones))
	return SpectralNormSquared(&aug)
}
