// Package objective provides the smooth data-fit terms of the decoding
// objectives (squared error and logistic), the Lipschitz constants of their
// gradients, and the spatial operators used to build the TV/graph penalties.
package objective

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// residual returns Xw - y.
func residual(X mat.Matrix, y, w []float64) *mat.VecDense {
	n, _ := X.Dims()
	r := mat.NewVecDense(n, nil)
	r.MulVec(X, mat.NewVecDense(len(w), w))
	r.SubVec(r, mat.NewVecDense(n, y))
	return r
}

// SquaredLoss returns 0.5 * ||y - Xw||^2. No 1/n_samples factor is applied;
// callers rescale alpha instead.
func SquaredLoss(X mat.Matrix, y, w []float64) float64 {
	r := residual(X, y, w)
	return 0.5 * mat.Dot(r, r)
}

// SquaredLossGrad returns X^T (Xw - y).
func SquaredLossGrad(X mat.Matrix, y, w []float64) []float64 {
	_, p := X.Dims()
	r := residual(X, y, w)
	g := mat.NewVecDense(p, nil)
	g.MulVec(X.T(), r)
	return g.RawVector().Data
}

// Sigmoid returns 1 / (1 + exp(-t)) without overflowing for large |t|.
func Sigmoid(t float64) float64 {
	if t >= 0 {
		return 1 / (1 + math.Exp(-t))
	}
	e := math.Exp(t)
	return e / (1 + e)
}

// margins returns y * (X w[:-1] + w[-1]).
func margins(X mat.Matrix, y, w []float64) []float64 {
	n, p := X.Dims()
	z := mat.NewVecDense(n, nil)
	z.MulVec(X, mat.NewVecDense(p, w[:p]))
	yz := z.RawVector().Data
	b := w[p]
	for i := range yz {
		yz[i] = y[i] * (yz[i] + b)
	}
	return yz
}

// Logistic returns sum_i log(1 + exp(-y_i (x_i.w + b))) where the intercept
// b is the last entry of w. Labels are expected in {-1, +1}.
func Logistic(X mat.Matrix, y, w []float64) float64 {
	out := 0.0
	for _, t := range margins(X, y, w) {
		if t > 0 {
			out += math.Log1p(math.Exp(-t))
		} else {
			out += -t + math.Log1p(math.Exp(t))
		}
	}
	return out
}

// LogisticGrad returns the gradient of Logistic with respect to w, the
// intercept derivative last.
func LogisticGrad(X mat.Matrix, y, w []float64) []float64 {
	_, p := X.Dims()
	yz := margins(X, y, w)
	for i, t := range yz {
		yz[i] = (Sigmoid(t) - 1) * y[i]
	}
	grad := make([]float64, p+1)
	g := mat.NewVecDense(p, grad[:p])
	g.MulVec(X.T(), mat.NewVecDense(len(yz), yz))
	grad[p] = floats.Sum(yz)
	return grad
}
