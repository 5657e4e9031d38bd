// Package stats holds the univariate statistics used for feature screening
// and model selection: ANOVA F-tests, percentile selection and correlation
// scores.
package stats

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FClassif computes the one-way ANOVA F statistic of every column of X
// against the class labels y, with the matching p-values.
func FClassif(X mat.Matrix, y []float64) (f, pval []float64, err error) {
	n, p := X.Dims()
	if len(y) != n {
		return nil, nil, errors.Wrapf(ErrDimensionMismatch, "%d rows, %d labels", n, len(y))
	}
	groups := map[float64][]int{}
	var labels []float64
	for i, v := range y {
		if _, ok := groups[v]; !ok {
			labels = append(labels, v)
		}
		groups[v] = append(groups[v], i)
	}
	k := len(labels)
	dfBetween, dfWithin := float64(k-1), float64(n-k)
	if k < 2 || dfWithin <= 0 {
		return nil, nil, errors.Wrapf(ErrTooFewSamples, "%d samples in %d classes", n, k)
	}
	sort.Float64s(labels)

	dist := distuv.F{D1: dfBetween, D2: dfWithin}
	f = make([]float64, p)
	pval = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		grand := stat.Mean(col, nil)
		var ssb, ssw float64
		for _, l := range labels {
			idx := groups[l]
			m := 0.0
			for _, i := range idx {
				m += col[i]
			}
			m /= float64(len(idx))
			ssb += float64(len(idx)) * (m - grand) * (m - grand)
			for _, i := range idx {
				ssw += (col[i] - m) * (col[i] - m)
			}
		}
		f[j] = (ssb / dfBetween) / (ssw / dfWithin)
		pval[j] = pValue(dist, f[j])
	}
	return f, pval, nil
}

// FRegression computes the F statistic of the univariate linear regression
// of y on every centred column of X, with the matching p-values.
func FRegression(X mat.Matrix, y []float64) (f, pval []float64, err error) {
	n, p := X.Dims()
	if len(y) != n {
		return nil, nil, errors.Wrapf(ErrDimensionMismatch, "%d rows, %d targets", n, len(y))
	}
	dof := float64(n - 2)
	if dof <= 0 {
		return nil, nil, errors.Wrapf(ErrTooFewSamples, "%d samples", n)
	}
	ym := stat.Mean(y, nil)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - ym
	}
	yNorm := math.Sqrt(floats.Dot(yc, yc))

	dist := distuv.F{D1: 1, D2: dof}
	f = make([]float64, p)
	pval = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		xm := stat.Mean(col, nil)
		for i := range col {
			col[i] -= xm
		}
		corr := floats.Dot(col, yc) / (math.Sqrt(floats.Dot(col, col)) * yNorm)
		f[j] = corr * corr / (1 - corr*corr) * dof
		pval[j] = pValue(dist, f[j])
	}
	return f, pval, nil
}

func pValue(dist distuv.F, f float64) float64 {
	if math.IsNaN(f) {
		return math.NaN()
	}
	if math.IsInf(f, 1) {
		return 0
	}
	return dist.Survival(f)
}
