package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Pearson is the linear correlation of x and y. It is NaN when either
// input is constant.
func Pearson(x, y []float64) float64 {
	if len(x) < 2 || isConstant(x) || isConstant(y) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// Spearman is the Pearson correlation of the average ranks of x and y.
func Spearman(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return Pearson(Rank(x), Rank(y))
}

// Rank returns 1-based ranks, ties receiving the mean of their positions.
func Rank(x []float64) []float64 {
	n := len(x)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && x[order[j+1]] == x[order[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = r
		}
		i = j + 1
	}
	return ranks
}

func isConstant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}
