package stats

import (
	"math"
	"sort"
)

// SelectPercentile marks the highest-scoring percentile percent of scores.
// k = floor(len(scores)*percentile/100) features are kept, at least one when
// percentile is positive. NaN scores rank last; ties keep the lower index.
func SelectPercentile(scores []float64, percentile float64) []bool {
	n := len(scores)
	support := make([]bool, n)
	if n == 0 || percentile <= 0 {
		return support
	}
	if percentile >= 100 {
		for i := range support {
			support[i] = true
		}
		return support
	}
	k := int(math.Floor(float64(n) * percentile / 100))
	if k < 1 {
		k = 1
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if math.IsNaN(sb) {
			return !math.IsNaN(sa)
		}
		return sa > sb
	})
	for _, i := range order[:k] {
		support[i] = true
	}
	return support
}
