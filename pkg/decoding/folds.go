package decoding

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Fold is one train/test split of the sample indices. Test may be empty.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits [0, n) into k contiguous test blocks, the first n%k of them
// one sample larger.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 || k > n {
		return nil, errors.Wrapf(ErrFolds, "%d folds for %d samples", k, n)
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return splitBlocks(n, blocks(perm, k)), nil
}

// StratifiedKFold splits the samples so that every class is spread evenly
// over the k test blocks. Within a class, samples keep their order.
func StratifiedKFold(y []float64, k int) ([]Fold, error) {
	n := len(y)
	if k < 2 || k > n {
		return nil, errors.Wrapf(ErrFolds, "%d folds for %d samples", k, n)
	}
	byClass := map[float64][]int{}
	var labels []float64
	for i, v := range y {
		if _, ok := byClass[v]; !ok {
			labels = append(labels, v)
		}
		byClass[v] = append(byClass[v], i)
	}
	sort.Float64s(labels)

	tests := make([][]int, k)
	for _, l := range labels {
		for f, b := range blocks(byClass[l], k) {
			tests[f] = append(tests[f], b...)
		}
	}
	for f := range tests {
		sort.Ints(tests[f])
	}
	folds := splitBlocks(n, tests)
	for i, f := range folds {
		if len(f.Test) == 0 {
			return nil, errors.Wrapf(ErrFolds, "fold %d has no test sample", i)
		}
	}
	return folds, nil
}

// blocks cuts idx into k contiguous chunks, the first len%k one larger.
func blocks(idx []int, k int) [][]int {
	out := make([][]int, k)
	size, extra := len(idx)/k, len(idx)%k
	start := 0
	for f := 0; f < k; f++ {
		end := start + size
		if f < extra {
			end++
		}
		out[f] = idx[start:end]
		start = end
	}
	return out
}

func splitBlocks(n int, tests [][]int) []Fold {
	folds := make([]Fold, len(tests))
	inTest := make([]bool, n)
	for f, test := range tests {
		for i := range inTest {
			inTest[i] = false
		}
		for _, i := range test {
			inTest[i] = true
		}
		train := make([]int, 0, n-len(test))
		for i := 0; i < n; i++ {
			if !inTest[i] {
				train = append(train, i)
			}
		}
		folds[f] = Fold{Train: train, Test: append([]int(nil), test...)}
	}
	return folds
}

// SingleFold trains on every sample and tests on none.
func SingleFold(n int) []Fold {
	train := make([]int, n)
	for i := range train {
		train[i] = i
	}
	return []Fold{{Train: train}}
}

// ValidateFolds checks that every fold has a non-empty train set and that
// train and test are disjoint subsets of [0, n).
func ValidateFolds(folds []Fold, n int) error {
	if len(folds) == 0 {
		return errors.Wrap(ErrFolds, "no fold")
	}
	seen := make([]int, n)
	for f, fold := range folds {
		if len(fold.Train) == 0 {
			return errors.Wrapf(ErrFolds, "fold %d has an empty train set", f)
		}
		mark := f + 1
		for _, i := range fold.Train {
			if i < 0 || i >= n {
				return errors.Wrapf(ErrFolds, "fold %d: index %d out of [0, %d)", f, i, n)
			}
			seen[i] = mark
		}
		for _, i := range fold.Test {
			if i < 0 || i >= n {
				return errors.Wrapf(ErrFolds, "fold %d: index %d out of [0, %d)", f, i, n)
			}
			if seen[i] == mark {
				return errors.Wrapf(ErrFolds, "fold %d: sample %d is in train and test", f, i)
			}
		}
	}
	return nil
}
