package decoding

import (
	"log/slog"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"spacenet/pkg/fista"
	"spacenet/pkg/solver"
	"spacenet/pkg/volume"
)

// PathTask is one (class, fold) regularisation path. Tasks share X and Y
// read-only; Mask is cloned before use.
type PathTask struct {
	Penalty solver.Penalty
	Loss    solver.Loss

	X    *mat.Dense
	Y    []float64
	Mask *volume.Mask

	// Alphas is the grid to scan. When empty a grid of NAlphas values is
	// derived from the training data of the fold.
	Alphas  []float64
	NAlphas int
	Eps     float64

	L1Ratio float64
	Fold    Fold

	// Class is the index of the one-vs-rest problem, copied to the result.
	Class int

	Debias bool

	// YMean is the mean removed from the response before the path; it is
	// added back to the recovered intercept of the squared loss.
	YMean float64

	ScreeningPercentile float64

	Tol     float64
	MaxIter int

	Logger *slog.Logger
}

// PathResult is the outcome of a PathTask.
type PathResult struct {
	// TestScores holds the primary held-out score of every scanned alpha,
	// or a single NaN when the fold has no test sample.
	TestScores []float64

	// W is the refitted coefficient vector over all the input features,
	// followed by the intercept.
	W []float64

	BestAlpha float64
	Class     int

	// Support marks the features kept by screening; nil when screening
	// did not run.
	Support []bool

	// Energies is the energy trace of the final refit.
	Energies []float64
}

func (t *PathTask) logistic() bool { return t.Loss == solver.Logistic }

// PathScores runs the regularisation path of one task: screen, crop,
// centre, scan the alpha grid with early stopping on the test samples,
// refit at the best alpha, optionally debias and scatter back.
func PathScores(task PathTask) (PathResult, error) {
	logger := task.Logger
	if logger == nil {
		logger = slog.Default()
	}
	solve, err := solver.For(task.Penalty, task.Loss)
	if err != nil {
		return PathResult{}, err
	}
	n, nFeatures := task.X.Dims()
	if len(task.Y) != n {
		return PathResult{}, errors.Wrapf(ErrDimensionMismatch, "%d samples, %d targets", n, len(task.Y))
	}
	if err := ValidateFolds([]Fold{task.Fold}, n); err != nil {
		return PathResult{}, err
	}
	if task.Mask == nil || task.Mask.Count() != nFeatures {
		return PathResult{}, errors.Wrapf(ErrDimensionMismatch, "mask does not match %d features", nFeatures)
	}
	mask := task.Mask.Clone()
	logistic := task.logistic()
	train, test := task.Fold.Train, task.Fold.Test

	xTrain := selectRows(task.X, train)
	yTrain := selectValues(task.Y, train)
	xTest := selectRows(task.X, test)
	yTest := selectValues(task.Y, test)

	var support []bool
	if screeningEnabled(nFeatures, task.ScreeningPercentile) {
		kept, reduced, err := screenFeatures(xTrain, yTrain, mask, logistic, task.ScreeningPercentile)
		if err != nil {
			return PathResult{}, err
		}
		if count := countTrue(kept); count == 0 {
			logger.Warn("screening kept no feature, using the full mask",
				"class", task.Class, "percentile", task.ScreeningPercentile)
		} else {
			support = kept
			mask = reduced
			xTrain = selectColumns(xTrain, support)
			if xTest != nil {
				xTest = selectColumns(xTest, support)
			}
		}
	}
	mask, err = mask.Crop()
	if err != nil {
		return PathResult{}, err
	}

	// centre on the training samples; the logistic response is left alone
	xMean := centerColumns(xTrain)
	if xTest != nil {
		subtractRow(xTest, xMean)
	}
	yMean := 0.0
	if !logistic {
		yMean = stat.Mean(yTrain, nil)
		for i := range yTrain {
			yTrain[i] -= yMean
		}
		for i := range yTest {
			yTest[i] -= yMean
		}
	}

	alphas := append([]float64(nil), task.Alphas...)
	if len(alphas) == 0 {
		if alphas, err = AlphaGrid(xTrain, yTrain, task.L1Ratio, task.Eps, task.NAlphas, logistic); err != nil {
			return PathResult{}, err
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(alphas)))

	params := solver.Params{
		X:            xTrain,
		Y:            yTrain,
		L1Ratio:      task.L1Ratio,
		Mask:         mask,
		Tol:          task.Tol,
		MaxIter:      task.MaxIter,
		RescaleAlpha: true,
		Logger:       logger,
	}

	res := PathResult{Class: task.Class, Support: support, BestAlpha: alphas[0]}
	var (
		bestInit   *fista.State
		lastStop   *EarlyStopping
		init       *fista.State
		bestScore  = math.Inf(-1)
		bestSecond = math.Inf(-1)
	)
	if len(test) > 0 {
		for _, alpha := range alphas {
			stopper := NewEarlyStopping(xTest, yTest, logistic, logger)
			params.Alpha = alpha
			params.Init = init
			params.Observer = stopper
			out, err := solve(params)
			if err != nil {
				return PathResult{}, errors.Wrapf(err, "class %d", task.Class)
			}
			state := out.State.Clone()
			init = &state

			score, second := stopper.Score(out.W)
			res.TestScores = append(res.TestScores, score)
			logger.Debug("alpha scored", "class", task.Class, "alpha", alpha, "score", score, "iterations", out.Iterations)
			if !math.IsInf(score, 0) && !math.IsNaN(score) &&
				(score > bestScore || (score == bestScore && second > bestSecond)) {
				bestScore, bestSecond = score, second
				res.BestAlpha = alpha
				best := out.State.Clone()
				bestInit = &best
			}
			lastStop = stopper
		}
	}

	// refit the selected alpha without early stopping
	params.Alpha = res.BestAlpha
	params.Init = bestInit
	params.Observer = nil
	final, err := solve(params)
	if err != nil {
		return PathResult{}, errors.Wrapf(err, "class %d refit", task.Class)
	}
	w := final.W
	res.Energies = final.Energies
	if task.Debias && lastStop != nil {
		lastStop.Debias(w)
	}
	if len(test) == 0 {
		res.TestScores = []float64{math.NaN()}
	}

	// intercept in the uncentred feature space
	p := len(xMean)
	coef := w[:p]
	var intercept float64
	if logistic {
		intercept = w[p] - floats.Dot(xMean, coef)
	} else {
		intercept = yMean - floats.Dot(xMean, coef) + task.YMean
	}

	full := make([]float64, nFeatures+1)
	if support != nil {
		j := 0
		for i, keep := range support {
			if keep {
				full[i] = coef[j]
				j++
			}
		}
	} else {
		copy(full, coef)
	}
	full[nFeatures] = intercept
	res.W = full
	logger.Info("path done",
		"class", task.Class,
		"best_alpha", res.BestAlpha,
		"features", p,
		"scanned", len(res.TestScores))
	return res, nil
}

// centerColumns subtracts the column means of X in place and returns them.
func centerColumns(X *mat.Dense) []float64 {
	n, p := X.Dims()
	means := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		means[j] = stat.Mean(col, nil)
	}
	subtractRow(X, means)
	return means
}

func subtractRow(X *mat.Dense, v []float64) {
	n, _ := X.Dims()
	for i := 0; i < n; i++ {
		floats.Sub(X.RawRowView(i), v)
	}
}

func countTrue(b []bool) int {
	c := 0
	for _, v := range b {
		if v {
			c++
		}
	}
	return c
}
