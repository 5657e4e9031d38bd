package decoding

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/fista"
	"spacenet/pkg/stats"
)

// Early stopping schedule: scores are recorded at every iteration, the
// plateau test runs from iteration 22 on, every 10 iterations.
const (
	earlyStopWarmup  = 20
	earlyStopPeriod  = 10
	earlyStopPhase   = 2
	earlyStopWindow  = 5
	earlyStopMinGain = -1e-4
)

// EarlyStopping is a fista.Observer that scores every iterate on held-out
// data and asks the solver to stop once the score stops improving.
// One value is used per (fold, class, alpha) solve; it is not safe for
// concurrent use.
type EarlyStopping struct {
	xTest    mat.Matrix
	yTest    []float64
	logistic bool
	logger   *slog.Logger

	counter int
	scores  []float64
}

// NewEarlyStopping returns an observer scoring against (X, y). With
// logistic set the trailing intercept of every iterate is ignored and the
// rank correlation is the primary score.
func NewEarlyStopping(X mat.Matrix, y []float64, logistic bool, logger *slog.Logger) *EarlyStopping {
	if logger == nil {
		logger = slog.Default()
	}
	return &EarlyStopping{xTest: X, yTest: y, logistic: logistic, logger: logger}
}

// Observe implements fista.Observer.
func (e *EarlyStopping) Observe(it fista.Iterate) bool {
	e.counter++
	score, _ := e.Score(it.W)
	e.scores = append(e.scores, score)
	if !(e.counter > earlyStopWarmup && e.counter%earlyStopPeriod == earlyStopPhase) {
		return false
	}
	if len(e.scores) < earlyStopWindow {
		return false
	}
	// mean first difference of the last scores, newest first
	last := e.scores[len(e.scores)-earlyStopWindow:]
	gain := 0.0
	for i := len(last) - 1; i > 0; i-- {
		gain += last[i-1] - last[i]
	}
	gain /= float64(len(last) - 1)
	if gain >= earlyStopMinGain {
		e.logger.Debug("early stopping", "iter", it.Iteration, "score", score)
		return true
	}
	return false
}

// Scores returns the score history, one entry per observed iteration.
func (e *EarlyStopping) Scores() []float64 { return e.scores }

// Score returns the (primary, secondary) held-out scores of w. Spearman
// leads for classification and Pearson for regression. A constant
// coefficient map, or any undefined correlation, scores -Inf.
func (e *EarlyStopping) Score(w []float64) (primary, secondary float64) {
	coef := e.coef(w)
	if len(coef) == 0 || floats.Max(coef) == floats.Min(coef) {
		return math.Inf(-1), math.Inf(-1)
	}
	pred := e.predict(coef)
	spearman := orNegInf(stats.Spearman(pred, e.yTest))
	pearson := orNegInf(stats.Pearson(pred, e.yTest))
	if e.logistic {
		return spearman, pearson
	}
	return pearson, spearman
}

// Debias rescales the coefficients of w in place by <Xw, y>/||Xw||^2 on
// the held-out data; nothing happens when the prediction is zero.
func (e *EarlyStopping) Debias(w []float64) {
	coef := e.coef(w)
	pred := e.predict(coef)
	norm := floats.Dot(pred, pred)
	if norm > 0 {
		floats.Scale(floats.Dot(pred, e.yTest)/norm, coef)
	}
}

func (e *EarlyStopping) coef(w []float64) []float64 {
	if e.logistic && len(w) > 0 {
		return w[:len(w)-1]
	}
	return w
}

func (e *EarlyStopping) predict(coef []float64) []float64 {
	n, _ := e.xTest.Dims()
	pred := mat.NewVecDense(n, nil)
	pred.MulVec(e.xTest, mat.NewVecDense(len(coef), coef))
	return pred.RawVector().Data
}

func orNegInf(x float64) float64 {
	if math.IsNaN(x) {
		return math.Inf(-1)
	}
	return x
}
