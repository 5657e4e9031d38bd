package decoding

import "github.com/cockroachdb/errors"

// Configuration and input errors. All of them are returned before any data
// reaches a solver.
var (
	ErrInvalidPenalty      = errors.New("decoding: penalty must be smooth-lasso or tv-l1")
	ErrInvalidLoss         = errors.New("decoding: loss must be mse or logistic")
	ErrL1Ratio             = errors.New("decoding: l1_ratio must be in [0, 1]")
	ErrScreeningPercentile = errors.New("decoding: screening_percentile must be in [0, 100]")
	ErrLogisticRegression  = errors.New("decoding: logistic loss is only available for classification")
	ErrInvalidHyperparam   = errors.New("decoding: invalid hyperparameter")
	ErrDimensionMismatch   = errors.New("decoding: dimension mismatch")
	ErrNoSamples           = errors.New("decoding: no samples")
	ErrTooFewClasses       = errors.New("decoding: classification needs at least two classes")
	ErrFolds               = errors.New("decoding: invalid cross-validation folds")
	ErrAlphaGrid           = errors.New("decoding: cannot build a positive alpha grid")
	ErrNotFitted           = errors.New("decoding: model is not fitted")
)
