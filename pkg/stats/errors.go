package stats

import "github.com/cockroachdb/errors"

var (
	// ErrDimensionMismatch is returned when X and y disagree on the number
	// of samples.
	ErrDimensionMismatch = errors.New("stats: dimension mismatch")

	// ErrTooFewSamples is returned when a test has no residual degrees of
	// freedom.
	ErrTooFewSamples = errors.New("stats: too few samples")
)
