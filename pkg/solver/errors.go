package solver

import "github.com/cockroachdb/errors"

var (
	// ErrUnknownKind is returned for a penalty or loss outside the closed set.
	ErrUnknownKind = errors.New("solver: unknown penalty or loss")

	// ErrDimensionMismatch is returned when X, y and the mask disagree.
	ErrDimensionMismatch = errors.New("solver: dimension mismatch")

	// ErrL1Ratio is returned for an l1_ratio outside [0, 1].
	ErrL1Ratio = errors.New("solver: l1_ratio must be in [0, 1]")

	// ErrAlpha is returned for a negative or non-finite alpha.
	ErrAlpha = errors.New("solver: alpha must be a finite non-negative number")
)
