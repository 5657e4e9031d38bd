package fista

import "github.com/cockroachdb/errors"

var (
	// ErrProblem is returned when a Problem is incomplete or inconsistent
	// (missing callbacks, non-positive size or Lipschitz constant).
	ErrProblem = errors.New("fista: invalid problem")

	// ErrNonFinite signals a NaN or infinite energy. It is a programming
	// error in the objective, never an expected runtime condition.
	ErrNonFinite = errors.New("fista: non-finite energy")

	// ErrNotLipschitz is returned by CheckLipschitz when a gradient
	// violates the claimed Lipschitz bound.
	ErrNotLipschitz = errors.New("fista: gradient is not Lipschitz with the given constant")
)
