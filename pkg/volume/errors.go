package volume

import "github.com/cockroachdb/errors"

// Sentinel errors returned by the volume package. Callers match them with
// errors.Is; context is added with errors.Wrapf at the call site.
var (
	// ErrShape is returned when a shape has a non-positive extent or does
	// not match the length of the data it describes.
	ErrShape = errors.New("volume: invalid shape")

	// ErrMaskMismatch is returned when a flat vector or a volume does not
	// agree with the mask it is combined with (length or shape).
	ErrMaskMismatch = errors.New("volume: data does not match mask")

	// ErrEmptyMask is returned when an operation needs at least one
	// active voxel.
	ErrEmptyMask = errors.New("volume: mask has no active voxel")
)
