package decoding

import (
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/volume"
)

// Masker converts between images and flat feature matrices. It is the only
// place where voxel data enters or leaves the decoder; volume.ArrayMasker
// is the in-memory implementation.
type Masker interface {
	FitTransform(images []volume.Volume) (*mat.Dense, *volume.Mask, error)
	Transform(images []volume.Volume) (*mat.Dense, error)
	InverseTransform(coef []float64) (volume.Volume, error)
}

var _ Masker = (*volume.ArrayMasker)(nil)
