// Package volume holds the voxel data model shared by the decoding core:
// boolean support masks, dense N-dimensional volumes and the conversions
// between a flat feature vector and its spatial layout.
//
// All arrays are stored flat in row-major order (last axis fastest).
package volume

import (
	"github.com/cockroachdb/errors"
)

// Volume is a dense N-dimensional array of voxel values.
type Volume struct {
	// Shape is the extent along every axis
	Shape []int

	// Data holds the voxel values in row-major order
	Data []float64
}

// NewVolume allocates an all-zero volume of the given shape.
func NewVolume(shape []int) (Volume, error) {
	n, err := Size(shape)
	if err != nil {
		return Volume{}, err
	}
	return Volume{Shape: append([]int(nil), shape...), Data: make([]float64, n)}, nil
}

// Len returns the number of voxels.
func (v Volume) Len() int { return len(v.Data) }

// At returns the value at the given coordinates.
func (v Volume) At(coords ...int) float64 {
	return v.Data[Offset(v.Shape, coords)]
}

// Size returns the number of elements of an array of the given shape.
func Size(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, errors.Wrap(ErrShape, "shape has no axis")
	}
	n := 1
	for axis, extent := range shape {
		if extent <= 0 {
			return 0, errors.Wrapf(ErrShape, "axis %d has extent %d", axis, extent)
		}
		n *= extent
	}
	return n, nil
}

// Strides returns the row-major strides of an array of the given shape.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = s
		s *= shape[d]
	}
	return strides
}

// Offset converts coordinates into a flat row-major index.
func Offset(shape, coords []int) int {
	off := 0
	s := 1
	for d := len(shape) - 1; d >= 0; d-- {
		off += coords[d] * s
		s *= shape[d]
	}
	return off
}

// Coords converts a flat row-major index into coordinates, writing into dst
// when it has the right length.
func Coords(shape []int, idx int, dst []int) []int {
	if len(dst) != len(shape) {
		dst = make([]int, len(shape))
	}
	for d := len(shape) - 1; d >= 0; d-- {
		dst[d] = idx % shape[d]
		idx /= shape[d]
	}
	return dst
}
