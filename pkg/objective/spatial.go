package objective

import (
	"math"

	"github.com/cockroachdb/errors"

	"spacenet/pkg/volume"
)

// The spatial operators work on flat row-major images of a given shape. A
// "gradient" array stacks channels one after the other: channel d (d < ndim)
// holds the forward difference along axis d, and GradientID appends one
// more channel holding the scaled image itself.

func checkL1Ratio(l1Ratio float64) {
	if !(l1Ratio >= 0 && l1Ratio <= 1) {
		panic(errors.AssertionFailedf("l1_ratio must be in the interval [0, 1]; got %g", l1Ratio))
	}
}

// forwardDiff writes scale * (img[i+s] - img[i]) into dst for every voxel
// that has a successor along axis, and zero for the last plane.
func forwardDiff(dst, img []float64, shape []int, axis int, scale float64) {
	n := shape[axis]
	stride := volume.Strides(shape)[axis]
	for i := range img {
		if (i/stride)%n < n-1 {
			dst[i] = scale * (img[i+stride] - img[i])
		} else {
			dst[i] = 0
		}
	}
}

// Gradient returns the forward finite differences of img along every axis,
// zero at the upper boundary, as ndim stacked channels.
func Gradient(img []float64, shape []int) []float64 {
	n := len(img)
	grad := make([]float64, len(shape)*n)
	for d := range shape {
		forwardDiff(grad[d*n:(d+1)*n], img, shape, d, 1)
	}
	return grad
}

// GradientID returns Gradient scaled by (1 - l1Ratio) with one extra channel
// holding l1Ratio * img. The result has (ndim+1) * len(img) entries.
func GradientID(img []float64, shape []int, l1Ratio float64) []float64 {
	checkL1Ratio(l1Ratio)
	n := len(img)
	ndim := len(shape)
	grad := make([]float64, (ndim+1)*n)
	for d := range shape {
		forwardDiff(grad[d*n:(d+1)*n], img, shape, d, 1-l1Ratio)
	}
	id := grad[ndim*n:]
	for i, v := range img {
		id[i] = l1Ratio * v
	}
	return grad
}

// accumulateDiv adds the divergence of one channel along axis into res:
// res[i] += g[i] below the last plane, res[i] -= g[i-s] above the first.
// This is the negative transpose of forwardDiff.
func accumulateDiv(res, g []float64, shape []int, axis int) {
	n := shape[axis]
	stride := volume.Strides(shape)[axis]
	for i := range res {
		c := (i / stride) % n
		if c < n-1 {
			res[i] += g[i]
		}
		if c > 0 {
			res[i] -= g[i-stride]
		}
	}
}

// Div returns the divergence of an ndim-channel gradient array. It satisfies
// <Gradient(u), v> = -<u, Div(v)>.
func Div(grad []float64, shape []int) []float64 {
	ndim := len(shape)
	n := len(grad) / ndim
	res := make([]float64, n)
	for d := range shape {
		accumulateDiv(res, grad[d*n:(d+1)*n], shape, d)
	}
	return res
}

// DivID is the divergence counterpart of GradientID:
// (1 - l1Ratio) * Div(spatial channels) - l1Ratio * (identity channel).
// It satisfies <GradientID(u), v> = -<u, DivID(v)>.
func DivID(grad []float64, shape []int, l1Ratio float64) []float64 {
	checkL1Ratio(l1Ratio)
	ndim := len(shape)
	n := len(grad) / (ndim + 1)
	res := make([]float64, n)
	for d := range shape {
		accumulateDiv(res, grad[d*n:(d+1)*n], shape, d)
	}
	id := grad[ndim*n:]
	for i := range res {
		res[i] = (1-l1Ratio)*res[i] - l1Ratio*id[i]
	}
	return res
}

// TVL1FromGradient evaluates the TV-L1 energy from a precomputed GradientID
// array: the sum over voxels of the Euclidean norm of the spatial channels
// plus the L1 norm of the identity channel.
func TVL1FromGradient(grad []float64, shape []int) float64 {
	ndim := len(shape)
	n := len(grad) / (ndim + 1)
	tv := 0.0
	for i := 0; i < n; i++ {
		sq := 0.0
		for d := 0; d < ndim; d++ {
			g := grad[d*n+i]
			sq += g * g
		}
		tv += math.Sqrt(sq)
	}
	l1 := 0.0
	for _, g := range grad[ndim*n:] {
		l1 += math.Abs(g)
	}
	return tv + l1
}

// TVL1 is TVL1FromGradient(GradientID(img, shape, l1Ratio), shape).
func TVL1(img []float64, shape []int, l1Ratio float64) float64 {
	return TVL1FromGradient(GradientID(img, shape, l1Ratio), shape)
}
