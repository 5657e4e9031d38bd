// Package ndimage implements the few N-dimensional image filters the
// decoder needs on masked volumes: isotropic Gaussian smoothing and binary
// morphology with a face-connected structuring element.
package ndimage

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"spacenet/pkg/volume"
)

// Truncate is the kernel half-width in standard deviations.
const Truncate = 4.0

// GaussianFilter smooths a row-major array of the given shape with an
// isotropic Gaussian kernel of standard deviation sigma (in voxels). The
// boundary is handled by half-sample reflection. The input is not modified.
func GaussianFilter(img []float64, shape []int, sigma float64) []float64 {
	out := append([]float64(nil), img...)
	if sigma <= 0 {
		return out
	}
	for axis := range shape {
		filterAxis(out, shape, axis, sigma)
	}
	return out
}

// gaussianKernel returns the normalised 1-D kernel of radius r.
func gaussianKernel(sigma float64, r int) []float64 {
	kernel := make([]float64, 2*r+1)
	sum := 0.0
	for i := range kernel {
		x := float64(i - r)
		kernel[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect maps an out-of-range index onto [0, n) with half-sample
// symmetric extension (d c b a | a b c d | d c b a).
func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// filterAxis convolves every line along axis in place. Each padded line is
// convolved in the frequency domain; the FFT length leaves room for the
// full linear convolution so no wrap-around reaches the kept samples.
func filterAxis(data []float64, shape []int, axis int, sigma float64) {
	n := shape[axis]
	stride := volume.Strides(shape)[axis]
	r := int(Truncate*sigma + 0.5)
	if r == 0 {
		return
	}
	kernel := gaussianKernel(sigma, r)

	size := n + 4*r
	fft := fourier.NewFFT(size)

	padded := make([]float64, size)
	copy(padded, kernel)
	kernelCoeffs := fft.Coefficients(nil, padded)

	line := make([]float64, size)
	coeffs := make([]complex128, len(kernelCoeffs))
	result := make([]float64, size)
	scale := 1 / float64(size)

	for base := 0; base < len(data); base++ {
		if (base/stride)%n != 0 {
			continue
		}
		for j := range line {
			line[j] = 0
		}
		for j := 0; j < n+2*r; j++ {
			line[j] = data[base+reflect(j-r, n)*stride]
		}

		fft.Coefficients(coeffs, line)
		for k := range coeffs {
			coeffs[k] *= kernelCoeffs[k]
		}
		fft.Sequence(result, coeffs)

		for i := 0; i < n; i++ {
			data[base+i*stride] = result[i+2*r] * scale
		}
	}
}
