// Package prox implements the proximal operators of the decoding
// penalties: elementwise soft-thresholding for L1 and an iterative dual
// solver for the exact TV-L1 penalty.
package prox

import "math"

// Info describes how an iterative proximal evaluation ended. Closed-form
// operators always report Converged.
type Info struct {
	Converged  bool
	Iterations int
	DualGap    float64
}

// L1 returns sign(w) * max(|w| - lambda, 0) elementwise.
func L1(w []float64, lambda float64) []float64 {
	out := make([]float64, len(w))
	L1Into(out, w, lambda)
	return out
}

// L1Into is L1 writing into dst. dst and w may alias.
func L1Into(dst, w []float64, lambda float64) {
	for i, v := range w {
		shrunk := math.Abs(v) - lambda
		if shrunk <= 0 {
			dst[i] = 0
		} else {
			dst[i] = math.Copysign(shrunk, v)
		}
	}
}
