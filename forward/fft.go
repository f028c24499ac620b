package forward

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/medrecon/augment/types/tensors"
)

// Centered orthonormal FFTs over the two spatial axes of measurement-native
// `[batch, height, width, ...]` tensors. "Centered" means the zero-frequency
// component sits in the middle of the spectrum, the standard convention for
// k-space data; "orthonormal" means both directions scale by 1/sqrt(n), so the
// round-trip is the identity.

// FFT2Centered computes the centered orthonormal 2D FFT over axes 1 and 2.
func FFT2Centered(t *tensors.Tensor) *tensors.Tensor {
	return fftAxis(fftAxis(t, 1, false), 2, false)
}

// IFFT2Centered computes the centered orthonormal 2D inverse FFT over axes 1 and 2.
func IFFT2Centered(t *tensors.Tensor) *tensors.Tensor {
	return fftAxis(fftAxis(t, 1, true), 2, true)
}

func fftAxis(t *tensors.Tensor, axis int, inverse bool) *tensors.Tensor {
	if t.Rank() < 3 {
		exceptions.Panicf("forward: FFT needs a [batch, height, width, ...] tensor, got %s", t)
	}
	n := t.Dim(axis)
	plan := fourier.NewCmplxFFT(n)

	out := t.Clone()
	switch t.DType() {
	case dtypes.Complex64:
		fftLines(tensors.MutableFlatData[complex64](out), t.Shape().Dimensions, axis, plan, inverse)
	case dtypes.Complex128:
		fftLines(tensors.MutableFlatData[complex128](out), t.Shape().Dimensions, axis, plan, inverse)
	default:
		exceptions.Panicf("forward: FFT needs a complex tensor, got %s", t)
	}
	return out
}

// fftLines transforms, in place over the cloned output buffer, every 1D line of
// flat along the given axis.
func fftLines[T constraints.Complex](flat []T, dims []int, axis int, plan *fourier.CmplxFFT, inverse bool) {
	n := dims[axis]
	before, after := 1, 1
	for a, dim := range dims {
		if a < axis {
			before *= dim
		} else if a > axis {
			after *= dim
		}
	}

	scale := T(complex(1/math.Sqrt(float64(n)), 0))
	line := make([]complex128, n)
	freq := make([]complex128, n)
	for o := range before {
		for a := range after {
			base := o*n*after + a
			for k := range n {
				line[k] = complex128(flat[base+k*after])
			}
			unshift(line, freq) // ifftshift
			if inverse {
				plan.Sequence(line, freq)
			} else {
				plan.Coefficients(line, freq)
			}
			shift(line, freq) // fftshift
			for k := range n {
				flat[base+k*after] = T(freq[k]) * scale
			}
		}
	}
}

// shift rotates the zero-frequency component to the center (fftshift).
func shift(in, out []complex128) {
	n := len(in)
	k := n / 2
	for i, v := range in {
		out[(i+k)%n] = v
	}
}

// unshift undoes shift (ifftshift). For even n the two coincide.
func unshift(in, out []complex128) {
	n := len(in)
	k := n - n/2
	for i, v := range in {
		out[(i+k)%n] = v
	}
}
