package forward

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrecon/augment/types/shapes"
	"github.com/medrecon/augment/types/tensors"
)

func testImage(batch, height, width, channels int) *tensors.Tensor {
	flat := make([]complex64, batch*height*width*channels)
	for i := range flat {
		flat[i] = complex(float32(i%11)-5, float32(i%13)-6)
	}
	return tensors.FromFlatDataAndDimensions(flat, batch, height, width, channels)
}

func TestFFTRoundTrip(t *testing.T) {
	x := testImage(2, 8, 6, 3)
	require.True(t, x.InDelta(IFFT2Centered(FFT2Centered(x)), 1e-4))
	require.True(t, x.InDelta(FFT2Centered(IFFT2Centered(x)), 1e-4))
	// Inputs are never modified.
	assert.True(t, x.Equal(testImage(2, 8, 6, 3)))
}

func TestFFTOrthonormal(t *testing.T) {
	// Parseval: the transform preserves total energy.
	x := testImage(1, 8, 8, 2)
	k := FFT2Centered(x)
	energy := func(t *tensors.Tensor) float64 {
		var sum float64
		for _, v := range tensors.ConstFlatData[complex64](t) {
			sum += float64(real(v))*float64(real(v)) + float64(imag(v))*float64(imag(v))
		}
		return sum
	}
	assert.InDelta(t, energy(x), energy(k), 1e-2)
}

func TestFFTCentering(t *testing.T) {
	// A constant image transforms to a single peak at the grid center.
	n := 8
	x := tensors.Ones(shapes.Make(dtypes.Complex64, 1, n, n, 1))
	k := FFT2Centered(x)
	flat := tensors.ConstFlatData[complex64](k)
	center := (n/2*n + n/2)
	for i, v := range flat {
		if i == center {
			assert.InDelta(t, float64(n), cmplx.Abs(complex128(v)), 1e-4)
		} else {
			assert.InDelta(t, 0, cmplx.Abs(complex128(v)), 1e-4)
		}
	}
}

func TestFFTOddSizes(t *testing.T) {
	x := testImage(1, 5, 7, 1)
	require.True(t, x.InDelta(IFFT2Centered(FFT2Centered(x)), 1e-4))
}

func TestFFTContract(t *testing.T) {
	require.Panics(t, func() {
		FFT2Centered(tensors.FromFlatDataAndDimensions([]complex64{1, 2}, 2))
	})
	require.Panics(t, func() {
		FFT2Centered(tensors.Ones(shapes.Make(dtypes.Float32, 1, 4, 4, 1)))
	})
}

func TestParsevalFloat(t *testing.T) {
	// Numerical sanity for the 1/sqrt(n) scaling on a single impulse: the
	// spectrum magnitude is flat at 1/sqrt(h*w).
	h, w := 4, 4
	flat := make([]complex64, h*w)
	flat[0] = 1
	x := tensors.FromFlatDataAndDimensions(flat, 1, h, w, 1)
	k := FFT2Centered(x)
	want := 1 / math.Sqrt(float64(h*w))
	for _, v := range tensors.ConstFlatData[complex64](k) {
		assert.InDelta(t, want, cmplx.Abs(complex128(v)), 1e-5)
	}
}
