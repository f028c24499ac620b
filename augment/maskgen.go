package augment

import (
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/medrecon/augment/types/tensors"
)

// MaskGenFunc draws a fresh undersampling pattern for the (possibly
// re-acquired) k-space and applies it, returning the masked k-space and the
// mask itself. The mask broadcasts against k-space in the measurement layout
// [batch, height, width, coils].
type MaskGenFunc func(kspace *tensors.Tensor) (masked, mask *tensors.Tensor)

// NewUniformMaskGen builds a mask generator that keeps each phase-encode
// column with probability 1/accel, always retaining calibLines fully-sampled
// columns around the center. Columns are drawn independently per batch
// element; the produced mask has shape [batch, 1, width, 1] and k-space
// dtype, with entries 0 or 1.
func NewUniformMaskGen(seed int64, accel float64, calibLines int) MaskGenFunc {
	if accel < 1 {
		exceptions.Panicf("augment: acceleration must be >= 1, got %g", accel)
	}
	rng := rand.New(rand.NewSource(seed))
	return func(kspace *tensors.Tensor) (*tensors.Tensor, *tensors.Tensor) {
		if kspace.Rank() != 4 {
			exceptions.Panicf("augment: mask generator expects k-space of shape [batch, height, width, coils], got %s",
				kspace.Shape())
		}
		batch, width := kspace.Dim(0), kspace.Dim(2)
		calibLo := (width - calibLines) / 2
		calibHi := calibLo + calibLines

		mask := buildColumnMask(kspace.DType(), batch, width, func(x int) bool {
			if x >= calibLo && x < calibHi {
				return true
			}
			return rng.Float64() < 1/accel
		})
		return tensors.Mul(kspace, mask), mask
	}
}

// buildColumnMask materializes a [batch, 1, width, 1] 0/1 mask of the given
// complex dtype, with keep consulted once per (batch, column) pair.
func buildColumnMask(dtype dtypes.DType, batch, width int, keep func(x int) bool) *tensors.Tensor {
	switch dtype {
	case dtypes.Complex64:
		flat := make([]complex64, batch*width)
		for i := range flat {
			if keep(i % width) {
				flat[i] = 1
			}
		}
		return tensors.FromFlatDataAndDimensions(flat, batch, 1, width, 1)
	case dtypes.Complex128:
		flat := make([]complex128, batch*width)
		for i := range flat {
			if keep(i % width) {
				flat[i] = 1
			}
		}
		return tensors.FromFlatDataAndDimensions(flat, batch, 1, width, 1)
	}
	exceptions.Panicf("augment: mask generator supports complex k-space only, got %s", dtype)
	return nil
}
