package augment

import (
	"math"
	"math/cmplx"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"gonum.org/v1/gonum/stat"

	"github.com/medrecon/augment/types/tensors"
)

// Normalized carries the outputs of a Normalizer. Mean and Std are scalar
// tensors with the k-space dtype, suitable for undoing the normalization
// downstream.
type Normalized struct {
	KSpace *tensors.Tensor
	Target *tensors.Tensor
	Mean   *tensors.Tensor
	Std    *tensors.Tensor
}

// Normalizer rescales the augmented sample to a canonical intensity range.
// It runs after the geometric stage and any mask generation, but before the
// physics stage, so physics parameters (noise sigma, motion std) are
// calibrated against normalized magnitudes. target and mask may be nil.
type Normalizer interface {
	Normalize(maskedKSpace, image, target, mask *tensors.Tensor) Normalized
}

// RMSNormalizer scales k-space and target by the inverse root-mean-square
// magnitude of the acquired (non-zero) k-space samples. Mean is always zero:
// complex MR data is zero-centered by construction.
type RMSNormalizer struct {
	// Epsilon guards against division by a vanishing scale. Zero means the
	// default of 1e-20.
	Epsilon float64
}

func (n RMSNormalizer) Normalize(maskedKSpace, image, target, mask *tensors.Tensor) Normalized {
	if maskedKSpace == nil {
		exceptions.Panicf("augment: RMSNormalizer requires k-space input")
	}
	eps := n.Epsilon
	if eps == 0 {
		eps = 1e-20
	}

	var magSq []float64
	switch maskedKSpace.DType() {
	case dtypes.Complex64:
		for _, v := range tensors.ConstFlatData[complex64](maskedKSpace) {
			if v != 0 {
				abs := cmplx.Abs(complex128(v))
				magSq = append(magSq, abs*abs)
			}
		}
	case dtypes.Complex128:
		for _, v := range tensors.ConstFlatData[complex128](maskedKSpace) {
			if v != 0 {
				abs := cmplx.Abs(v)
				magSq = append(magSq, abs*abs)
			}
		}
	default:
		exceptions.Panicf("augment: RMSNormalizer supports complex k-space only, got %s", maskedKSpace.DType())
	}

	scale := 1.0
	if len(magSq) > 0 {
		rms := stat.Mean(magSq, nil)
		if rms > eps {
			scale = math.Sqrt(rms)
		}
	}

	out := Normalized{
		KSpace: maskedKSpace.Scale(complex(1/scale, 0)),
		Mean:   scalarLike(maskedKSpace, 0),
		Std:    scalarLike(maskedKSpace, scale),
	}
	if target != nil {
		out.Target = target.Scale(complex(1/scale, 0))
	}
	return out
}

// scalarLike builds a scalar tensor of t's dtype holding the real value v.
func scalarLike(t *tensors.Tensor, v float64) *tensors.Tensor {
	switch t.DType() {
	case dtypes.Complex64:
		return tensors.FromScalar(complex64(complex(v, 0)))
	case dtypes.Complex128:
		return tensors.FromScalar(complex(v, 0))
	}
	return tensors.FromScalar(float32(v))
}
