// Package forward implements the SENSE measurement operator for multi-coil
// measurement (k-space) data.
//
// The adjoint path combines measurement data and coil sensitivity maps into an
// image; the forward path decomposes an image back into multi-coil measurement
// data. Shapes follow the measurement-native layout:
//
//   - k-space: `[batch, height, width, coils]`, complex.
//   - sensitivity maps: `[batch, height, width, coils, mapSets]`, complex.
//     Single-coil data is represented by an all-ones map set.
//   - image: `[batch, height, width, mapSets]`, complex.
//
// Reference: Pruessmann et al., "SENSE: Sensitivity encoding for fast MRI",
// MRM 1999.
package forward

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"golang.org/x/exp/constraints"

	"github.com/medrecon/augment/types/shapes"
	"github.com/medrecon/augment/types/tensors"
)

// SenseModel is the forward/adjoint measurement operator for one batch of
// sensitivity maps, with an optional sampling weight (mask) applied on the
// measurement side.
//
// The model is stateless with respect to the data: both paths allocate new
// tensors and never modify their inputs.
type SenseModel struct {
	maps    *tensors.Tensor
	weights *tensors.Tensor
}

// NewSenseModel creates the operator from sensitivity maps
// `[batch, height, width, coils, mapSets]` and optional weights, a mask
// broadcastable against the k-space data (nil for fully sampled data).
func NewSenseModel(maps, weights *tensors.Tensor) *SenseModel {
	if maps == nil {
		exceptions.Panicf("forward.NewSenseModel: sensitivity maps are required")
	}
	maps.Shape().AssertRank(5)
	return &SenseModel{maps: maps, weights: weights}
}

// Adjoint combines k-space data `[batch, height, width, coils]` into an image
// `[batch, height, width, mapSets]`: weighting, centered inverse FFT per coil,
// then conjugate-map coil combination.
func (m *SenseModel) Adjoint(kspace *tensors.Tensor) *tensors.Tensor {
	kspace.Shape().AssertRank(4)
	m.assertCompatible(kspace)
	if m.weights != nil {
		kspace = tensors.Mul(kspace, m.weights)
	}
	coilImages := IFFT2Centered(kspace)

	batch, height, width := kspace.Dim(0), kspace.Dim(1), kspace.Dim(2)
	coils, mapSets := m.maps.Dim(3), m.maps.Dim(4)
	image := tensors.FromShape(shapes.Make(kspace.DType(), batch, height, width, mapSets))
	switch kspace.DType() {
	case dtypes.Complex64:
		adjointCombine(
			tensors.ConstFlatData[complex64](coilImages),
			tensors.ConstFlatData[complex64](m.maps),
			tensors.MutableFlatData[complex64](image),
			batch*height*width, coils, mapSets)
	default:
		adjointCombine(
			tensors.ConstFlatData[complex128](coilImages),
			tensors.ConstFlatData[complex128](m.maps),
			tensors.MutableFlatData[complex128](image),
			batch*height*width, coils, mapSets)
	}
	return image
}

// Forward decomposes an image `[batch, height, width, mapSets]` into k-space
// data `[batch, height, width, coils]`: map-weighted coil expansion, centered
// FFT, then weighting.
func (m *SenseModel) Forward(image *tensors.Tensor) *tensors.Tensor {
	image.Shape().AssertRank(4)
	batch, height, width := image.Dim(0), image.Dim(1), image.Dim(2)
	coils, mapSets := m.maps.Dim(3), m.maps.Dim(4)
	if image.Dim(3) != mapSets {
		exceptions.Panicf("forward.Forward: image %s does not match maps %s (want %d map sets)",
			image, m.maps, mapSets)
	}

	coilImages := tensors.FromShape(shapes.Make(image.DType(), batch, height, width, coils))
	switch image.DType() {
	case dtypes.Complex64:
		forwardExpand(
			tensors.ConstFlatData[complex64](image),
			tensors.ConstFlatData[complex64](m.maps),
			tensors.MutableFlatData[complex64](coilImages),
			batch*height*width, coils, mapSets)
	default:
		forwardExpand(
			tensors.ConstFlatData[complex128](image),
			tensors.ConstFlatData[complex128](m.maps),
			tensors.MutableFlatData[complex128](coilImages),
			batch*height*width, coils, mapSets)
	}
	kspace := FFT2Centered(coilImages)
	if m.weights != nil {
		kspace = tensors.Mul(kspace, m.weights)
	}
	return kspace
}

// adjointCombine computes image[p,s] = sum_c coilImages[p,c] * conj(maps[p,c,s])
// over flattened spatial positions p.
func adjointCombine[T constraints.Complex](coilImages, maps, image []T, positions, coils, mapSets int) {
	for p := range positions {
		for s := range mapSets {
			var acc T
			for c := range coils {
				acc += coilImages[p*coils+c] * conj(maps[(p*coils+c)*mapSets+s])
			}
			image[p*mapSets+s] = acc
		}
	}
}

// forwardExpand computes coilImages[p,c] = sum_s image[p,s] * maps[p,c,s].
func forwardExpand[T constraints.Complex](image, maps, coilImages []T, positions, coils, mapSets int) {
	for p := range positions {
		for c := range coils {
			var acc T
			for s := range mapSets {
				acc += image[p*mapSets+s] * maps[(p*coils+c)*mapSets+s]
			}
			coilImages[p*coils+c] = acc
		}
	}
}

func conj[T constraints.Complex](v T) T {
	return T(complex(real(complex128(v)), -imag(complex128(v))))
}

func (m *SenseModel) assertCompatible(kspace *tensors.Tensor) {
	for axis := range 4 {
		if m.maps.Dim(axis) != kspace.Dim(axis) {
			exceptions.Panicf("forward: k-space %s incompatible with maps %s at axis %d",
				kspace, m.maps, axis)
		}
	}
	if m.maps.DType() != kspace.DType() {
		exceptions.Panicf("forward: k-space dtype %s differs from maps dtype %s",
			kspace.DType(), m.maps.DType())
	}
}
