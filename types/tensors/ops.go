package tensors

import (
	"math"
	"math/cmplx"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"

	"github.com/medrecon/augment/types/shapes"
)

// This file implements the tensor operations needed by the augmentation
// pipeline. All operations return newly allocated tensors and never modify
// their inputs.

// numeric are the dtypes on which arithmetic ops are implemented.
type numeric interface {
	constraints.Complex | float32
}

// Transpose returns a new tensor with the axes reordered according to the given
// permutation: axis i of the result is axis permutation[i] of t.
//
// Applying a permutation and then its inverse returns a tensor equal to the
// original.
func (t *Tensor) Transpose(permutation ...int) *Tensor {
	outShape := t.shape.Permute(permutation)
	out := FromShape(outShape)
	outStrides := outShape.Strides()
	switch flat := t.flat.(type) {
	case []complex64:
		transposeFlat(flat, out.flat.([]complex64), t.shape, permutation, outStrides)
	case []complex128:
		transposeFlat(flat, out.flat.([]complex128), t.shape, permutation, outStrides)
	case []float32:
		transposeFlat(flat, out.flat.([]float32), t.shape, permutation, outStrides)
	case []float16.Float16:
		transposeFlat(flat, out.flat.([]float16.Float16), t.shape, permutation, outStrides)
	case []bool:
		transposeFlat(flat, out.flat.([]bool), t.shape, permutation, outStrides)
	}
	return out
}

func transposeFlat[T any](in, out []T, inShape shapes.Shape, permutation []int, outStrides []int) {
	rank := inShape.Rank()
	index := make([]int, rank)
	for _, value := range in {
		offset := 0
		for newAxis := range rank {
			offset += index[permutation[newAxis]] * outStrides[newAxis]
		}
		out[offset] = value
		for axis := rank - 1; axis >= 0; axis-- {
			index[axis]++
			if index[axis] < inShape.Dimensions[axis] {
				break
			}
			index[axis] = 0
		}
	}
}

// Flip returns a new tensor with the entries along the given axis reversed.
// Negative axes count from the end.
func (t *Tensor) Flip(axis int) *Tensor {
	if axis < 0 {
		axis += t.Rank()
	}
	if axis < 0 || axis >= t.Rank() {
		exceptions.Panicf("Tensor.Flip: axis out-of-bounds for %s", t)
	}
	out := FromShape(t.shape.Clone())
	strides := t.shape.Strides()
	dim := t.shape.Dimensions[axis]
	stride := strides[axis]
	switch flat := t.flat.(type) {
	case []complex64:
		flipFlat(flat, out.flat.([]complex64), t.shape, axis, dim, stride)
	case []complex128:
		flipFlat(flat, out.flat.([]complex128), t.shape, axis, dim, stride)
	case []float32:
		flipFlat(flat, out.flat.([]float32), t.shape, axis, dim, stride)
	case []float16.Float16:
		flipFlat(flat, out.flat.([]float16.Float16), t.shape, axis, dim, stride)
	case []bool:
		flipFlat(flat, out.flat.([]bool), t.shape, axis, dim, stride)
	}
	return out
}

func flipFlat[T any](in, out []T, shape shapes.Shape, axis, dim, stride int) {
	rank := shape.Rank()
	index := make([]int, rank)
	for i, value := range in {
		out[i+(dim-1-2*index[axis])*stride] = value
		for a := rank - 1; a >= 0; a-- {
			index[a]++
			if index[a] < shape.Dimensions[a] {
				break
			}
			index[a] = 0
		}
	}
}

// Conj returns the elementwise complex conjugate. For non-complex dtypes it
// returns a clone.
func (t *Tensor) Conj() *Tensor {
	switch flat := t.flat.(type) {
	case []complex64:
		out := FromShape(t.shape.Clone())
		outFlat := out.flat.([]complex64)
		for i, v := range flat {
			outFlat[i] = complex(real(v), -imag(v))
		}
		return out
	case []complex128:
		out := FromShape(t.shape.Clone())
		outFlat := out.flat.([]complex128)
		for i, v := range flat {
			outFlat[i] = cmplx.Conj(v)
		}
		return out
	}
	return t.Clone()
}

// Scale returns the tensor multiplied by the given scalar. For Float32 tensors
// only the real part of the scalar is used.
func (t *Tensor) Scale(scalar complex128) *Tensor {
	out := FromShape(t.shape.Clone())
	switch flat := t.flat.(type) {
	case []complex64:
		scaleFlat(flat, out.flat.([]complex64), complex64(scalar))
	case []complex128:
		scaleFlat(flat, out.flat.([]complex128), scalar)
	case []float32:
		scaleFlat(flat, out.flat.([]float32), float32(real(scalar)))
	default:
		exceptions.Panicf("Tensor.Scale: dtype %s not supported", t.DType())
	}
	return out
}

func scaleFlat[T numeric](in, out []T, scalar T) {
	for i, v := range in {
		out[i] = v * scalar
	}
}

// ConvertDType returns the tensor converted to the given dtype. Conversions are
// value-preserving widenings: Bool/Float16/Float32 to Float32 or to a complex
// dtype (as the real part), Complex64 to Complex128 and vice versa.
func ConvertDType(t *Tensor, dtype dtypes.DType) *Tensor {
	if t.DType() == dtype {
		return t
	}
	reals := make([]float64, 0)
	switch flat := t.flat.(type) {
	case []float32:
		for _, v := range flat {
			reals = append(reals, float64(v))
		}
	case []float16.Float16:
		for _, v := range flat {
			reals = append(reals, float64(v.Float32()))
		}
	case []bool:
		for _, v := range flat {
			if v {
				reals = append(reals, 1)
			} else {
				reals = append(reals, 0)
			}
		}
	case []complex64:
		if dtype != dtypes.Complex128 {
			exceptions.Panicf("tensors.ConvertDType: cannot convert %s to %s", t.DType(), dtype)
		}
		out := FromShape(shapes.Make(dtype, t.shape.Dimensions...))
		outFlat := out.flat.([]complex128)
		for i, v := range flat {
			outFlat[i] = complex128(v)
		}
		return out
	case []complex128:
		if dtype != dtypes.Complex64 {
			exceptions.Panicf("tensors.ConvertDType: cannot convert %s to %s", t.DType(), dtype)
		}
		out := FromShape(shapes.Make(dtype, t.shape.Dimensions...))
		outFlat := out.flat.([]complex64)
		for i, v := range flat {
			outFlat[i] = complex64(v)
		}
		return out
	}
	out := FromShape(shapes.Make(dtype, t.shape.Dimensions...))
	switch outFlat := out.flat.(type) {
	case []float32:
		for i, v := range reals {
			outFlat[i] = float32(v)
		}
	case []complex64:
		for i, v := range reals {
			outFlat[i] = complex(float32(v), 0)
		}
	case []complex128:
		for i, v := range reals {
			outFlat[i] = complex(v, 0)
		}
	default:
		exceptions.Panicf("tensors.ConvertDType: cannot convert %s to %s", t.DType(), dtype)
	}
	return out
}

// Mul returns the elementwise product a*b.
//
// b must either have the same dimensions as a, or be broadcastable against a's
// leading axes: b.Rank() <= a.Rank(), and each of b's dimensions must match a's
// corresponding dimension or be 1. This covers the mask case, where a
// `[batch, height, width, 1]` mask multiplies `[batch, height, width, coils]`
// k-space data. b is converted to a's dtype first.
func Mul(a, b *Tensor) *Tensor {
	if b.Rank() > a.Rank() {
		exceptions.Panicf("tensors.Mul: %s is not broadcastable against %s", b, a)
	}
	b = ConvertDType(b, a.DType())
	bStrides := broadcastStrides(a.shape, b.shape)
	out := FromShape(a.shape.Clone())
	switch flat := a.flat.(type) {
	case []complex64:
		mulFlat(flat, b.flat.([]complex64), out.flat.([]complex64), a.shape, bStrides)
	case []complex128:
		mulFlat(flat, b.flat.([]complex128), out.flat.([]complex128), a.shape, bStrides)
	case []float32:
		mulFlat(flat, b.flat.([]float32), out.flat.([]float32), a.shape, bStrides)
	default:
		exceptions.Panicf("tensors.Mul: dtype %s not supported", a.DType())
	}
	return out
}

// broadcastStrides returns per-axis strides into b for every axis of a; axes
// where b broadcasts (dimension 1 or absent) get stride 0.
func broadcastStrides(a, b shapes.Shape) []int {
	strides := make([]int, a.Rank())
	bStrides := b.Strides()
	for axis := range b.Rank() {
		switch b.Dimensions[axis] {
		case a.Dimensions[axis]:
			strides[axis] = bStrides[axis]
		case 1:
			strides[axis] = 0
		default:
			exceptions.Panicf("tensors: shape %s is not broadcastable against %s", b, a)
		}
	}
	return strides
}

func mulFlat[T numeric](a, b, out []T, shape shapes.Shape, bStrides []int) {
	rank := shape.Rank()
	index := make([]int, rank)
	for i, v := range a {
		bOffset := 0
		for axis := range rank {
			bOffset += index[axis] * bStrides[axis]
		}
		out[i] = v * b[bOffset]
		for axis := rank - 1; axis >= 0; axis-- {
			index[axis]++
			if index[axis] < shape.Dimensions[axis] {
				break
			}
			index[axis] = 0
		}
	}
}

// NonZeroMask returns a Float32 tensor with the same dimensions as t, with 1
// where t is non-zero and 0 elsewhere. This is how a sampling mask is derived
// from the support of undersampled k-space data.
func (t *Tensor) NonZeroMask() *Tensor {
	out := FromShape(shapes.Make(dtypes.Float32, t.shape.Dimensions...))
	outFlat := out.flat.([]float32)
	switch flat := t.flat.(type) {
	case []complex64:
		for i, v := range flat {
			if v != 0 {
				outFlat[i] = 1
			}
		}
	case []complex128:
		for i, v := range flat {
			if v != 0 {
				outFlat[i] = 1
			}
		}
	case []float32:
		for i, v := range flat {
			if v != 0 {
				outFlat[i] = 1
			}
		}
	default:
		exceptions.Panicf("Tensor.NonZeroMask: dtype %s not supported", t.DType())
	}
	return out
}

// Equal checks whether t and other have the same shape and data, with exact
// equality for the data values.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	switch flat := t.flat.(type) {
	case []complex64:
		return flatEqual(flat, other.flat.([]complex64))
	case []complex128:
		return flatEqual(flat, other.flat.([]complex128))
	case []float32:
		return flatEqual(flat, other.flat.([]float32))
	case []float16.Float16:
		return flatEqual(flat, other.flat.([]float16.Float16))
	case []bool:
		return flatEqual(flat, other.flat.([]bool))
	}
	return false
}

func flatEqual[T comparable](a, b []T) bool {
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

// InDelta checks whether t and other have the same shape and all data values
// are within the given delta of each other. For complex values the magnitude of
// the difference is compared.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	switch flat := t.flat.(type) {
	case []complex64:
		otherFlat := other.flat.([]complex64)
		for i, v := range flat {
			if cmplx.Abs(complex128(v-otherFlat[i])) > delta {
				return false
			}
		}
	case []complex128:
		otherFlat := other.flat.([]complex128)
		for i, v := range flat {
			if cmplx.Abs(v-otherFlat[i]) > delta {
				return false
			}
		}
	case []float32:
		otherFlat := other.flat.([]float32)
		for i, v := range flat {
			if math.Abs(float64(v-otherFlat[i])) > delta {
				return false
			}
		}
	default:
		return t.Equal(other)
	}
	return true
}
