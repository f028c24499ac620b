/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package tensors implements a host-resident Tensor, a representation of a
// multi-dimensional array.
//
// Tensors are defined by their shape (a data type and its axes' dimensions) and
// their actual content, stored as a flat (1D) slice of the underlying dtype.
//
// The dtypes supported are the ones needed for measurement (k-space) data
// pipelines: Complex64 and Complex128 for data, Float32 and Float16 for masks
// and weights, and Bool for flags.
//
// Tensors are treated as immutable values by the augmentation pipeline: every
// operation returns a newly allocated tensor and never edits its inputs in
// place. This eliminates aliasing hazards between pipeline stages, and is why,
// unlike accelerator-backed tensor libraries, there is no locking here: one
// pipeline call owns its intermediate tensors exclusively.
package tensors

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"

	"github.com/medrecon/augment/types/shapes"
)

// Device identifies where components holding tensors should place their data.
//
// This host implementation keeps all tensor data in Go slices, so the device is
// an affinity tag propagated through the pipeline (see the augment package),
// kept so that configurations are portable to accelerator-backed builds.
type Device string

// CPU is the default device.
const CPU Device = "cpu"

// Tensor represents a multidimensional array (from scalar with 0 dimensions, to
// arbitrarily large dimensions), defined by its shape and its content stored as
// a flat slice in row-major order.
type Tensor struct {
	shape shapes.Shape

	// flat is one of []complex64, []complex128, []float32, []float16.Float16 or []bool,
	// according to shape.DType. Its length is shape.Size().
	flat any
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape: invalid shape %s", shape)
	}
	return &Tensor{shape: shape, flat: makeFlat(shape.DType, shape.Size())}
}

func makeFlat(dtype dtypes.DType, size int) any {
	switch dtype {
	case dtypes.Complex64:
		return make([]complex64, size)
	case dtypes.Complex128:
		return make([]complex128, size)
	case dtypes.Float32:
		return make([]float32, size)
	case dtypes.Float16:
		return make([]float16.Float16, size)
	case dtypes.Bool:
		return make([]bool, size)
	}
	exceptions.Panicf("tensors: dtype %s not supported", dtype)
	return nil
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, set with
// the given flattened values. The data is copied, the caller keeps ownership of
// the input slice.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions: data has %d values, shape %s needs %d",
			len(data), shape, shape.Size())
	}
	t := FromShape(shape)
	copy(t.flat.([]T), data)
	return t
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled
// with the given scalar value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	t := FromShape(shapes.Make(dtype, dimensions...))
	flat := t.flat.([]T)
	for i := range flat {
		flat[i] = value
	}
	return t
}

// FromScalar creates a scalar (rank-0) tensor holding the given value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromScalarAndDimensions(value)
}

// Ones creates a tensor of the given shape filled with ones.
func Ones(shape shapes.Shape) *Tensor {
	t := FromShape(shape)
	switch flat := t.flat.(type) {
	case []complex64:
		fill(flat, 1)
	case []complex128:
		fill(flat, 1)
	case []float32:
		fill(flat, 1)
	case []float16.Float16:
		fill(flat, float16.Fromfloat32(1))
	case []bool:
		fill(flat, true)
	}
	return t
}

func fill[T any](flat []T, value T) {
	for i := range flat {
		flat[i] = value
	}
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's unit elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor, the number of axes.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements stored by the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Dim returns the dimension of the given axis; negative axes count from the end.
func (t *Tensor) Dim(axis int) int { return t.shape.Dim(axis) }

// Memory returns the number of bytes used to store the tensor data.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// String reports the shape only, tensors can be large.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%s", t.shape)
}

// ConstFlatData returns the flat backing data of the tensor.
//
// The returned slice aliases the tensor storage and must not be modified --
// tensors are immutable values in this library. It panics if T doesn't match
// the tensor dtype.
func ConstFlatData[T dtypes.Supported](t *Tensor) []T {
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("tensors.ConstFlatData[%s]: tensor has dtype %s",
			dtypes.FromGenericsType[T](), t.DType())
	}
	return flat
}

// CopyFlatData returns a copy of the flat backing data of the tensor.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	flat := ConstFlatData[T](t)
	data := make([]T, len(flat))
	copy(data, flat)
	return data
}

// MutableFlatData gives write access to the flat backing data of the tensor.
// Use it only on tensors the caller exclusively owns, typically freshly
// created or cloned ones; shared tensors are immutable by convention.
func MutableFlatData[T dtypes.Supported](t *Tensor) []T {
	return ConstFlatData[T](t)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := FromShape(t.shape.Clone())
	switch flat := t.flat.(type) {
	case []complex64:
		copy(c.flat.([]complex64), flat)
	case []complex128:
		copy(c.flat.([]complex128), flat)
	case []float32:
		copy(c.flat.([]float32), flat)
	case []float16.Float16:
		copy(c.flat.([]float16.Float16), flat)
	case []bool:
		copy(c.flat.([]bool), flat)
	}
	return c
}
