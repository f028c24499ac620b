package tensors

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/medrecon/augment/types/shapes"
)

func TestFromFlatDataAndDimensions(t *testing.T) {
	flat := []complex64{1, 2, 3, 4, 5, 6}
	tensor := FromFlatDataAndDimensions(flat, 2, 3)
	assert.Equal(t, dtypes.Complex64, tensor.DType())
	assert.Equal(t, []int{2, 3}, tensor.Shape().Dimensions)
	assert.Equal(t, 6, tensor.Size())

	// The tensor owns a copy: mutating the source must not leak in.
	flat[0] = 99
	assert.Equal(t, complex64(1), ConstFlatData[complex64](tensor)[0])

	require.Panics(t, func() { FromFlatDataAndDimensions(flat, 2, 2) })
}

func TestFromScalarAndOnes(t *testing.T) {
	s := FromScalar(complex64(3))
	assert.True(t, s.Shape().IsScalar())
	assert.Equal(t, complex64(3), ConstFlatData[complex64](s)[0])

	ones := Ones(shapes.Make(dtypes.Complex128, 2, 2))
	for _, v := range ConstFlatData[complex128](ones) {
		assert.Equal(t, complex128(1), v)
	}

	filled := FromScalarAndDimensions(float32(0.5), 3, 1)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, CopyFlatData[float32](filled))
}

func TestConstFlatDataDTypeMismatch(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float32{1, 2}, 2)
	require.Panics(t, func() { ConstFlatData[complex64](tensor) })
}

func TestClone(t *testing.T) {
	a := FromFlatDataAndDimensions([]complex64{1, 2, 3, 4}, 2, 2)
	b := a.Clone()
	require.True(t, a.Equal(b))
	// Backing buffers are independent.
	MutableFlatData[complex64](b)[0] = 9
	assert.False(t, a.Equal(b))
}

func TestFloat16(t *testing.T) {
	flat := []float16.Float16{float16.Fromfloat32(1), float16.Fromfloat32(2)}
	tensor := FromFlatDataAndDimensions(flat, 2)
	assert.Equal(t, dtypes.Float16, tensor.DType())
	up := ConvertDType(tensor, dtypes.Float32)
	assert.Equal(t, []float32{1, 2}, CopyFlatData[float32](up))
}
