package augment

import (
	"math/rand"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrecon/augment/forward"
	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/transforms/builtin"
	"github.com/medrecon/augment/types/shapes"
	"github.com/medrecon/augment/types/tensors"
)

// testSample builds a deterministic [batch, h, w, coils] k-space, matching
// all-ones single-coil maps [batch, h, w, 1, 1] and a target [batch, h, w, 1].
func testSample(batch, h, w int) (kspace, maps, target *tensors.Tensor) {
	rng := rand.New(rand.NewSource(17))
	kFlat := make([]complex64, batch*h*w)
	for i := range kFlat {
		kFlat[i] = complex(float32(rng.NormFloat64()), float32(rng.NormFloat64()))
	}
	kspace = tensors.FromFlatDataAndDimensions(kFlat, batch, h, w, 1)
	maps = tensors.Ones(shapes.Make(dtypes.Complex64, batch, h, w, 1, 1))
	target = forward.NewSenseModel(maps, nil).Adjoint(kspace)
	return
}

// fillTransform is a deterministic physics transform setting every k-space
// entry to a constant, used to observe re-masking.
type fillTransform struct {
	value complex64
}

func (fillTransform) Name() string                                 { return "Fill" }
func (fillTransform) Kind() transforms.Kind                        { return transforms.KindPhysics }
func (fillTransform) AcceptsMaps() bool                            { return false }
func (fillTransform) ApplyImage(t *tensors.Tensor) *tensors.Tensor { return t }
func (fillTransform) ApplyMaps(t *tensors.Tensor) *tensors.Tensor  { return t }
func (f fillTransform) ApplyKSpace(kspace, maps *tensors.Tensor) *tensors.Tensor {
	return tensors.FromScalarAndDimensions(f.value, kspace.Shape().Dimensions...)
}

func TestApplyEmptyPipelineIsIdentity(t *testing.T) {
	kspace, maps, target := testSample(2, 8, 8)
	res, eq, inv := New().Apply(kspace).Maps(maps).Target(target).Done()

	// Nothing consumed the image domain, so k-space passes through untouched.
	require.True(t, kspace.Equal(res.KSpace))
	require.True(t, target.Equal(res.Target))
	assert.Zero(t, eq.Len())
	assert.Zero(t, inv.Len())
	assert.Nil(t, res.Mean)
	assert.Nil(t, res.Std)
}

func TestApplySkipTransforms(t *testing.T) {
	kspace, maps, target := testSample(1, 8, 8)
	aug := New(builtin.NewRandomFlip(1), builtin.NewRandomNoise(1, 0.1, 0.2))
	res, eq, inv := aug.Apply(kspace).Maps(maps).Target(target).SkipTransforms().Done()

	require.True(t, kspace.Equal(res.KSpace))
	assert.Zero(t, eq.Len())
	assert.Zero(t, inv.Len())
}

func TestApplyEquivariantConsistency(t *testing.T) {
	kspace, maps, target := testSample(1, 8, 8)
	flip := builtin.FlipTransform{Axis: -1}
	res, eq, inv := New(flip).Apply(kspace).Maps(maps).Target(target).Done()

	assert.Equal(t, 1, eq.Len())
	assert.Zero(t, inv.Len())

	// The target mirrors the image-domain flip: width is native axis 2.
	require.True(t, target.Flip(2).InDelta(res.Target, 1e-5))

	// K-space is the re-acquisition of the flipped image.
	model := forward.NewSenseModel(maps, nil)
	expected := model.Forward(model.Adjoint(kspace).Flip(2))
	require.True(t, expected.InDelta(res.KSpace, 1e-4))
}

func TestApplyEquivariantReacquisitionUnmasked(t *testing.T) {
	// K-space supported on a single column, with a mask keeping exactly
	// that column. The flip moves the energy to a different column; the
	// re-acquired k-space must keep it rather than zero it through the
	// stale mask. Undersampling is only reintroduced by a mask generator
	// or the post-physics re-mask.
	const h, w = 4, 8
	rng := rand.New(rand.NewSource(3))
	kFlat := make([]complex64, h*w)
	for y := 0; y < h; y++ {
		kFlat[y*w+1] = complex(float32(rng.NormFloat64()), float32(rng.NormFloat64()))
	}
	kspace := tensors.FromFlatDataAndDimensions(kFlat, 1, h, w, 1)
	maps := tensors.Ones(shapes.Make(dtypes.Complex64, 1, h, w, 1, 1))
	maskFlat := make([]float32, w)
	maskFlat[1] = 1
	mask := tensors.FromFlatDataAndDimensions(maskFlat, 1, 1, w, 1)

	flip := builtin.FlipTransform{Axis: -1}
	res, eq, _ := New(flip).Apply(kspace).Maps(maps).Mask(mask).Done()
	require.Equal(t, 1, eq.Len())

	adjoint := forward.NewSenseModel(maps, mask).Adjoint(kspace)
	expected := forward.NewSenseModel(maps, nil).Forward(adjoint.Flip(2))
	require.True(t, expected.InDelta(res.KSpace, 1e-4))

	// Orthonormal FFTs and unit maps: the flip conserves total energy,
	// and most of it now sits outside the mask support.
	var total float64
	for _, v := range tensors.ConstFlatData[complex64](kspace) {
		total += float64(real(v)*real(v) + imag(v)*imag(v))
	}
	var out, outTotal float64
	for i, v := range tensors.ConstFlatData[complex64](res.KSpace) {
		e := float64(real(v)*real(v) + imag(v)*imag(v))
		outTotal += e
		if i%w != 1 {
			out += e
		}
	}
	require.InDelta(t, total, outTotal, 1e-4*total)
	assert.Greater(t, out, 0.5*total)
}

func TestApplyMapsAugmentation(t *testing.T) {
	kspace, _, _ := testSample(1, 4, 4)
	// Non-uniform maps so a flip is observable.
	mapFlat := make([]complex64, 4*4)
	for i := range mapFlat {
		mapFlat[i] = complex(float32(i+1), 0)
	}
	maps := tensors.FromFlatDataAndDimensions(mapFlat, 1, 4, 4, 1, 1)
	flip := builtin.FlipTransform{Axis: -1}

	res, _, _ := New(flip).Apply(kspace).Maps(maps).Done()
	require.True(t, maps.Flip(2).Equal(res.Maps))

	// With map augmentation off, the maps pass through untouched.
	res, _, _ = New(flip).AugSensitivityMaps(false).Apply(kspace).Maps(maps).Done()
	require.True(t, maps.Equal(res.Maps))
}

func TestApplyInvariantOnly(t *testing.T) {
	kspace, _, _ := testSample(1, 8, 8)
	noise := builtin.NewNoiseTransform(0.05, 3)

	// Physics transforms need no maps when nothing touches the image domain.
	res, eq, inv := New(noise).Apply(kspace).Done()
	assert.Zero(t, eq.Len())
	assert.Equal(t, 1, inv.Len())
	assert.False(t, kspace.Equal(res.KSpace))
	assert.Equal(t, kspace.Shape().Dimensions, res.KSpace.Shape().Dimensions)
}

func TestApplyRemaskAfterInvariant(t *testing.T) {
	kspace, _, _ := testSample(1, 4, 8)
	// Keep only the even columns.
	maskFlat := make([]float32, 8)
	for x := 0; x < 8; x += 2 {
		maskFlat[x] = 1
	}
	mask := tensors.FromFlatDataAndDimensions(maskFlat, 1, 1, 8, 1)

	aug := New(fillTransform{value: 1}).ApplyMaskAfterInvariantTfms(true)
	res, _, inv := aug.Apply(kspace).Mask(mask).Done()
	require.Equal(t, 1, inv.Len())

	flat := tensors.ConstFlatData[complex64](res.KSpace)
	for i, v := range flat {
		x := i % 8
		if x%2 == 0 {
			assert.Equal(t, complex64(1), v)
		} else {
			assert.Equal(t, complex64(0), v)
		}
	}

	// Without a mask the re-mask request is a contract violation.
	require.Panics(t, func() {
		aug.Apply(kspace).Done()
	})

	// Per-call override disables the re-mask.
	res, _, _ = aug.Apply(kspace).MaskAfterInvariantTfms(false).Done()
	for _, v := range tensors.ConstFlatData[complex64](res.KSpace) {
		assert.Equal(t, complex64(1), v)
	}
}

func TestApplyNormalizer(t *testing.T) {
	kspace, maps, target := testSample(1, 8, 8)
	res, _, _ := New().Apply(kspace).Maps(maps).Target(target).
		Normalizer(RMSNormalizer{}).Done()

	require.NotNil(t, res.Mean)
	require.NotNil(t, res.Std)
	assert.True(t, res.Std.Shape().IsScalar())
	std := tensors.ConstFlatData[complex64](res.Std)[0]
	assert.Greater(t, real(std), float32(0))

	// Scaling back by std restores the input.
	restored := res.KSpace.Scale(complex128(std))
	require.True(t, kspace.InDelta(restored, 1e-4))
}

func TestApplyMaskGen(t *testing.T) {
	kspace, maps, _ := testSample(1, 8, 16)
	gen := NewUniformMaskGen(5, 4, 4)

	res, _, _ := New().Apply(kspace).Maps(maps).MaskGen(gen).Done()
	// Some columns must be zeroed, the calibration region never.
	flat := tensors.ConstFlatData[complex64](res.KSpace)
	zeroColumns := 0
	for x := range 16 {
		allZero := true
		for y := range 8 {
			if flat[y*16+x] != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			zeroColumns++
			assert.False(t, x >= 6 && x < 10, "calibration column %d must be kept", x)
		}
	}
	assert.Positive(t, zeroColumns)
}

func TestApplySchedulerStepping(t *testing.T) {
	g := builtin.NewRandomNoise(0.5, 0.01, 0.1)
	s := transforms.NewWarmupScheduler(transforms.ParamP, 0, 100, 0, 0.5)
	g.RegisterSchedulers(s)

	kspace, _, _ := testSample(2, 4, 4)
	aug := New(g)
	for i := 1; i <= 3; i++ {
		aug.Apply(kspace).Done()
		assert.Equal(t, int64(2*i), s.Iters())
	}
}

func TestApplySeedDeterminism(t *testing.T) {
	build := func() *Augmentor {
		return New(
			builtin.NewRandomFlip(0.5),
			builtin.NewRandomRot90(0.5),
			builtin.NewRandomNoise(0.5, 0.01, 0.1),
		).Seed(123)
	}
	a, b := build(), build()

	kspace, maps, target := testSample(1, 8, 8)
	for range 5 {
		resA, _, _ := a.Apply(kspace).Maps(maps).Target(target).Done()
		resB, _, _ := b.Apply(kspace).Maps(maps).Target(target).Done()
		require.True(t, resA.KSpace.Equal(resB.KSpace))
		require.True(t, resA.Target.Equal(resB.Target))
	}
}

func TestApplyContract(t *testing.T) {
	aug := New(builtin.NewRandomFlip(1))
	require.Panics(t, func() { aug.Apply(nil) })
	require.Panics(t, func() {
		aug.Apply(tensors.Ones(shapes.Make(dtypes.Complex64, 4, 4)))
	})
	// Geometric transforms need maps.
	kspace, _, _ := testSample(1, 4, 4)
	require.Panics(t, func() { aug.Apply(kspace).Done() })
	// Maps must be rank 5.
	require.Panics(t, func() {
		aug.Apply(kspace).Maps(tensors.Ones(shapes.Make(dtypes.Complex64, 1, 4, 4, 1)))
	})
}

func TestTfmGenParams(t *testing.T) {
	aug := New(
		builtin.NewRandomFlip(0.25),
		builtin.NewRandomNoise(0.75, 0.01, 0.1),
	)
	params := aug.TfmGenParams(false)
	assert.Equal(t, 0.25, params["RandomFlip/p"])
	assert.Equal(t, 0.75, params["RandomNoise/p"])
	assert.Equal(t, []float64{0.01, 0.1}, params["RandomNoise/sigma"])

	scalars := aug.TfmGenParams(true)
	assert.NotContains(t, scalars, "RandomNoise/sigma")
	assert.Contains(t, scalars, "RandomNoise/p")
}

func TestSchedulersAggregation(t *testing.T) {
	g1 := builtin.NewRandomFlip(0.5)
	g2 := builtin.NewRandomNoise(0.5, 0.01, 0.1)
	g2.RegisterSchedulers(transforms.NewWarmupScheduler(transforms.ParamP, 0, 10, 0, 0.5))
	aug := New(g1, g2)
	assert.Len(t, aug.Schedulers(), 1)
}
