package builtin

import (
	"fmt"
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/types/tensors"
)

// NoiseTransform adds complex Gaussian measurement noise to k-space data:
// independent real and imaginary components with standard deviation Sigma.
// Physics-driven, so it corrupts the input only, never the target.
//
// The noise sequence is a pure function of the instance's seed: re-applying
// the same realized transform reproduces the same corruption bit for bit.
//
// Note the noise covers the whole k-space grid, including non-sampled entries;
// with undersampled data, enable mask re-application after invariant
// transforms to zero those out again.
type NoiseTransform struct {
	Sigma float64

	seed int64
}

// NewNoiseTransform creates a deterministic additive-noise transform with the
// given standard deviation and noise seed.
func NewNoiseTransform(sigma float64, seed int64) NoiseTransform {
	return NoiseTransform{Sigma: sigma, seed: seed}
}

// Name implements transforms.Item.
func (t NoiseTransform) Name() string { return fmt.Sprintf("Noise(sigma=%.4g)", t.Sigma) }

// Kind implements transforms.Transform.
func (t NoiseTransform) Kind() transforms.Kind { return transforms.KindPhysics }

// AcceptsMaps implements transforms.Transform.
func (t NoiseTransform) AcceptsMaps() bool { return false }

// ApplyImage implements transforms.Transform. Physics-driven transforms are
// measurement-domain operations; the pipeline never routes them here.
func (t NoiseTransform) ApplyImage(image *tensors.Tensor) *tensors.Tensor {
	exceptions.Panicf("NoiseTransform is measurement-domain, it does not apply to images")
	return nil
}

// ApplyMaps implements transforms.Transform.
func (t NoiseTransform) ApplyMaps(maps *tensors.Tensor) *tensors.Tensor {
	exceptions.Panicf("NoiseTransform is measurement-domain, it does not apply to maps")
	return nil
}

// ApplyKSpace implements transforms.Transform.
func (t NoiseTransform) ApplyKSpace(kspace, maps *tensors.Tensor) *tensors.Tensor {
	rng := rand.New(rand.NewSource(t.seed))
	out := kspace.Clone()
	switch kspace.DType() {
	case dtypes.Complex64:
		flat := tensors.MutableFlatData[complex64](out)
		for i := range flat {
			flat[i] += complex(float32(rng.NormFloat64()*t.Sigma), float32(rng.NormFloat64()*t.Sigma))
		}
	case dtypes.Complex128:
		flat := tensors.MutableFlatData[complex128](out)
		for i := range flat {
			flat[i] += complex(rng.NormFloat64()*t.Sigma, rng.NormFloat64()*t.Sigma)
		}
	default:
		exceptions.Panicf("NoiseTransform: k-space must be complex, got %s", kspace)
	}
	return out
}

// RandomNoise generates NoiseTransforms with the noise level drawn uniformly
// from [SigmaLow, SigmaHigh].
type RandomNoise struct {
	transforms.RandomGen
	sigmaLow, sigmaHigh float64
}

// NewRandomNoise creates a noise generator with application probability p and
// the given noise-level range.
func NewRandomNoise(p, sigmaLow, sigmaHigh float64) *RandomNoise {
	if sigmaLow < 0 || sigmaHigh < sigmaLow {
		exceptions.Panicf("NewRandomNoise: invalid sigma range [%g, %g]", sigmaLow, sigmaHigh)
	}
	return &RandomNoise{
		RandomGen: transforms.MakeRandomGen("RandomNoise", p),
		sigmaLow:  sigmaLow,
		sigmaHigh: sigmaHigh,
	}
}

// BaseKind implements transforms.Generator.
func (g *RandomNoise) BaseKind() transforms.Kind { return transforms.KindPhysics }

// GetTransform implements transforms.Generator.
func (g *RandomNoise) GetTransform(data *tensors.Tensor) transforms.Transform {
	if !g.Draw() {
		return transforms.NoOp{}
	}
	sigma := g.sigmaLow + g.Rand().Float64()*(g.sigmaHigh-g.sigmaLow)
	return NewNoiseTransform(sigma, g.DrawSeed())
}

// ParamValues implements transforms.Schedulable, adding the configured noise
// range to the base parameters.
func (g *RandomNoise) ParamValues(useSchedulers bool) map[string]any {
	params := g.RandomGen.ParamValues(useSchedulers)
	params["sigma"] = []float64{g.sigmaLow, g.sigmaHigh}
	return params
}
