package builtin

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"golang.org/x/exp/constraints"

	"github.com/medrecon/augment/forward"
	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/types/tensors"
)

// MotionTransform simulates rigid in-plane patient motion across a multi-shot
// acquisition: the phase-encode axis is split into Shots contiguous segments,
// each re-acquired with its own random in-plane translation (a linear phase
// ramp in k-space).
//
// The transform is maps-aware: when sensitivity maps are available, each shot
// is re-synthesized through the SENSE model (adjoint then forward), as a
// repeated acquisition would be. That synthesis leaves energy in k-space
// positions outside the sampling mask, which is why pipelines using motion
// typically enable mask re-application after invariant transforms. Without
// maps it falls back to applying the phase ramps directly.
//
// The per-shot translations are a pure function of the instance's seed.
type MotionTransform struct {
	Shots int
	Std   float64 // translation standard deviation, in pixels

	seed int64
}

// NewMotionTransform creates a deterministic multi-shot motion transform.
func NewMotionTransform(shots int, std float64, seed int64) MotionTransform {
	if shots < 2 {
		exceptions.Panicf("NewMotionTransform: need at least 2 shots, got %d", shots)
	}
	return MotionTransform{Shots: shots, Std: std, seed: seed}
}

// Name implements transforms.Item.
func (t MotionTransform) Name() string {
	return fmt.Sprintf("Motion(shots=%d, std=%.3g)", t.Shots, t.Std)
}

// Kind implements transforms.Transform.
func (t MotionTransform) Kind() transforms.Kind { return transforms.KindPhysics }

// AcceptsMaps implements transforms.Transform.
func (t MotionTransform) AcceptsMaps() bool { return true }

// ApplyImage implements transforms.Transform. Physics-driven transforms are
// measurement-domain operations; the pipeline never routes them here.
func (t MotionTransform) ApplyImage(image *tensors.Tensor) *tensors.Tensor {
	exceptions.Panicf("MotionTransform is measurement-domain, it does not apply to images")
	return nil
}

// ApplyMaps implements transforms.Transform.
func (t MotionTransform) ApplyMaps(maps *tensors.Tensor) *tensors.Tensor {
	exceptions.Panicf("MotionTransform is measurement-domain, it does not apply to maps")
	return nil
}

// ApplyKSpace implements transforms.Transform. kspace is spatial-last
// `[batch, coils, height, width]`; maps, if given, spatial-last
// `[batch, coils, mapSets, height, width]`.
func (t MotionTransform) ApplyKSpace(kspace, maps *tensors.Tensor) *tensors.Tensor {
	kspace.Shape().AssertRank(4)
	base := kspace.Transpose(0, 2, 3, 1) // to measurement-native [b,h,w,c]
	if maps != nil {
		model := forward.NewSenseModel(maps.Transpose(0, 3, 4, 1, 2), nil)
		base = model.Forward(model.Adjoint(base))
	}

	rng := rand.New(rand.NewSource(t.seed))
	width := base.Dim(2)
	out := base.Clone()
	for shot := range t.Shots {
		dx := rng.NormFloat64() * t.Std
		dy := rng.NormFloat64() * t.Std
		xFrom := shot * width / t.Shots
		xTo := (shot + 1) * width / t.Shots
		switch out.DType() {
		case dtypes.Complex64:
			rampSegment(tensors.MutableFlatData[complex64](out), out.Shape().Dimensions, xFrom, xTo, dx, dy)
		case dtypes.Complex128:
			rampSegment(tensors.MutableFlatData[complex128](out), out.Shape().Dimensions, xFrom, xTo, dx, dy)
		default:
			exceptions.Panicf("MotionTransform: k-space must be complex, got %s", kspace)
		}
	}
	return out.Transpose(0, 3, 1, 2) // back to spatial-last
}

// rampSegment multiplies, in place over a freshly cloned buffer, the k-space
// columns [xFrom, xTo) by the linear phase ramp of an (dx, dy) translation.
// flat is measurement-native [b,h,w,c].
func rampSegment[T constraints.Complex](flat []T, dims []int, xFrom, xTo int, dx, dy float64) {
	batch, height, width, coils := dims[0], dims[1], dims[2], dims[3]
	for b := range batch {
		for y := range height {
			fy := float64(y - height/2)
			for x := xFrom; x < xTo; x++ {
				fx := float64(x - width/2)
				phase := -2 * math.Pi * (fy*dy/float64(height) + fx*dx/float64(width))
				ramp := T(cmplx.Exp(complex(0, phase)))
				offset := ((b*height+y)*width + x) * coils
				for c := range coils {
					flat[offset+c] *= ramp
				}
			}
		}
	}
}

// RandomMotion generates MotionTransforms, drawing the number of shots
// uniformly from [2, MaxShots] and using the configured translation spread.
type RandomMotion struct {
	transforms.RandomGen
	maxShots int
	std      float64
}

// NewRandomMotion creates a motion generator with application probability p.
func NewRandomMotion(p float64, maxShots int, std float64) *RandomMotion {
	if maxShots < 2 {
		exceptions.Panicf("NewRandomMotion: need at least 2 shots, got %d", maxShots)
	}
	return &RandomMotion{
		RandomGen: transforms.MakeRandomGen("RandomMotion", p),
		maxShots:  maxShots,
		std:       std,
	}
}

// BaseKind implements transforms.Generator.
func (g *RandomMotion) BaseKind() transforms.Kind { return transforms.KindPhysics }

// GetTransform implements transforms.Generator.
func (g *RandomMotion) GetTransform(data *tensors.Tensor) transforms.Transform {
	if !g.Draw() {
		return transforms.NoOp{}
	}
	shots := 2 + g.Rand().Intn(g.maxShots-1)
	return NewMotionTransform(shots, g.std, g.DrawSeed())
}
