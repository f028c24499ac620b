// Package builtin provides the built-in transforms of the augmentation
// pipeline: exact geometric (equivariant) transforms and physics-driven
// (invariant) measurement corruptions.
//
// All transforms operate on tensors in spatial-last layout, with the two
// spatial axes trailing. Random variants are Generators embedding
// transforms.RandomGen: they gate application on the schedulable probability
// "p" and realize deterministic Transform instances, so a realized transform
// re-applied to the same data reproduces the same distortion.
package builtin

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/types/tensors"
)

// FlipTransform mirrors a spatial axis: -1 flips width, -2 flips height.
// Geometric, so it is applied to input, target and (optionally) maps.
type FlipTransform struct {
	Axis int
}

// Name implements transforms.Item.
func (t FlipTransform) Name() string { return fmt.Sprintf("Flip(axis=%d)", t.Axis) }

// Kind implements transforms.Transform.
func (t FlipTransform) Kind() transforms.Kind { return transforms.KindGeometric }

// AcceptsMaps implements transforms.Transform.
func (t FlipTransform) AcceptsMaps() bool { return false }

// ApplyImage implements transforms.Transform.
func (t FlipTransform) ApplyImage(image *tensors.Tensor) *tensors.Tensor {
	return image.Flip(t.spatialAxis(image))
}

// ApplyMaps implements transforms.Transform.
func (t FlipTransform) ApplyMaps(maps *tensors.Tensor) *tensors.Tensor {
	return maps.Flip(t.spatialAxis(maps))
}

// ApplyKSpace implements transforms.Transform. Geometric transforms are
// image-domain operations; the pipeline never routes them here.
func (t FlipTransform) ApplyKSpace(kspace, maps *tensors.Tensor) *tensors.Tensor {
	exceptions.Panicf("FlipTransform is image-domain, it does not apply to k-space")
	return nil
}

func (t FlipTransform) spatialAxis(data *tensors.Tensor) int {
	if t.Axis != -1 && t.Axis != -2 {
		exceptions.Panicf("FlipTransform: axis must be -1 (width) or -2 (height), got %d", t.Axis)
	}
	return data.Rank() + t.Axis
}

// RandomFlip generates FlipTransforms, drawing uniformly among the configured
// spatial axes.
type RandomFlip struct {
	transforms.RandomGen
	axes []int
}

// NewRandomFlip creates a flip generator with application probability p over
// the given spatial axes (-1, -2). With no axes, both are candidates.
func NewRandomFlip(p float64, axes ...int) *RandomFlip {
	if len(axes) == 0 {
		axes = []int{-1, -2}
	}
	return &RandomFlip{
		RandomGen: transforms.MakeRandomGen("RandomFlip", p),
		axes:      axes,
	}
}

// BaseKind implements transforms.Generator.
func (g *RandomFlip) BaseKind() transforms.Kind { return transforms.KindGeometric }

// GetTransform implements transforms.Generator.
func (g *RandomFlip) GetTransform(data *tensors.Tensor) transforms.Transform {
	if !g.Draw() {
		return transforms.NoOp{}
	}
	return FlipTransform{Axis: g.axes[g.Rand().Intn(len(g.axes))]}
}
