package builtin

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/types/tensors"
)

// Rot90Transform rotates the spatial plane counter-clockwise by K quarter
// turns. Exact (no interpolation), so the consistency loss can invert it
// losslessly. For odd K the two spatial dimensions are swapped; with
// non-square data that changes the shape of everything downstream, so odd
// rotations should only be configured for square acquisitions.
type Rot90Transform struct {
	K int
}

// Name implements transforms.Item.
func (t Rot90Transform) Name() string { return fmt.Sprintf("Rot90(k=%d)", t.K) }

// Kind implements transforms.Transform.
func (t Rot90Transform) Kind() transforms.Kind { return transforms.KindGeometric }

// AcceptsMaps implements transforms.Transform.
func (t Rot90Transform) AcceptsMaps() bool { return false }

// ApplyImage implements transforms.Transform.
func (t Rot90Transform) ApplyImage(image *tensors.Tensor) *tensors.Tensor {
	return t.rotate(image)
}

// ApplyMaps implements transforms.Transform.
func (t Rot90Transform) ApplyMaps(maps *tensors.Tensor) *tensors.Tensor {
	return t.rotate(maps)
}

// ApplyKSpace implements transforms.Transform. Geometric transforms are
// image-domain operations; the pipeline never routes them here.
func (t Rot90Transform) ApplyKSpace(kspace, maps *tensors.Tensor) *tensors.Tensor {
	exceptions.Panicf("Rot90Transform is image-domain, it does not apply to k-space")
	return nil
}

func (t Rot90Transform) rotate(data *tensors.Tensor) *tensors.Tensor {
	k := ((t.K % 4) + 4) % 4
	for range k {
		// One quarter turn: swap the two spatial axes, then flip the new height.
		data = data.Transpose(swapLastTwo(data.Rank())...).Flip(-2)
	}
	return data
}

func swapLastTwo(rank int) []int {
	permutation := make([]int, rank)
	for axis := range rank {
		permutation[axis] = axis
	}
	permutation[rank-2], permutation[rank-1] = rank-1, rank-2
	return permutation
}

// RandomRot90 generates Rot90Transforms with a random number of quarter turns.
type RandomRot90 struct {
	transforms.RandomGen
	ks []int
}

// NewRandomRot90 creates a rotation generator with application probability p,
// drawing the number of quarter turns uniformly from ks (default 1..3).
func NewRandomRot90(p float64, ks ...int) *RandomRot90 {
	if len(ks) == 0 {
		ks = []int{1, 2, 3}
	}
	return &RandomRot90{
		RandomGen: transforms.MakeRandomGen("RandomRot90", p),
		ks:        ks,
	}
}

// BaseKind implements transforms.Generator.
func (g *RandomRot90) BaseKind() transforms.Kind { return transforms.KindGeometric }

// GetTransform implements transforms.Generator.
func (g *RandomRot90) GetTransform(data *tensors.Tensor) transforms.Transform {
	if !g.Draw() {
		return transforms.NoOp{}
	}
	return Rot90Transform{K: g.ks[g.Rand().Intn(len(g.ks))]}
}
