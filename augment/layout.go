package augment

import (
	"github.com/gomlx/exceptions"

	"github.com/medrecon/augment/types/tensors"
)

// Transforms operate on spatial-last tensors ([batch, ..., height, width])
// while measurement data is stored channels-last ([batch, height, width, ...]).
// These adapters permute between the two conventions for any rank >= 3 and
// are exact inverses of each other. A nil tensor passes through, so optional
// inputs (target, maps) need no guards at call sites.

// spatialLast moves the two spatial axes to the end:
// [b, h, w, rest...] -> [b, rest..., h, w].
func spatialLast(t *tensors.Tensor) *tensors.Tensor {
	if t == nil {
		return nil
	}
	rank := t.Rank()
	if rank < 3 {
		exceptions.Panicf("augment: spatial-last permutation requires rank >= 3, got shape %s", t.Shape())
	}
	perm := make([]int, 0, rank)
	perm = append(perm, 0)
	for axis := 3; axis < rank; axis++ {
		perm = append(perm, axis)
	}
	perm = append(perm, 1, 2)
	return t.Transpose(perm...)
}

// channelsLast restores the measurement layout:
// [b, rest..., h, w] -> [b, h, w, rest...].
func channelsLast(t *tensors.Tensor) *tensors.Tensor {
	if t == nil {
		return nil
	}
	rank := t.Rank()
	if rank < 3 {
		exceptions.Panicf("augment: channels-last permutation requires rank >= 3, got shape %s", t.Shape())
	}
	perm := make([]int, 0, rank)
	perm = append(perm, 0, rank-2, rank-1)
	for axis := 1; axis < rank-2; axis++ {
		perm = append(perm, axis)
	}
	return t.Transpose(perm...)
}
