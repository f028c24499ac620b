// Package transforms defines the transform, generator and scheduler surfaces of
// the augmentation pipeline for measurement (k-space) data.
//
// Transforms come in two physically distinct families, declared by an explicit
// capability tag (Kind):
//
//   - KindGeometric: image-domain transforms whose effect must be mirrored in
//     both the input and the target ("equivariant"). Rotations, flips,
//     translations.
//   - KindPhysics: measurement-domain transforms modeling acquisition physics
//     and artifacts, applied only to the input ("invariant"). Noise, motion.
//
// Deterministic transforms implement Transform directly. Random transforms are
// produced by a Generator, a stateful factory holding its own RNG, one concrete
// Transform per invocation. Generators may expose schedulable parameters (such
// as the application probability) that are annealed over training by Schedulers.
package transforms

import (
	"github.com/medrecon/augment/types/tensors"
)

// Kind is the capability tag of a Transform, deciding which family it belongs
// to. It is declared at transform definition time; the pipeline never inspects
// call signatures or concrete types to classify.
type Kind int

const (
	// KindInvalid is the zero Kind; a transform must declare one of the kinds below.
	KindInvalid Kind = iota

	// KindGeometric tags image-domain transforms that are mirrored in input and
	// target (equivariant).
	KindGeometric

	// KindPhysics tags measurement-domain transforms applied to the input only
	// (invariant).
	KindPhysics
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindGeometric:
		return "geometric"
	case KindPhysics:
		return "physics"
	}
	return "invalid"
}

// Item is an element of an augmentation pipeline declaration: a Transform, a
// Generator or a Composite of those.
type Item interface {
	Name() string
}

// Transform is a stateless, deterministic operation instance. Applying the same
// Transform to the same tensor always yields the same result -- this is what
// allows a consistency loss to re-derive the distortion from the provenance list.
//
// All Apply methods take and return tensors in spatial-last layout (the two
// spatial axes are the trailing axes) and must return new tensors, never
// modifying their input.
type Transform interface {
	Item

	// Kind declares the transform family (see Kind).
	Kind() Kind

	// AcceptsMaps reports whether ApplyKSpace makes use of sensitivity maps.
	// The pipeline only hands maps to transforms that declare it.
	AcceptsMaps() bool

	// ApplyImage applies the transform to an image-domain tensor (image or target).
	ApplyImage(image *tensors.Tensor) *tensors.Tensor

	// ApplyMaps applies the transform to sensitivity maps.
	ApplyMaps(maps *tensors.Tensor) *tensors.Tensor

	// ApplyKSpace applies the transform to measurement-domain data. maps is nil
	// unless AcceptsMaps is true and maps are available.
	ApplyKSpace(kspace, maps *tensors.Tensor) *tensors.Tensor
}

// NoOp is the distinguished do-nothing Transform, returned by generators when a
// random draw decides not to apply. It is recognized by type identity and never
// recorded in provenance lists.
type NoOp struct{}

// Name implements Item.
func (NoOp) Name() string { return "NoOp" }

// Kind implements Transform. NoOp carries no geometric tag.
func (NoOp) Kind() Kind { return KindPhysics }

// AcceptsMaps implements Transform.
func (NoOp) AcceptsMaps() bool { return false }

// ApplyImage implements Transform, returning the input unchanged.
func (NoOp) ApplyImage(image *tensors.Tensor) *tensors.Tensor { return image }

// ApplyMaps implements Transform, returning the input unchanged.
func (NoOp) ApplyMaps(maps *tensors.Tensor) *tensors.Tensor { return maps }

// ApplyKSpace implements Transform, returning the input unchanged.
func (NoOp) ApplyKSpace(kspace, maps *tensors.Tensor) *tensors.Tensor { return kspace }

// IsNoOp returns whether the transform is the distinguished NoOp.
func IsNoOp(t Transform) bool {
	_, ok := t.(NoOp)
	return ok
}

// TransformList is an ordered, append-only record of the concrete transforms
// realized and applied in one pipeline call ("provenance list"). NoOp
// transforms are excluded by construction.
type TransformList struct {
	transforms []Transform
}

// Append records a realized transform. NoOp transforms are silently dropped.
func (l *TransformList) Append(t Transform) {
	if IsNoOp(t) {
		return
	}
	l.transforms = append(l.transforms, t)
}

// Transforms returns the recorded transforms, in application order.
func (l *TransformList) Transforms() []Transform { return l.transforms }

// Len returns the number of recorded transforms.
func (l *TransformList) Len() int { return len(l.transforms) }

// Names returns the names of the recorded transforms, in application order.
func (l *TransformList) Names() []string {
	names := make([]string, 0, len(l.transforms))
	for _, t := range l.transforms {
		names = append(names, t.Name())
	}
	return names
}

// OnDevice is implemented by transforms and generators that hold device-affine
// state (precomputed tensors, RNG state on accelerators). To must be idempotent
// and safe to call before any data is processed.
type OnDevice interface {
	To(device tensors.Device)
}
