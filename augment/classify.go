package augment

import (
	"github.com/gomlx/exceptions"

	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/types/tensors"
)

// resolveItems expands composites ("choice among generators") into their drawn
// selections, recursively, returning a flat list of transforms and generators.
// This runs once per pipeline call, before classification, so list-valued
// resolutions are classified exactly like directly declared items.
func resolveItems(items []transforms.Item) []transforms.Item {
	resolved := make([]transforms.Item, 0, len(items))
	for _, item := range items {
		if composite, ok := item.(transforms.Composite); ok {
			resolved = append(resolved, resolveItems(composite.Resolve())...)
			continue
		}
		resolved = append(resolved, item)
	}
	return resolved
}

// Classify partitions a flat list of transforms and generators into the
// equivariant (geometric, image-domain) and invariant (physics, measurement-
// domain) families, preserving relative order within each family.
//
// A generator is classified by the declared kind of the transforms it
// produces; a bare transform by its own kind. An item that is neither --
// e.g. an unresolved composite -- indicates a misbuilt pipeline and aborts
// with a panic.
func Classify(items []transforms.Item) (equivariant, invariant []transforms.Item) {
	for _, item := range items {
		var kind transforms.Kind
		switch it := item.(type) {
		case transforms.Transform:
			kind = it.Kind()
		case transforms.Generator:
			kind = it.BaseKind()
		default:
			exceptions.Panicf("augment: pipeline item %q (%T) is neither a Transform nor a Generator",
				item.Name(), item)
		}
		if kind == transforms.KindGeometric {
			equivariant = append(equivariant, item)
		} else {
			invariant = append(invariant, item)
		}
	}
	return
}

// realize resolves a classified item to a concrete Transform: generators draw
// one, transforms are already concrete. data is the tensor about to be
// transformed, handed to generators as sizing context.
func realize(item transforms.Item, data *tensors.Tensor) transforms.Transform {
	switch it := item.(type) {
	case transforms.Transform:
		return it
	case transforms.Generator:
		return it.GetTransform(data)
	}
	// Classify already rejected anything else.
	exceptions.Panicf("augment: cannot realize pipeline item %q (%T)", item.Name(), item)
	return nil
}
