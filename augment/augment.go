// Package augment orchestrates physics-aware data augmentation for MRI
// reconstruction training. It takes multi-coil k-space, sensitivity maps and
// an optional ground-truth image, runs a configured pipeline of geometric
// (equivariant) and physics (invariant) transforms, and returns a consistent
// (k-space, maps, target) triple: geometric transforms are mirrored into the
// target and maps so the supervision stays aligned, physics transforms
// corrupt only the network input.
//
// Build an Augmentor with New (or FromConfig), then call Apply per batch:
//
//	aug := augment.New(
//		builtin.NewRandomFlip(0.5),
//		builtin.NewRandomNoise(0.3, 0.01, 0.1),
//	)
//	res, _, _ := aug.Apply(kspace).Maps(maps).Target(target).Done()
//
// Apply is safe for a single goroutine; share progress across loader workers
// with transforms.WorkerProgress.
package augment

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/medrecon/augment/forward"
	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/types/tensors"
)

// Augmentor runs an augmentation pipeline over batches of k-space data.
// Configure it with the chainable setters, then call Apply per batch.
type Augmentor struct {
	items []transforms.Item

	augSensitivityMaps          bool
	applyMaskAfterInvariantTfms bool

	progress *transforms.WorkerProgress
	device   tensors.Device
}

// New builds an Augmentor over the given pipeline items, in order. Items are
// transforms (applied always), generators (applied at random) or composites
// (a draw among alternatives). Sensitivity-map augmentation defaults to on.
func New(items ...transforms.Item) *Augmentor {
	return &Augmentor{
		items:              items,
		augSensitivityMaps: true,
		device:             tensors.CPU,
	}
}

// AugSensitivityMaps controls whether geometric transforms are also applied
// to the sensitivity maps. Disable only when downstream estimates maps from
// the augmented k-space itself.
func (a *Augmentor) AugSensitivityMaps(enabled bool) *Augmentor {
	a.augSensitivityMaps = enabled
	return a
}

// ApplyMaskAfterInvariantTfms re-applies the undersampling mask after the
// physics stage, zeroing any signal the physics transforms leaked into
// unacquired locations. Set this when using transforms such as motion that
// spread energy across k-space.
func (a *Augmentor) ApplyMaskAfterInvariantTfms(enabled bool) *Augmentor {
	a.applyMaskAfterInvariantTfms = enabled
	return a
}

// WithProgress attaches a shared multi-worker progress counter: every Apply
// ticks it, and schedulers attached to this Augmentor should read their
// sample count from it (see transforms.Scheduler.SetIterFn).
func (a *Augmentor) WithProgress(progress *transforms.WorkerProgress) *Augmentor {
	a.progress = progress
	return a
}

// Seed reseeds every generator in the pipeline deterministically from seed.
// Distinct pipeline positions receive decorrelated sub-seeds, so two
// Augmentors built alike and seeded alike produce identical augmentations.
func (a *Augmentor) Seed(seed int64) *Augmentor {
	transforms.SeedGenerators(a.items, seed)
	return a
}

// Reset restores every generator and scheduler to its initial state, keeping
// the last configured seeds.
func (a *Augmentor) Reset() {
	for _, item := range a.items {
		switch it := item.(type) {
		case transforms.Generator:
			it.Reset()
		case transforms.Composite:
			it.Reset()
		}
	}
}

// To records the device tensors should live on and forwards it to every
// device-aware pipeline item. Only tensors.CPU is currently implemented.
func (a *Augmentor) To(device tensors.Device) *Augmentor {
	a.device = device
	for _, item := range a.items {
		if od, ok := item.(transforms.OnDevice); ok {
			od.To(device)
		}
	}
	return a
}

// Schedulers returns all schedulers registered on pipeline items, for
// inspection or for wiring a shared iteration source.
func (a *Augmentor) Schedulers() []transforms.Scheduler {
	var out []transforms.Scheduler
	for _, item := range a.items {
		if s, ok := item.(transforms.Schedulable); ok {
			out = append(out, s.Schedulers()...)
		}
	}
	return out
}

// TfmGenParams reports the current parameter values of every schedulable
// pipeline item, keyed "<generator>/<param>", with scheduled parameters
// evaluated at the current sample count. With scalarsOnly, non-numeric
// values (ranges, axis lists) are dropped, which suits metric logging.
func (a *Augmentor) TfmGenParams(scalarsOnly bool) map[string]any {
	out := make(map[string]any)
	for _, item := range a.items {
		s, ok := item.(transforms.Schedulable)
		if !ok {
			continue
		}
		for param, value := range s.ParamValues(true) {
			if scalarsOnly {
				switch value.(type) {
				case float64, float32, int, int64:
				default:
					continue
				}
			}
			out[item.Name()+"/"+param] = value
		}
	}
	return out
}

// Result is the output of one Apply call. Maps and Target mirror any
// geometric augmentation; Mean and Std are present only when a normalizer
// ran, as scalar tensors suitable for undoing the normalization.
type Result struct {
	KSpace *tensors.Tensor
	Maps   *tensors.Tensor
	Target *tensors.Tensor
	Mean   *tensors.Tensor
	Std    *tensors.Tensor
}

// ApplyOptions collects the per-batch inputs for one pipeline run. Build it
// with Augmentor.Apply, chain setters, and finish with Done.
type ApplyOptions struct {
	aug *Augmentor

	kspace, maps, target *tensors.Tensor
	mask                 *tensors.Tensor
	maskFromKSpace       bool
	maskGen              MaskGenFunc
	normalizer           Normalizer
	skipTransforms       bool
	maskAfterInvariant   *bool
}

// Apply starts a pipeline run on a batch of k-space, shaped
// [batch, height, width, coils]. Chain the setters for maps, target, mask
// handling and normalization, then call Done.
func (a *Augmentor) Apply(kspace *tensors.Tensor) *ApplyOptions {
	if kspace == nil {
		exceptions.Panicf("augment: Apply requires k-space input")
	}
	if kspace.Rank() != 4 {
		exceptions.Panicf("augment: k-space must be shaped [batch, height, width, coils], got %s", kspace.Shape())
	}
	return &ApplyOptions{aug: a, kspace: kspace}
}

// Maps provides sensitivity maps shaped [batch, height, width, coils, mapSets].
// Required whenever the pipeline needs the image domain: geometric
// transforms, normalization or mask generation.
func (opts *ApplyOptions) Maps(maps *tensors.Tensor) *ApplyOptions {
	if maps != nil && maps.Rank() != 5 {
		exceptions.Panicf("augment: maps must be shaped [batch, height, width, coils, mapSets], got %s", maps.Shape())
	}
	opts.maps = maps
	return opts
}

// Target provides the ground-truth coil-combined image, shaped
// [batch, height, width, mapSets]. Geometric transforms are mirrored into it.
func (opts *ApplyOptions) Target(target *tensors.Tensor) *ApplyOptions {
	opts.target = target
	return opts
}

// Mask provides an explicit undersampling mask, broadcastable against
// k-space in the measurement layout. It seeds the SENSE adjoint weighting
// and the post-physics re-mask.
func (opts *ApplyOptions) Mask(mask *tensors.Tensor) *ApplyOptions {
	opts.mask = mask
	return opts
}

// MaskFromKSpace infers the undersampling mask from the zero pattern of the
// input k-space. Ignored when an explicit Mask is given.
func (opts *ApplyOptions) MaskFromKSpace() *ApplyOptions {
	opts.maskFromKSpace = true
	return opts
}

// MaskGen installs a mask generator that re-undersamples the (possibly
// re-acquired) k-space after the geometric stage. The generated mask
// replaces any earlier mask for the rest of the run.
func (opts *ApplyOptions) MaskGen(gen MaskGenFunc) *ApplyOptions {
	opts.maskGen = gen
	return opts
}

// Normalizer installs an intensity normalizer, run after mask generation and
// before the physics stage.
func (opts *ApplyOptions) Normalizer(n Normalizer) *ApplyOptions {
	opts.normalizer = n
	return opts
}

// SkipTransforms bypasses the transform stages while keeping mask
// generation and normalization active. Used for unaugmented passes through
// the same code path, e.g. validation.
func (opts *ApplyOptions) SkipTransforms() *ApplyOptions {
	opts.skipTransforms = true
	return opts
}

// MaskAfterInvariantTfms overrides the Augmentor-level re-mask setting for
// this run only.
func (opts *ApplyOptions) MaskAfterInvariantTfms(enabled bool) *ApplyOptions {
	opts.maskAfterInvariant = &enabled
	return opts
}

// Done runs the pipeline and returns the augmented sample plus the realized
// transforms of each stage, in application order, for provenance logging.
//
// The run proceeds as: resolve composites and classify items; reconstruct
// the image through the SENSE adjoint when image-domain work is needed;
// apply geometric transforms to image, target and (optionally) maps in the
// spatial-last layout; re-acquire k-space through the SENSE forward model
// when anything geometric happened; regenerate the mask; normalize; apply
// physics transforms to k-space; optionally re-mask; and finally advance
// schedulers by the realized batch size.
func (opts *ApplyOptions) Done() (Result, *transforms.TransformList, *transforms.TransformList) {
	a := opts.aug
	kspace, maps, target, mask := opts.kspace, opts.maps, opts.target, opts.mask
	if mask == nil && opts.maskFromKSpace {
		mask = kspace.NonZeroMask()
	}
	remask := a.applyMaskAfterInvariantTfms
	if opts.maskAfterInvariant != nil {
		remask = *opts.maskAfterInvariant
	}

	var equivariant, invariant []transforms.Item
	if !opts.skipTransforms {
		equivariant, invariant = Classify(resolveItems(a.items))
	}
	appliedEq := &transforms.TransformList{}
	appliedInv := &transforms.TransformList{}

	// The image domain is materialized only when something consumes it.
	needImage := opts.normalizer != nil || len(equivariant) > 0 || opts.maskGen != nil
	var image *tensors.Tensor
	if needImage {
		if maps == nil {
			exceptions.Panicf("augment: sensitivity maps are required for geometric transforms, normalization or mask generation")
		}
		image = forward.NewSenseModel(maps, mask).Adjoint(kspace)
	}

	if len(equivariant) > 0 {
		image = spatialLast(image)
		target = spatialLast(target)
		maps = spatialLast(maps)
		for _, item := range equivariant {
			tfm := realize(item, image)
			if transforms.IsNoOp(tfm) {
				continue
			}
			image = tfm.ApplyImage(image)
			if target != nil {
				target = tfm.ApplyImage(target)
			}
			if a.augSensitivityMaps {
				maps = tfm.ApplyMaps(maps)
			}
			appliedEq.Append(tfm)
		}
		image = channelsLast(image)
		target = channelsLast(target)
		maps = channelsLast(maps)
		if appliedEq.Len() > 0 {
			// Re-acquire: the geometric stage edited the image, so k-space
			// is re-simulated from it, fully sampled. Undersampling is
			// reintroduced only by the mask generator or the explicit
			// post-physics re-mask.
			kspace = forward.NewSenseModel(maps, nil).Forward(image)
		}
	}

	if opts.maskGen != nil {
		kspace, mask = opts.maskGen(kspace)
		image = forward.NewSenseModel(maps, mask).Adjoint(kspace)
	}

	var mean, std *tensors.Tensor
	if opts.normalizer != nil {
		n := opts.normalizer.Normalize(kspace, image, target, mask)
		kspace, mean, std = n.KSpace, n.Mean, n.Std
		if n.Target != nil {
			target = n.Target
		}
	}

	if len(invariant) > 0 {
		k := spatialLast(kspace)
		m := spatialLast(maps)
		for _, item := range invariant {
			tfm := realize(item, k)
			if transforms.IsNoOp(tfm) {
				continue
			}
			if tfm.AcceptsMaps() {
				k = tfm.ApplyKSpace(k, m)
			} else {
				k = tfm.ApplyKSpace(k, nil)
			}
			appliedInv.Append(tfm)
		}
		kspace = channelsLast(k)
		if remask {
			if mask == nil {
				exceptions.Panicf("augment: re-masking after physics transforms requires a mask; provide one or use MaskFromKSpace")
			}
			kspace = tensors.Mul(kspace, mask)
		}
	}

	for _, s := range a.Schedulers() {
		s.Step(kspace.Dim(0))
	}
	if a.progress != nil {
		a.progress.Tick()
	}
	klog.V(2).Infof("augment: batch=%d applied equivariant=%v invariant=%v",
		kspace.Dim(0), appliedEq.Names(), appliedInv.Names())

	return Result{KSpace: kspace, Maps: maps, Target: target, Mean: mean, Std: std}, appliedEq, appliedInv
}
