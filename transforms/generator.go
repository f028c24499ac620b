package transforms

import (
	"math/rand"
	"time"

	"github.com/gomlx/exceptions"

	"github.com/medrecon/augment/types/tensors"
)

// Generator is a stateful factory of Transforms: given optional context data
// (the tensor about to be transformed), it produces one concrete Transform per
// invocation, drawing from its own RNG.
type Generator interface {
	Item

	// BaseKind is the Kind of the transforms this generator produces, used as the
	// classification key.
	BaseKind() Kind

	// GetTransform realizes one concrete Transform. data may be nil; generators
	// use it only to size random parameters (e.g. translation extents).
	GetTransform(data *tensors.Tensor) Transform

	// Reset reinitializes the generator's internal counters and state without
	// discarding its configuration.
	Reset()

	// Seed deterministically reseeds the generator's RNG.
	Seed(seed int64)
}

// Composite is a pipeline item that resolves to an ordered sequence of items,
// e.g. a random choice among generators. The pipeline flattens resolutions
// before classification, so Resolve results are classified exactly like
// directly declared items.
type Composite interface {
	Item

	// Resolve draws one concrete selection: an ordered sequence of items.
	Resolve() []Item

	// Reset reinitializes the composite and all its children.
	Reset()

	// Seed deterministically reseeds the composite's RNG and, transitively, all
	// its children with derived sub-seeds.
	Seed(seed int64)
}

// Schedulable is implemented by generators whose parameters can be annealed
// over training by Schedulers.
type Schedulable interface {
	// Schedulers returns all schedulers attached to this generator.
	Schedulers() []Scheduler

	// RegisterSchedulers attaches schedulers, each driving the parameter it
	// names. A later registration for the same parameter replaces the earlier one.
	RegisterSchedulers(schedulers ...Scheduler)

	// ParamValues returns the current parameter values, keyed by parameter name.
	// With useSchedulers, scheduled parameters report their scheduler-derived
	// value; otherwise the statically configured one.
	ParamValues(useSchedulers bool) map[string]any
}

// RandomGen is the embeddable base of stochastic generators. It owns the
// application probability parameter "p", the generator RNG and the attached
// schedulers.
//
// A generator embedding RandomGen realizes NoOp with probability 1-p on each
// GetTransform call.
type RandomGen struct {
	name       string
	p          float64
	rng        *rand.Rand
	seed       int64
	schedulers []Scheduler
}

// MakeRandomGen initializes the embeddable RandomGen base with the generator
// name and application probability. The RNG starts from a clock-derived seed;
// call Seed for reproducible runs.
func MakeRandomGen(name string, p float64) RandomGen {
	seed := time.Now().UnixNano()
	return RandomGen{
		name: name,
		p:    p,
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Name implements Item.
func (g *RandomGen) Name() string { return g.name }

// P returns the current application probability: the scheduled value if a
// scheduler drives "p", the configured one otherwise.
func (g *RandomGen) P() float64 {
	if s := g.schedulerFor(ParamP); s != nil {
		return s.Value()
	}
	return g.p
}

// SetP sets the configured application probability.
func (g *RandomGen) SetP(p float64) { g.p = p }

// Rand returns the generator's RNG.
func (g *RandomGen) Rand() *rand.Rand { return g.rng }

// Draw samples the application decision: true with probability P().
func (g *RandomGen) Draw() bool {
	return g.rng.Float64() < g.P()
}

// DrawSeed samples a seed for a realized transform's deterministic noise.
func (g *RandomGen) DrawSeed() int64 { return g.rng.Int63() }

// Seed implements Generator, reseeding the RNG deterministically.
func (g *RandomGen) Seed(seed int64) {
	g.seed = seed
	g.rng = rand.New(rand.NewSource(seed))
}

// Reset implements Generator: the RNG restarts from the last seed and scheduler
// counters are rewound; the configuration is kept.
func (g *RandomGen) Reset() {
	g.rng = rand.New(rand.NewSource(g.seed))
	for _, s := range g.schedulers {
		s.Reset()
	}
}

// Schedulers implements Schedulable.
func (g *RandomGen) Schedulers() []Scheduler { return g.schedulers }

// RegisterSchedulers implements Schedulable.
func (g *RandomGen) RegisterSchedulers(schedulers ...Scheduler) {
	for _, s := range schedulers {
		if prev := g.schedulerFor(s.ParamName()); prev != nil {
			exceptions.Panicf("generator %q already has a scheduler for parameter %q", g.name, s.ParamName())
		}
		g.schedulers = append(g.schedulers, s)
	}
}

// ParamValues implements Schedulable.
func (g *RandomGen) ParamValues(useSchedulers bool) map[string]any {
	p := g.p
	if useSchedulers {
		p = g.P()
	}
	return map[string]any{ParamP: p}
}

func (g *RandomGen) schedulerFor(param string) Scheduler {
	for _, s := range g.schedulers {
		if s.ParamName() == param {
			return s
		}
	}
	return nil
}

// ParamP is the name of the application probability parameter exposed by
// stochastic generators.
const ParamP = "p"

// RandomChoice is a composite that, on each pipeline call, randomly draws one
// of its choices, where each choice is an ordered sequence of items. The drawn
// sequence is flattened into the pipeline's classification pass.
type RandomChoice struct {
	choices [][]Item
	rng     *rand.Rand
	seed    int64
}

// NewRandomChoice creates a composite choosing uniformly among the given items,
// one per call. Use AddSequence for choices made of several items.
func NewRandomChoice(choices ...Item) *RandomChoice {
	seed := time.Now().UnixNano()
	c := &RandomChoice{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
	for _, item := range choices {
		c.choices = append(c.choices, []Item{item})
	}
	return c
}

// AddSequence adds a choice made of an ordered sequence of items, applied
// together when drawn.
func (c *RandomChoice) AddSequence(items ...Item) *RandomChoice {
	c.choices = append(c.choices, items)
	return c
}

// Name implements Item.
func (c *RandomChoice) Name() string { return "RandomChoice" }

// Resolve implements Composite, drawing one choice.
func (c *RandomChoice) Resolve() []Item {
	if len(c.choices) == 0 {
		return nil
	}
	return c.choices[c.rng.Intn(len(c.choices))]
}

// Seed implements Composite: the composite's own RNG and every child generator
// are reseeded with seeds derived from the given root seed, so a full run is
// reproducible from one value.
func (c *RandomChoice) Seed(seed int64) {
	c.seed = seed
	c.rng = rand.New(rand.NewSource(seed))
	index := 0
	for _, choice := range c.choices {
		for _, item := range choice {
			seedItem(item, DeriveSeed(seed, index))
			index++
		}
	}
}

// Reset implements Composite.
func (c *RandomChoice) Reset() {
	c.rng = rand.New(rand.NewSource(c.seed))
	for _, choice := range c.choices {
		for _, item := range choice {
			switch child := item.(type) {
			case Generator:
				child.Reset()
			case Composite:
				child.Reset()
			}
		}
	}
}

// Schedulers implements Schedulable, aggregating the schedulers of all children.
func (c *RandomChoice) Schedulers() []Scheduler {
	var all []Scheduler
	for _, choice := range c.choices {
		for _, item := range choice {
			if s, ok := item.(Schedulable); ok {
				all = append(all, s.Schedulers()...)
			}
		}
	}
	return all
}

// RegisterSchedulers implements Schedulable. Schedulers cannot be attached to
// the composite itself, only to its children.
func (c *RandomChoice) RegisterSchedulers(schedulers ...Scheduler) {
	if len(schedulers) > 0 {
		exceptions.Panicf("RandomChoice does not take schedulers directly, register them on its children")
	}
}

// ParamValues implements Schedulable, flattening children parameters with
// "<child>." prefixes.
func (c *RandomChoice) ParamValues(useSchedulers bool) map[string]any {
	params := make(map[string]any)
	for _, choice := range c.choices {
		for _, item := range choice {
			s, ok := item.(Schedulable)
			if !ok {
				continue
			}
			for k, v := range s.ParamValues(useSchedulers) {
				params[item.Name()+"."+k] = v
			}
		}
	}
	return params
}

// SeedGenerators deterministically reseeds every generator and composite in
// items: each receives a sub-seed derived from the root seed and its position,
// so reseeding never depends on shared global RNG state.
func SeedGenerators(items []Item, seed int64) {
	for i, item := range items {
		seedItem(item, DeriveSeed(seed, i))
	}
}

func seedItem(item Item, seed int64) {
	switch g := item.(type) {
	case Generator:
		g.Seed(seed)
	case Composite:
		g.Seed(seed)
	}
}

// DeriveSeed combines a root seed with an index into an independent sub-seed,
// using a splitmix64-style finalizer.
func DeriveSeed(root int64, index int) int64 {
	z := uint64(root) + uint64(index+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}
