package transforms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrecon/augment/types/tensors"
)

// stubGen is a minimal stochastic generator for exercising the RandomGen base.
type stubGen struct {
	RandomGen
}

func newStubGen(p float64) *stubGen {
	return &stubGen{RandomGen: MakeRandomGen("Stub", p)}
}

func (g *stubGen) BaseKind() Kind { return KindPhysics }

func (g *stubGen) GetTransform(data *tensors.Tensor) Transform {
	if !g.Draw() {
		return NoOp{}
	}
	return stubTransform{seed: g.DrawSeed()}
}

type stubTransform struct {
	seed int64
}

func (stubTransform) Name() string                              { return "Stub" }
func (stubTransform) Kind() Kind                                { return KindPhysics }
func (stubTransform) AcceptsMaps() bool                         { return false }
func (stubTransform) ApplyImage(t *tensors.Tensor) *tensors.Tensor { return t }
func (stubTransform) ApplyMaps(t *tensors.Tensor) *tensors.Tensor  { return t }
func (s stubTransform) ApplyKSpace(kspace, maps *tensors.Tensor) *tensors.Tensor {
	return kspace
}

func drawSequence(g Generator, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = !IsNoOp(g.GetTransform(nil))
	}
	return out
}

func TestRandomGenSeedDeterminism(t *testing.T) {
	a, b := newStubGen(0.5), newStubGen(0.5)
	a.Seed(7)
	b.Seed(7)
	assert.Equal(t, drawSequence(a, 100), drawSequence(b, 100))

	// Reset rewinds to the same seed.
	a.Reset()
	assert.Equal(t, drawSequence(b, 100), drawSequence(a, 100))

	// Different seeds diverge.
	b.Seed(8)
	assert.NotEqual(t, drawSequence(a, 100), drawSequence(b, 100))
}

func TestRandomGenProbabilityExtremes(t *testing.T) {
	always := newStubGen(1)
	never := newStubGen(0)
	for range 50 {
		assert.False(t, IsNoOp(always.GetTransform(nil)))
		assert.True(t, IsNoOp(never.GetTransform(nil)))
	}
}

func TestRandomGenScheduledP(t *testing.T) {
	g := newStubGen(0.5)
	s := NewWarmupScheduler(ParamP, 0, 100, 0, 0.5)
	g.RegisterSchedulers(s)

	// The scheduled value starts at zero, so nothing triggers.
	assert.Equal(t, 0.0, g.P())
	for range 50 {
		assert.True(t, IsNoOp(g.GetTransform(nil)))
	}

	s.Step(100)
	assert.Equal(t, 0.5, g.P())
	assert.Equal(t, map[string]any{ParamP: 0.5}, g.ParamValues(true))
	// Without schedulers, the configured value is reported.
	assert.Equal(t, map[string]any{ParamP: 0.5}, g.ParamValues(false))

	// Only one scheduler per parameter.
	require.Panics(t, func() {
		g.RegisterSchedulers(NewWarmupScheduler(ParamP, 0, 10, 0, 1))
	})
}

func TestRandomChoice(t *testing.T) {
	a, b := newStubGen(1), newStubGen(1)
	a.RandomGen.name = "A"
	b.RandomGen.name = "B"
	c := NewRandomChoice(a, b)
	c.Seed(3)

	counts := map[string]int{}
	for range 200 {
		items := c.Resolve()
		require.Len(t, items, 1)
		counts[items[0].Name()]++
	}
	// Both alternatives should be drawn.
	assert.Positive(t, counts["A"])
	assert.Positive(t, counts["B"])

	// Reseeding reproduces the draw sequence.
	c.Seed(3)
	first := make([]string, 20)
	for i := range first {
		first[i] = c.Resolve()[0].Name()
	}
	c.Reset()
	for i := range first {
		assert.Equal(t, first[i], c.Resolve()[0].Name())
	}

	require.Panics(t, func() {
		c.RegisterSchedulers(NewWarmupScheduler(ParamP, 0, 10, 0, 1))
	})
}

func TestRandomChoiceSequence(t *testing.T) {
	a, b := newStubGen(1), newStubGen(1)
	c := (&RandomChoice{}).AddSequence(a, b)
	c.Seed(1)
	items := c.Resolve()
	require.Len(t, items, 2)
}

func TestRandomChoiceParamValues(t *testing.T) {
	a := newStubGen(0.25)
	a.RandomGen.name = "A"
	c := NewRandomChoice(a)
	params := c.ParamValues(false)
	assert.Equal(t, map[string]any{"A.p": 0.25}, params)
}

func TestDeriveSeed(t *testing.T) {
	// Sub-seeds are stable and decorrelated per index.
	assert.Equal(t, DeriveSeed(42, 0), DeriveSeed(42, 0))
	assert.NotEqual(t, DeriveSeed(42, 0), DeriveSeed(42, 1))
	assert.NotEqual(t, DeriveSeed(42, 0), DeriveSeed(43, 0))
}

func TestSeedGenerators(t *testing.T) {
	a1, a2 := newStubGen(0.5), newStubGen(0.5)
	b1, b2 := newStubGen(0.5), newStubGen(0.5)
	SeedGenerators([]Item{a1, b1}, 11)
	SeedGenerators([]Item{a2, b2}, 11)
	assert.Equal(t, drawSequence(a1, 50), drawSequence(a2, 50))
	assert.Equal(t, drawSequence(b1, 50), drawSequence(b2, 50))
}

func TestTransformList(t *testing.T) {
	list := &TransformList{}
	list.Append(stubTransform{})
	list.Append(NoOp{}) // elided
	list.Append(stubTransform{})
	assert.Equal(t, 2, list.Len())
	assert.Equal(t, []string{"Stub", "Stub"}, list.Names())
}
