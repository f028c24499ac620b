package transforms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmupScheduler(t *testing.T) {
	s := NewWarmupScheduler(ParamP, 100, 200, 0, 0.5)
	assert.Equal(t, ParamP, s.ParamName())

	// Held at `from` through the delay.
	assert.Equal(t, 0.0, s.Value())
	s.Step(100)
	assert.Equal(t, 0.0, s.Value())

	// Halfway through the warmup.
	s.Step(100)
	assert.InDelta(t, 0.25, s.Value(), 1e-12)

	// Saturated at `to`, and stays there.
	s.Step(100)
	assert.Equal(t, 0.5, s.Value())
	s.Step(1000)
	assert.Equal(t, 0.5, s.Value())

	s.Reset()
	assert.Equal(t, int64(0), s.Iters())
	assert.Equal(t, 0.0, s.Value())

	require.Panics(t, func() { s.Step(-1) })
	require.Panics(t, func() { NewWarmupScheduler(ParamP, -1, 10, 0, 1) })
}

func TestWarmupSchedulerMonotone(t *testing.T) {
	s := NewWarmupScheduler(ParamP, 10, 100, 0.1, 0.9)
	prev := s.Value()
	for range 30 {
		s.Step(5)
		v := s.Value()
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	assert.Equal(t, 0.9, prev)
}

func TestMultiStepScheduler(t *testing.T) {
	s := NewMultiStepScheduler(ParamP, []int64{100, 200}, []float64{0.1, 0.2, 0.4})
	assert.Equal(t, 0.1, s.Value())
	s.Step(100)
	assert.Equal(t, 0.2, s.Value())
	s.Step(99)
	assert.Equal(t, 0.2, s.Value())
	s.Step(1)
	assert.Equal(t, 0.4, s.Value())

	require.Panics(t, func() { NewMultiStepScheduler(ParamP, []int64{5, 5}, []float64{1, 2, 3}) })
	require.Panics(t, func() { NewMultiStepScheduler(ParamP, []int64{5}, []float64{1}) })
}

func TestSchedulerIterFn(t *testing.T) {
	s := NewWarmupScheduler(ParamP, 0, 100, 0, 1)
	progress := NewWorkerProgress(4, 8)
	s.SetIterFn(progress.Samples)

	// The internal counter is ignored once an iteration source is attached.
	s.Step(1000)
	assert.Equal(t, int64(0), s.Iters())
	assert.Equal(t, 0.0, s.Value())

	progress.Tick() // 4 samples * 8 workers = 32 globally.
	assert.Equal(t, int64(32), s.Iters())
	assert.InDelta(t, 0.32, s.Value(), 1e-12)
}

func TestWorkerProgress(t *testing.T) {
	progress := NewWorkerProgress(2, 3)
	assert.Equal(t, int64(0), progress.Samples())
	for range 5 {
		progress.Tick()
	}
	assert.Equal(t, int64(30), progress.Samples())

	// Worker counts below one are clamped.
	single := NewWorkerProgress(2, 0)
	single.Tick()
	assert.Equal(t, int64(2), single.Samples())
}
