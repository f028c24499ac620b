package transforms

import (
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// This file implements parameter schedulers: pure functions of a training
// progress counter to a scalar parameter value, used to anneal stochastic
// transform behavior (typically the application probability "p") over training.
//
// Progress is counted in samples seen, not pipeline calls, so schedules remain
// comparable across batch sizes: the pipeline advances every reachable
// scheduler once per call by the realized batch size.

// Scheduler maps a progress counter to a parameter value.
type Scheduler interface {
	// ParamName is the generator parameter this scheduler drives.
	ParamName() string

	// Step advances the progress counter by n samples. n must be non-negative.
	Step(n int)

	// Iters returns the current progress, in samples. If an iteration function
	// was set (see SetIterFn), it is consulted instead of the internal counter.
	Iters() int64

	// Value returns the parameter value for the current progress. It is a
	// deterministic function of Iters() for a fixed schedule definition.
	Value() float64

	// Reset rewinds the internal progress counter to zero.
	Reset()

	// SetIterFn makes the scheduler read progress from an external collaborator
	// instead of its internal counter. The function must be safe for lock-free
	// concurrent calls; it is owned by the caller (see WorkerProgress).
	SetIterFn(fn func() int64)
}

// baseScheduler carries the progress counter and parameter name shared by the
// concrete schedules.
type baseScheduler struct {
	param   string
	counter int64
	iterFn  func() int64
}

func (s *baseScheduler) ParamName() string { return s.param }

func (s *baseScheduler) Step(n int) {
	if n < 0 {
		exceptions.Panicf("Scheduler.Step: negative step %d", n)
	}
	s.counter += int64(n)
}

func (s *baseScheduler) Iters() int64 {
	if s.iterFn != nil {
		return s.iterFn()
	}
	return s.counter
}

func (s *baseScheduler) Reset() { s.counter = 0 }

func (s *baseScheduler) SetIterFn(fn func() int64) { s.iterFn = fn }

// WarmupScheduler linearly ramps a parameter from `from` to `to` over
// warmupSamples, after holding `from` for delaySamples.
type WarmupScheduler struct {
	baseScheduler
	delay, warmup int64
	from, to      float64
}

// NewWarmupScheduler creates a linear warmup schedule for the named parameter.
// delaySamples and warmupSamples are expressed in samples seen.
func NewWarmupScheduler(param string, delaySamples, warmupSamples int64, from, to float64) *WarmupScheduler {
	if delaySamples < 0 || warmupSamples < 0 {
		exceptions.Panicf("NewWarmupScheduler(%q): negative delay (%d) or warmup (%d)",
			param, delaySamples, warmupSamples)
	}
	return &WarmupScheduler{
		baseScheduler: baseScheduler{param: param},
		delay:         delaySamples,
		warmup:        warmupSamples,
		from:          from,
		to:            to,
	}
}

// Value implements Scheduler.
func (s *WarmupScheduler) Value() float64 {
	iters := s.Iters()
	switch {
	case iters <= s.delay:
		return s.from
	case iters >= s.delay+s.warmup:
		return s.to
	}
	return s.from + (s.to-s.from)*float64(iters-s.delay)/float64(s.warmup)
}

// MultiStepScheduler holds a piecewise-constant parameter value, switching at
// each milestone: values[i] is used while progress is below milestones[i], and
// values[len(milestones)] afterwards.
type MultiStepScheduler struct {
	baseScheduler
	milestones []int64
	values     []float64
}

// NewMultiStepScheduler creates a piecewise-constant schedule. milestones must
// be strictly increasing and len(values) == len(milestones)+1.
func NewMultiStepScheduler(param string, milestones []int64, values []float64) *MultiStepScheduler {
	if len(values) != len(milestones)+1 {
		exceptions.Panicf("NewMultiStepScheduler(%q): %d milestones need %d values, got %d",
			param, len(milestones), len(milestones)+1, len(values))
	}
	for i := 1; i < len(milestones); i++ {
		if milestones[i] <= milestones[i-1] {
			exceptions.Panicf("NewMultiStepScheduler(%q): milestones must be strictly increasing, got %v",
				param, milestones)
		}
	}
	return &MultiStepScheduler{
		baseScheduler: baseScheduler{param: param},
		milestones:    milestones,
		values:        values,
	}
}

// Value implements Scheduler.
func (s *MultiStepScheduler) Value() float64 {
	iters := s.Iters()
	for i, m := range s.milestones {
		if iters < m {
			return s.values[i]
		}
	}
	return s.values[len(s.milestones)]
}

// WorkerProgress is a shared training-progress collaborator for multi-worker
// data loading. Each worker's pipeline instance sees only a fraction of the
// batches, so its internal scheduler counters under-count global progress;
// WorkerProgress extrapolates samples seen globally from the ticks of one
// worker.
//
// It is owned by the caller, ticked once per pipeline call, and safe to query
// concurrently without locks.
type WorkerProgress struct {
	batchSize  int
	numWorkers int
	ticks      atomic.Int64
}

// NewWorkerProgress creates a progress collaborator for the given realized
// batch size and worker count.
func NewWorkerProgress(batchSize, numWorkers int) *WorkerProgress {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerProgress{batchSize: batchSize, numWorkers: numWorkers}
}

// Tick records one processed batch.
func (w *WorkerProgress) Tick() { w.ticks.Add(1) }

// Samples estimates the samples seen across all workers.
func (w *WorkerProgress) Samples() int64 {
	return w.ticks.Load() * int64(w.batchSize) * int64(w.numWorkers)
}
