// Package scheduler drives emulated components from the simulation's base
// tick. Each registered component carries a prescaler and runs on every
// tick whose count is a multiple of it.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Component is anything with a periodic main routine. count is the tick
// counter value at which the routine runs.
type Component interface {
	MainRoutine(count int64)
}

// PowerControllable components report whether their power port is on.
// Components that do not implement it are treated as always powered.
type PowerControllable interface {
	IsPowerOn() bool
}

// PowerOffHandler components run PowerOffRoutine instead of MainRoutine on
// a due tick while powered off, typically to zero their outputs.
type PowerOffHandler interface {
	PowerOffRoutine()
}

// Named components are labelled by name in logs and metrics.
type Named interface {
	Name() string
}

// ExecutionRecorder observes scheduled executions. Implemented by the
// Prometheus scheduler collector.
type ExecutionRecorder interface {
	ObserveExecution(name string, poweredOn bool, duration time.Duration)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder attaches an execution recorder.
func WithRecorder(r ExecutionRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

type binding struct {
	component Component
	prescaler int64
}

// Scheduler owns the tick counter and the component prescaler table.
// The counter never decrements and is never reset.
type Scheduler struct {
	mu       sync.Mutex
	count    int64
	bindings []binding
	recorder ExecutionRecorder
}

// New creates a scheduler with counter zero and no components.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds c with the given prescaler. The component is not owned:
// the caller keeps it alive and unregisters it before discarding it.
func (s *Scheduler) Register(c Component, prescaler int) error {
	if c == nil {
		return fmt.Errorf("scheduler: nil component: %w", model.ErrInvalidConfiguration)
	}
	if prescaler < 1 {
		return fmt.Errorf("scheduler: prescaler must be >= 1, got %d for %s: %w", prescaler, nameOf(c), model.ErrInvalidConfiguration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bindings {
		if b.component == c {
			return fmt.Errorf("scheduler: %s already registered: %w", nameOf(c), model.ErrInvalidConfiguration)
		}
	}
	s.bindings = append(s.bindings, binding{component: c, prescaler: int64(prescaler)})
	return nil
}

// Unregister removes c from the table.
func (s *Scheduler) Unregister(c Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.bindings {
		if b.component == c {
			s.bindings = append(s.bindings[:i], s.bindings[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("scheduler: %s not registered: %w", nameOf(c), model.ErrUnknownEntity)
}

// Tick advances the counter by one and runs every component whose
// prescaler divides the new count, in registration order.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	s.count++
	count := s.count
	due := make([]Component, 0, len(s.bindings))
	for _, b := range s.bindings {
		if count%b.prescaler == 0 {
			due = append(due, b.component)
		}
	}
	recorder := s.recorder
	s.mu.Unlock()

	// Routines run outside the lock so a component may register or
	// unregister others.
	for _, c := range due {
		start := time.Now()
		on := isPowerOn(c)
		if on {
			c.MainRoutine(count)
		} else if h, ok := c.(PowerOffHandler); ok {
			h.PowerOffRoutine()
		}
		if recorder != nil {
			recorder.ObserveExecution(nameOf(c), on, time.Since(start))
		}
	}
}

// Count returns the current tick counter.
func (s *Scheduler) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Len returns the number of registered components.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bindings)
}

func isPowerOn(c Component) bool {
	if p, ok := c.(PowerControllable); ok {
		return p.IsPowerOn()
	}
	return true
}

func nameOf(c Component) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", c)
}
