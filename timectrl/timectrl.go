package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// SimClock is the read side of the simulation clock.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Count returns the number of base ticks taken so far.
	Count() int64
}

// Mode describes how the TimeController paces simulation time.
type Mode int

const (
	// RealTime advances one tick per wall-clock tick.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// Intervals are the propagation cadences in base ticks.
type Intervals struct {
	Attitude int
	Orbit    int
	Log      int
}

// Flags tell collaborators which propagations fall due on a tick.
type Flags struct {
	AttitudeDue bool
	OrbitDue    bool
	LogDue      bool
}

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode
	Intervals Intervals

	count       int64
	currentTime time.Time

	listeners []func(time.Time, Flags)
}

// NewTimeController constructs a controller. Tick and every interval must
// be positive.
func NewTimeController(start time.Time, tick time.Duration, mode Mode, intervals Intervals) (*TimeController, error) {
	if tick <= 0 {
		return nil, fmt.Errorf("timectrl: tick must be positive, got %s: %w", tick, model.ErrInvalidConfiguration)
	}
	if intervals.Attitude < 1 || intervals.Orbit < 1 || intervals.Log < 1 {
		return nil, fmt.Errorf("timectrl: propagation intervals must be >= 1, got %+v: %w", intervals, model.ErrInvalidConfiguration)
	}
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		Intervals:   intervals,
		currentTime: start,
	}, nil
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Count returns the number of ticks taken. Implements SimClock.
func (tc *TimeController) Count() int64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.count
}

// Elapsed returns the simulation time since StartTime.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return time.Duration(tc.count) * tc.Tick
}

// AttitudeStep returns the attitude propagation interval in seconds.
func (tc *TimeController) AttitudeStep() float64 {
	return (time.Duration(tc.Intervals.Attitude) * tc.Tick).Seconds()
}

// OrbitStep returns the orbit propagation interval in seconds.
func (tc *TimeController) OrbitStep() float64 {
	return (time.Duration(tc.Intervals.Orbit) * tc.Tick).Seconds()
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time, Flags)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances the clock by one tick, notifies listeners and returns the
// propagation flags for the new tick.
func (tc *TimeController) Step() (time.Time, Flags) {
	tc.mu.Lock()
	tc.count++
	n := tc.count
	tc.currentTime = tc.StartTime.Add(time.Duration(n) * tc.Tick)
	now := tc.currentTime
	flags := Flags{
		AttitudeDue: n%int64(tc.Intervals.Attitude) == 0,
		OrbitDue:    n%int64(tc.Intervals.Orbit) == 0,
		LogDue:      n%int64(tc.Intervals.Log) == 0,
	}
	listeners := append(([]func(time.Time, Flags))(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now, flags)
	}
	return now, flags
}

// Run steps the clock steps times (forever when steps <= 0), calling fn
// after each tick. RealTime mode paces ticks with a wall-clock ticker.
// Run stops at the first error from fn or when ctx is done.
func (tc *TimeController) Run(ctx context.Context, steps int64, fn func(time.Time, Flags) error) error {
	var tick <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := int64(0); steps <= 0 || i < steps; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		now, flags := tc.Step()
		if fn == nil {
			continue
		}
		if err := fn(now, flags); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the controller in a separate goroutine. The returned channel
// receives Run's result and is then closed.
func (tc *TimeController) Start(ctx context.Context, steps int64, fn func(time.Time, Flags) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- tc.Run(ctx, steps, fn)
	}()
	return done
}
