// Package ode provides a fixed-step ordinary differential equation
// integrator and the actuator lag models built on it.
package ode

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// DerivativeFunc writes d(state)/dt at independent variable t into rhs.
// state must not be modified; rhs has the same length as state.
type DerivativeFunc func(t float64, state []float64, rhs []float64)

// Integrator advances a state vector with the classical 4th-order
// Runge-Kutta rule using a fixed step width.
type Integrator struct {
	stepWidth float64
	t         float64
	state     []float64
	fn        DerivativeFunc

	// scratch buffers reused across steps
	k1, k2, k3, k4, tmp []float64
}

// NewIntegrator constructs an integrator starting at t = 0.
func NewIntegrator(stepWidth float64, initial []float64, fn DerivativeFunc) (*Integrator, error) {
	if err := validateStepWidth(stepWidth); err != nil {
		return nil, err
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("ode: empty state vector: %w", model.ErrInvalidConfiguration)
	}
	if fn == nil {
		return nil, fmt.Errorf("ode: nil derivative function: %w", model.ErrInvalidConfiguration)
	}
	n := len(initial)
	in := &Integrator{
		stepWidth: stepWidth,
		state:     append([]float64(nil), initial...),
		fn:        fn,
		k1:        make([]float64, n),
		k2:        make([]float64, n),
		k3:        make([]float64, n),
		k4:        make([]float64, n),
		tmp:       make([]float64, n),
	}
	return in, nil
}

func validateStepWidth(h float64) error {
	if !(h > 0) || math.IsInf(h, 0) {
		return fmt.Errorf("ode: step width must be positive, got %g: %w", h, model.ErrInvalidConfiguration)
	}
	return nil
}

// Step advances the state by exactly one step width.
func (in *Integrator) Step() {
	in.step(in.stepWidth)
}

// Integrate advances the state by duration, taking full steps and one
// shorter final step when duration is not a multiple of the step width.
func (in *Integrator) Integrate(duration float64) {
	if duration <= 0 {
		return
	}
	n := int(math.Floor(duration/in.stepWidth + 1e-9))
	for i := 0; i < n; i++ {
		in.step(in.stepWidth)
	}
	if rest := duration - float64(n)*in.stepWidth; rest > in.stepWidth*1e-9 {
		in.step(rest)
	}
}

func (in *Integrator) step(h float64) {
	n := len(in.state)
	t := in.t

	in.fn(t, in.state, in.k1)

	for i := 0; i < n; i++ {
		in.tmp[i] = in.state[i] + 0.5*h*in.k1[i]
	}
	in.fn(t+0.5*h, in.tmp, in.k2)

	for i := 0; i < n; i++ {
		in.tmp[i] = in.state[i] + 0.5*h*in.k2[i]
	}
	in.fn(t+0.5*h, in.tmp, in.k3)

	for i := 0; i < n; i++ {
		in.tmp[i] = in.state[i] + h*in.k3[i]
	}
	in.fn(t+h, in.tmp, in.k4)

	for i := 0; i < n; i++ {
		in.state[i] += h / 6 * (in.k1[i] + 2*in.k2[i] + 2*in.k3[i] + in.k4[i])
	}
	in.t += h
}

// State returns a copy of the current state vector.
func (in *Integrator) State() []float64 {
	return append([]float64(nil), in.state...)
}

// StateAt returns a single state component without copying.
func (in *Integrator) StateAt(i int) float64 {
	return in.state[i]
}

// SetState overwrites the state vector, keeping the independent variable.
func (in *Integrator) SetState(state []float64) error {
	if len(state) != len(in.state) {
		return fmt.Errorf("ode: state length %d, want %d: %w", len(state), len(in.state), model.ErrInvalidConfiguration)
	}
	copy(in.state, state)
	return nil
}

// Time returns the independent variable.
func (in *Integrator) Time() float64 { return in.t }

// StepWidth returns the configured step width.
func (in *Integrator) StepWidth() float64 { return in.stepWidth }

// SetStepWidth changes the step width for subsequent steps.
func (in *Integrator) SetStepWidth(h float64) error {
	if err := validateStepWidth(h); err != nil {
		return err
	}
	in.stepWidth = h
	return nil
}
