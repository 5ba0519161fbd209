package ode

import (
	"fmt"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// DefaultLagCoefficients is a pure first-order lag with a 1 s time constant.
var DefaultLagCoefficients = [3]float64{1, 1, 0}

// ReactionWheelLag models the rotor angular velocity of a reaction wheel
// following its commanded speed through a lag filter. The coefficients
// [k0, k1, k2] define
//
//	k1·dω/dt = k0·(ω_target − ω) − k2·ω
//
// so [1, τ, 0] is a first-order lag with time constant τ. k1 must be
// positive.
type ReactionWheelLag struct {
	*Integrator

	target float64
	coeffs [3]float64
}

// NewReactionWheelLag constructs the lag model at the initial speed.
func NewReactionWheelLag(stepWidth, initialSpeed, targetSpeed float64, coeffs [3]float64) (*ReactionWheelLag, error) {
	if err := validateLag(coeffs); err != nil {
		return nil, err
	}
	rw := &ReactionWheelLag{target: targetSpeed, coeffs: coeffs}
	in, err := NewIntegrator(stepWidth, []float64{initialSpeed}, rw.derivative)
	if err != nil {
		return nil, err
	}
	rw.Integrator = in
	return rw, nil
}

func validateLag(c [3]float64) error {
	if !(c[1] > 0) {
		return fmt.Errorf("ode: lag coefficient k1 must be positive, got %g: %w", c[1], model.ErrInvalidConfiguration)
	}
	return nil
}

func (rw *ReactionWheelLag) derivative(_ float64, state, rhs []float64) {
	k := rw.coeffs
	rhs[0] = (k[0]*(rw.target-state[0]) - k[2]*state[0]) / k[1]
}

// AngularVelocity returns the current rotor speed [rad/s].
func (rw *ReactionWheelLag) AngularVelocity() float64 {
	return rw.StateAt(0)
}

// TargetAngularVelocity returns the commanded rotor speed [rad/s].
func (rw *ReactionWheelLag) TargetAngularVelocity() float64 {
	return rw.target
}

// SetTargetAngularVelocity changes the setpoint. The rotor speed keeps
// evolving from its current value.
func (rw *ReactionWheelLag) SetTargetAngularVelocity(w float64) {
	rw.target = w
}

// SetLagCoefficients replaces the filter coefficients without touching the
// integration state.
func (rw *ReactionWheelLag) SetLagCoefficients(c [3]float64) error {
	if err := validateLag(c); err != nil {
		return err
	}
	rw.coeffs = c
	return nil
}

// LagCoefficients returns the current coefficients.
func (rw *ReactionWheelLag) LagCoefficients() [3]float64 {
	return rw.coeffs
}
