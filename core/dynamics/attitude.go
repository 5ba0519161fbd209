package dynamics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/core/ode"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// RigidBodyAttitude integrates Euler's equations and quaternion kinematics
// with RK4. State layout: q_i2b (w, x, y, z), ω_b (x, y, z).
type RigidBodyAttitude struct {
	inertia    *mat.Dense
	inverse    *mat.Dense
	torque     r3.Vec
	integrator *ode.Integrator
}

// NewRigidBodyAttitude validates the inertia tensor and seeds the state.
func NewRigidBodyAttitude(stepWidth float64, inertia [9]float64, q quat.Number, omega r3.Vec) (*RigidBodyAttitude, error) {
	in := mat.NewDense(3, 3, append([]float64(nil), inertia[:]...))
	var inv mat.Dense
	if err := inv.Inverse(in); err != nil {
		return nil, fmt.Errorf("attitude: inertia tensor is not invertible: %w", model.ErrInvalidConfiguration)
	}

	a := &RigidBodyAttitude{inertia: in, inverse: &inv}
	q = frames.Normalize(q)
	initial := []float64{q.Real, q.Imag, q.Jmag, q.Kmag, omega.X, omega.Y, omega.Z}
	integ, err := ode.NewIntegrator(stepWidth, initial, a.derivative)
	if err != nil {
		return nil, fmt.Errorf("attitude: %w", err)
	}
	a.integrator = integ
	return a, nil
}

func (a *RigidBodyAttitude) derivative(_ float64, x, rhs []float64) {
	q := quat.Number{Real: x[0], Imag: x[1], Jmag: x[2], Kmag: x[3]}
	w := r3.Vec{X: x[4], Y: x[5], Z: x[6]}

	// q̇ = ½ q ⊗ (0, ω)
	dq := quat.Scale(0.5, quat.Mul(q, quat.Number{Imag: w.X, Jmag: w.Y, Kmag: w.Z}))
	rhs[0], rhs[1], rhs[2], rhs[3] = dq.Real, dq.Imag, dq.Jmag, dq.Kmag

	// ω̇ = I⁻¹ (τ − ω × Iω)
	h := frames.MulVec(a.inertia, w)
	dw := frames.MulVec(a.inverse, r3.Sub(a.torque, r3.Cross(w, h)))
	rhs[4], rhs[5], rhs[6] = dw.X, dw.Y, dw.Z
}

// Propagate advances one attitude step under a constant body torque and
// renormalises the quaternion. A non-finite torque or a collapsed
// quaternion yields ErrDegenerateGeometry.
func (a *RigidBodyAttitude) Propagate(torque r3.Vec) error {
	a.torque = torque
	a.integrator.Step()
	x := a.integrator.State()
	q := quat.Number{Real: x[0], Imag: x[1], Jmag: x[2], Kmag: x[3]}
	if n := quat.Abs(q); !(n > 0) || math.IsInf(n, 0) {
		return fmt.Errorf("attitude: quaternion norm %g after step: %w", n, model.ErrDegenerateGeometry)
	}
	q = frames.Normalize(q)
	x[0], x[1], x[2], x[3] = q.Real, q.Imag, q.Jmag, q.Kmag
	return a.integrator.SetState(x)
}

// Quaternion_i2b returns the inertial-to-body attitude.
func (a *RigidBodyAttitude) Quaternion_i2b() quat.Number {
	x := a.integrator.State()
	return quat.Number{Real: x[0], Imag: x[1], Jmag: x[2], Kmag: x[3]}
}

// AngularVelocity_b returns the body rate [rad/s].
func (a *RigidBodyAttitude) AngularVelocity_b() r3.Vec {
	return r3.Vec{X: a.integrator.StateAt(4), Y: a.integrator.StateAt(5), Z: a.integrator.StateAt(6)}
}

// AngularMomentum_b returns I·ω [N m s].
func (a *RigidBodyAttitude) AngularMomentum_b() r3.Vec {
	return frames.MulVec(a.inertia, a.AngularVelocity_b())
}

// InertiaTensor returns the body inertia tensor.
func (a *RigidBodyAttitude) InertiaTensor() mat.Matrix { return a.inertia }
