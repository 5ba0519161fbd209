package component

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/core/ode"
	"github.com/signalsfoundry/spacecraft-simulator/core/scheduler"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// ReactionWheel spins its rotor toward a target speed through a lag model
// and reacts the rotor acceleration onto the body.
type ReactionWheel struct {
	base
	axis    r3.Vec
	inertia float64
	period  float64
	lag     *ode.ReactionWheelLag
	torque  r3.Vec
}

var (
	_ scheduler.Component       = (*ReactionWheel)(nil)
	_ scheduler.PowerOffHandler = (*ReactionWheel)(nil)
	_ Actuator                  = (*ReactionWheel)(nil)
	_ telemetry.Loggable        = (*ReactionWheel)(nil)
)

// NewReactionWheel builds a wheel that is updated every period seconds.
// Zero lag coefficients select ode.DefaultLagCoefficients.
func NewReactionWheel(cfg model.ReactionWheelConfig, period float64, port *PowerPort) (*ReactionWheel, error) {
	axis := frames.Vec(cfg.AxisB)
	if r3.Norm(axis) == 0 {
		return nil, fmt.Errorf("reaction wheel %s: zero rotation axis: %w", cfg.Name, model.ErrInvalidConfiguration)
	}
	if !(cfg.RotorInertia > 0) || !(period > 0) {
		return nil, fmt.Errorf("reaction wheel %s: rotor inertia and period must be positive: %w", cfg.Name, model.ErrInvalidConfiguration)
	}
	coeffs := cfg.LagCoefficients
	if coeffs == [3]float64{} {
		coeffs = ode.DefaultLagCoefficients
	}
	step := cfg.StepWidth
	if step == 0 {
		step = period
	}
	lag, err := ode.NewReactionWheelLag(step, cfg.InitialSpeed, cfg.TargetSpeed, coeffs)
	if err != nil {
		return nil, fmt.Errorf("reaction wheel %s: %w", cfg.Name, err)
	}
	return &ReactionWheel{
		base:    base{name: cfg.Name, port: port},
		axis:    r3.Unit(axis),
		inertia: cfg.RotorInertia,
		period:  period,
		lag:     lag,
	}, nil
}

// MainRoutine integrates the rotor over one period.
func (rw *ReactionWheel) MainRoutine(int64) {
	before := rw.lag.AngularVelocity()
	rw.lag.Integrate(rw.period)
	dw := rw.lag.AngularVelocity() - before
	rw.torque = r3.Scale(-rw.inertia*dw/rw.period, rw.axis)
}

// PowerOffRoutine stops producing torque; the rotor keeps its speed.
func (rw *ReactionWheel) PowerOffRoutine() { rw.torque = r3.Vec{} }

// SetTargetSpeed changes the setpoint without resetting the rotor state.
func (rw *ReactionWheel) SetTargetSpeed(w float64) { rw.lag.SetTargetAngularVelocity(w) }

func (rw *ReactionWheel) Speed() float64            { return rw.lag.AngularVelocity() }
func (rw *ReactionWheel) GeneratedTorque_b() r3.Vec { return rw.torque }
func (rw *ReactionWheel) GeneratedForce_b() r3.Vec  { return r3.Vec{} }

// AngularMomentum_b is the rotor momentum along its axis [N m s].
func (rw *ReactionWheel) AngularMomentum_b() r3.Vec {
	return r3.Scale(rw.inertia*rw.lag.AngularVelocity(), rw.axis)
}

func (rw *ReactionWheel) LogHeader() string {
	return telemetry.ScalarHeader(rw.name+"_speed", "rad/s") +
		telemetry.VectorHeader(rw.name+"_torque_b", "Nm")
}

func (rw *ReactionWheel) LogValue() string {
	return telemetry.ScalarValue(rw.lag.AngularVelocity()) + telemetry.VectorValue(rw.torque)
}

// TorqueGenerator produces a commanded body torque with Gaussian
// magnitude error.
type TorqueGenerator struct {
	base
	command r3.Vec
	normal  distuv.Normal
	torque  r3.Vec
}

var (
	_ scheduler.Component       = (*TorqueGenerator)(nil)
	_ scheduler.PowerOffHandler = (*TorqueGenerator)(nil)
	_ Actuator                  = (*TorqueGenerator)(nil)
)

func NewTorqueGenerator(cfg model.TorqueGeneratorConfig, port *PowerPort, seed uint64) (*TorqueGenerator, error) {
	if cfg.MagnitudeErrorStdDev < 0 {
		return nil, fmt.Errorf("torque generator %s: negative std-dev: %w", cfg.Name, model.ErrInvalidConfiguration)
	}
	return &TorqueGenerator{
		base:    base{name: cfg.Name, port: port},
		command: frames.Vec(cfg.CommandB),
		normal:  distuv.Normal{Mu: 0, Sigma: cfg.MagnitudeErrorStdDev, Src: rand.NewPCG(seed, 1)},
	}, nil
}

// SetCommand replaces the commanded torque [N m].
func (tg *TorqueGenerator) SetCommand(t r3.Vec) { tg.command = t }

func (tg *TorqueGenerator) MainRoutine(int64) {
	n := r3.Norm(tg.command)
	if n == 0 {
		tg.torque = r3.Vec{}
		return
	}
	magnitude := n
	if tg.normal.Sigma > 0 {
		magnitude += tg.normal.Rand()
	}
	tg.torque = r3.Scale(magnitude/n, tg.command)
}

func (tg *TorqueGenerator) PowerOffRoutine() { tg.torque = r3.Vec{} }

func (tg *TorqueGenerator) GeneratedTorque_b() r3.Vec { return tg.torque }
func (tg *TorqueGenerator) GeneratedForce_b() r3.Vec  { return r3.Vec{} }

func (tg *TorqueGenerator) LogHeader() string {
	return telemetry.VectorHeader(tg.name+"_torque_b", "Nm")
}
func (tg *TorqueGenerator) LogValue() string { return telemetry.VectorValue(tg.torque) }
