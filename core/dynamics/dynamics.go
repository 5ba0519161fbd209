// Package dynamics propagates a spacecraft's attitude and orbit and holds
// the per-tick force, torque and acceleration accumulators that
// disturbances and actuators feed.
package dynamics

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
	"github.com/signalsfoundry/spacecraft-simulator/timectrl"
)

// Dynamics is the attitude and orbit state of one spacecraft.
type Dynamics struct {
	mass     float64
	attitude *RigidBodyAttitude
	orbit    Orbit

	torqueB       r3.Vec
	forceB        r3.Vec
	accelerationI r3.Vec
}

// Steps holds the propagation intervals in seconds.
type Steps struct {
	Attitude float64
	Orbit    float64
}

// New builds the dynamics of def. start is the simulation epoch used by
// SGP4 orbits.
func New(def model.SpacecraftDefinition, body model.CenterBody, start time.Time, steps Steps) (*Dynamics, error) {
	if !(def.Mass > 0) {
		return nil, fmt.Errorf("dynamics: spacecraft %d: mass must be positive: %w", def.ID, model.ErrInvalidConfiguration)
	}
	att, err := NewRigidBodyAttitude(steps.Attitude,
		def.Inertia,
		frames.QuaternionFromArray(def.Attitude.QuaternionI2B),
		frames.Vec(def.Attitude.AngularVelocityB))
	if err != nil {
		return nil, fmt.Errorf("dynamics: spacecraft %d: %w", def.ID, err)
	}

	var orbit Orbit
	switch def.Orbit.Source {
	case model.OrbitSourceTwoBody:
		orbit, err = NewTwoBodyOrbit(steps.Orbit, body.GravityConstant,
			frames.Vec(def.Orbit.PositionI), frames.Vec(def.Orbit.VelocityI))
	case model.OrbitSourceSGP4:
		orbit, err = NewSGP4Orbit(def.Orbit.TLE1, def.Orbit.TLE2, start)
	default:
		err = fmt.Errorf("unknown orbit source %d: %w", def.Orbit.Source, model.ErrInvalidConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("dynamics: spacecraft %d: %w", def.ID, err)
	}

	return &Dynamics{mass: def.Mass, attitude: att, orbit: orbit}, nil
}

// NewFromModels assembles dynamics from already-built models.
func NewFromModels(mass float64, attitude *RigidBodyAttitude, orbit Orbit) *Dynamics {
	return &Dynamics{mass: mass, attitude: attitude, orbit: orbit}
}

// Update propagates whatever falls due on this tick. The accumulators are
// left untouched; callers clear them at the start of the next tick.
func (d *Dynamics) Update(simTime time.Time, flags timectrl.Flags) error {
	if flags.AttitudeDue {
		if err := d.attitude.Propagate(d.torqueB); err != nil {
			return err
		}
	}
	if flags.OrbitDue {
		// body force is rotated into the inertial frame
		forceI := frames.InverseFrameConversion(d.Quaternion_i2b(), d.forceB)
		acc := r3.Add(d.accelerationI, r3.Scale(1/d.mass, forceI))
		if err := d.orbit.Propagate(simTime, acc); err != nil {
			return err
		}
	}
	return nil
}

// ClearForceTorque resets the accumulators.
func (d *Dynamics) ClearForceTorque() {
	d.torqueB = r3.Vec{}
	d.forceB = r3.Vec{}
	d.accelerationI = r3.Vec{}
}

func (d *Dynamics) AddTorque_b(t r3.Vec)       { d.torqueB = r3.Add(d.torqueB, t) }
func (d *Dynamics) AddForce_b(f r3.Vec)        { d.forceB = r3.Add(d.forceB, f) }
func (d *Dynamics) AddAcceleration_i(a r3.Vec) { d.accelerationI = r3.Add(d.accelerationI, a) }

func (d *Dynamics) Torque_b() r3.Vec       { return d.torqueB }
func (d *Dynamics) Force_b() r3.Vec        { return d.forceB }
func (d *Dynamics) Acceleration_i() r3.Vec { return d.accelerationI }

func (d *Dynamics) Mass() float64                { return d.mass }
func (d *Dynamics) InertiaTensor() mat.Matrix    { return d.attitude.InertiaTensor() }
func (d *Dynamics) Quaternion_i2b() quat.Number  { return d.attitude.Quaternion_i2b() }
func (d *Dynamics) AngularVelocity_b() r3.Vec    { return d.attitude.AngularVelocity_b() }
func (d *Dynamics) Position_i() r3.Vec           { return d.orbit.Position_i() }
func (d *Dynamics) Velocity_i() r3.Vec           { return d.orbit.Velocity_i() }
func (d *Dynamics) Attitude() *RigidBodyAttitude { return d.attitude }
func (d *Dynamics) Orbit() Orbit                 { return d.orbit }

// Velocity_b returns the inertial velocity expressed in the body frame.
func (d *Dynamics) Velocity_b() r3.Vec {
	return frames.FrameConversion(d.Quaternion_i2b(), d.Velocity_i())
}

// Quaternion_i2rtn returns the inertial-to-RTN attitude of the orbit.
func (d *Dynamics) Quaternion_i2rtn() (quat.Number, error) {
	return frames.QuaternionI2RTN(d.Position_i(), d.Velocity_i())
}

var _ telemetry.Loggable = (*Dynamics)(nil)

func (d *Dynamics) LogHeader() string {
	return telemetry.QuaternionHeader("q_i2b") +
		telemetry.VectorHeader("omega_b", "rad/s") +
		telemetry.VectorHeader("position_i", "m") +
		telemetry.VectorHeader("velocity_i", "m/s") +
		telemetry.VectorHeader("torque_b", "Nm") +
		telemetry.VectorHeader("force_b", "N")
}

func (d *Dynamics) LogValue() string {
	return telemetry.QuaternionValue(d.Quaternion_i2b()) +
		telemetry.VectorValue(d.AngularVelocity_b()) +
		telemetry.VectorValue(d.Position_i()) +
		telemetry.VectorValue(d.Velocity_i()) +
		telemetry.VectorValue(d.torqueB) +
		telemetry.VectorValue(d.forceB)
}

// State is the read-only view of a spacecraft's dynamics consumed by the
// environment and disturbance models.
type State interface {
	Mass() float64
	InertiaTensor() mat.Matrix
	Quaternion_i2b() quat.Number
	AngularVelocity_b() r3.Vec
	Position_i() r3.Vec
	Velocity_i() r3.Vec
	Velocity_b() r3.Vec
}

var _ State = (*Dynamics)(nil)
