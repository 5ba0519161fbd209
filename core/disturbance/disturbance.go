// Package disturbance models the environmental effects acting on a
// spacecraft. The set of effects is closed: each Variant carries a Kind
// and is dispatched by switching on it.
package disturbance

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Kind enumerates the supported disturbances.
type Kind int

const (
	GravityGradient Kind = iota
	Magnetic
	SolarRadiation
	AirDrag
	ThirdBody
	Geopotential
)

var kindNames = map[Kind]string{
	GravityGradient: "gravity_gradient",
	Magnetic:        "magnetic",
	SolarRadiation:  "solar_radiation",
	AirDrag:         "air_drag",
	ThirdBody:       "third_body",
	Geopotential:    "geopotential",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Class groups kinds by the quantity they produce.
type Class int

const (
	// AttitudeClass variants produce body-frame torque and force.
	AttitudeClass Class = iota
	// PositionClass variants produce inertial acceleration.
	PositionClass
)

// Class returns the class of k.
func (k Kind) Class() Class {
	switch k {
	case ThirdBody, Geopotential:
		return PositionClass
	default:
		return AttitudeClass
	}
}

// Environment is what the disturbance models read from the local
// environment on a tick.
type Environment interface {
	SunPosition_i() r3.Vec
	SunDirection_b() r3.Vec
	MagneticField_b() r3.Vec
	AtmosphericDensity() float64
	SolarPressure() float64
	ShadowCoefficient() float64
}

// Variant is one disturbance instance with its cached outputs.
type Variant struct {
	Kind    Kind
	Enabled bool

	body     model.CenterBody
	surface  model.SurfaceConfig
	magnetic *magneticMoment

	torqueB       r3.Vec
	forceB        r3.Vec
	accelerationI r3.Vec
}

// UpdateIfEnabled recomputes the outputs, or forces them to exact zero when
// the variant is disabled.
func (v *Variant) UpdateIfEnabled(env Environment, s dynamics.State) error {
	v.torqueB, v.forceB, v.accelerationI = r3.Vec{}, r3.Vec{}, r3.Vec{}
	if !v.Enabled {
		return nil
	}

	var err error
	switch v.Kind {
	case GravityGradient:
		v.torqueB, err = gravityGradientTorque(v.body.GravityConstant, s)
	case Magnetic:
		v.torqueB = v.magnetic.torque(env.MagneticField_b())
	case SolarRadiation:
		v.forceB, v.torqueB = solarRadiation(v.surface, env)
	case AirDrag:
		v.forceB, v.torqueB = airDrag(v.surface, env.AtmosphericDensity(), s.Velocity_b())
	case ThirdBody:
		v.accelerationI = sunThirdBody(env.SunPosition_i(), s.Position_i())
	case Geopotential:
		v.accelerationI, err = j2Acceleration(v.body, s.Position_i())
	default:
		err = fmt.Errorf("disturbance: unknown kind %s: %w", v.Kind, model.ErrInvalidConfiguration)
	}
	if err != nil {
		return fmt.Errorf("disturbance %s: %w", v.Kind, err)
	}
	return nil
}

func (v *Variant) Torque_b() r3.Vec       { return v.torqueB }
func (v *Variant) Force_b() r3.Vec        { return v.forceB }
func (v *Variant) Acceleration_i() r3.Vec { return v.accelerationI }

// ResidualMoment_b is the magnetic moment drawn by the last update [A m²];
// zero for other kinds.
func (v *Variant) ResidualMoment_b() r3.Vec {
	if v.magnetic == nil {
		return r3.Vec{}
	}
	return v.magnetic.last
}

var _ telemetry.Loggable = (*Variant)(nil)

func (v *Variant) LogHeader() string {
	name := strings.ToLower(v.Kind.String())
	if v.Kind.Class() == PositionClass {
		return telemetry.VectorHeader(name+"_acceleration_i", "m/s2")
	}
	h := telemetry.VectorHeader(name+"_torque_b", "Nm") + telemetry.VectorHeader(name+"_force_b", "N")
	if v.Kind == Magnetic {
		h += telemetry.VectorHeader(name+"_rmm_b", "Am2")
	}
	return h
}

func (v *Variant) LogValue() string {
	if v.Kind.Class() == PositionClass {
		return telemetry.VectorValue(v.accelerationI)
	}
	val := telemetry.VectorValue(v.torqueB) + telemetry.VectorValue(v.forceB)
	if v.Kind == Magnetic {
		val += telemetry.VectorValue(v.ResidualMoment_b())
	}
	return val
}
