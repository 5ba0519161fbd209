package dynamics

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/ode"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Orbit propagates the translational state of a spacecraft.
type Orbit interface {
	// Propagate advances the orbit to simTime. acceleration is the
	// non-central inertial acceleration held constant over the step.
	Propagate(simTime time.Time, acceleration r3.Vec) error
	Position_i() r3.Vec
	Velocity_i() r3.Vec
}

// TwoBodyOrbit integrates r̈ = −μr/|r|³ + a with RK4.
type TwoBodyOrbit struct {
	mu         float64
	applied    r3.Vec
	integrator *ode.Integrator
}

// NewTwoBodyOrbit seeds the orbit with an inertial position and velocity.
func NewTwoBodyOrbit(stepWidth, mu float64, pos, vel r3.Vec) (*TwoBodyOrbit, error) {
	if !(mu > 0) {
		return nil, fmt.Errorf("orbit: gravity constant must be positive: %w", model.ErrInvalidConfiguration)
	}
	if r3.Norm(pos) == 0 {
		return nil, fmt.Errorf("orbit: zero initial position: %w", model.ErrInvalidConfiguration)
	}
	o := &TwoBodyOrbit{mu: mu}
	integ, err := ode.NewIntegrator(stepWidth, []float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z}, o.derivative)
	if err != nil {
		return nil, fmt.Errorf("orbit: %w", err)
	}
	o.integrator = integ
	return o, nil
}

func (o *TwoBodyOrbit) derivative(_ float64, x, rhs []float64) {
	r := r3.Vec{X: x[0], Y: x[1], Z: x[2]}
	n := r3.Norm(r)
	k := -o.mu / (n * n * n)
	rhs[0], rhs[1], rhs[2] = x[3], x[4], x[5]
	rhs[3] = k*r.X + o.applied.X
	rhs[4] = k*r.Y + o.applied.Y
	rhs[5] = k*r.Z + o.applied.Z
}

// Propagate takes one integrator step; simTime is implied by the step count.
func (o *TwoBodyOrbit) Propagate(_ time.Time, acceleration r3.Vec) error {
	o.applied = acceleration
	o.integrator.Step()
	if r3.Norm(o.Position_i()) == 0 {
		return fmt.Errorf("orbit: position collapsed to the origin: %w", model.ErrDegenerateGeometry)
	}
	return nil
}

func (o *TwoBodyOrbit) Position_i() r3.Vec {
	return r3.Vec{X: o.integrator.StateAt(0), Y: o.integrator.StateAt(1), Z: o.integrator.StateAt(2)}
}

func (o *TwoBodyOrbit) Velocity_i() r3.Vec {
	return r3.Vec{X: o.integrator.StateAt(3), Y: o.integrator.StateAt(4), Z: o.integrator.StateAt(5)}
}

// SGP4Orbit evaluates a TLE with SGP4. The state is TEME, converted to
// metres. Applied accelerations are ignored.
//
// SGP4 is evaluated at whole UTC seconds: the fractional part of the
// simulation time is truncated, so orbit steps shorter than a second
// repeat the previous state until the next second boundary. Use an orbit
// interval of at least one second with TLE-driven spacecraft.
type SGP4Orbit struct {
	sat satellite.Satellite
	pos r3.Vec
	vel r3.Vec
}

const kmToM = 1000.0

// NewSGP4Orbit parses the TLE and evaluates it at start.
func NewSGP4Orbit(line1, line2 string, start time.Time) (*SGP4Orbit, error) {
	// go-satellite calls log.Fatal on malformed lines.
	if err := validateTLE(line1, line2); err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("orbit: sgp4 init failed: code=%d %s: %w", sat.Error, sat.ErrorStr, model.ErrInvalidConfiguration)
	}
	o := &SGP4Orbit{sat: sat}
	if err := o.Propagate(start, r3.Vec{}); err != nil {
		return nil, err
	}
	return o, nil
}

func validateTLE(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	if len(line1) != 69 || len(line2) != 69 {
		return fmt.Errorf("orbit: TLE lines must be 69 characters, got %d and %d: %w", len(line1), len(line2), model.ErrInvalidConfiguration)
	}
	if line1[0] != '1' || line2[0] != '2' {
		return fmt.Errorf("orbit: TLE lines must start with '1' and '2': %w", model.ErrInvalidConfiguration)
	}
	return nil
}

// Propagate evaluates SGP4 at simTime truncated to the whole second.
func (o *SGP4Orbit) Propagate(simTime time.Time, _ r3.Vec) error {
	simTime = simTime.UTC()
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	pos, vel := satellite.Propagate(o.sat, year, int(month), day, hour, min, sec)
	for _, v := range []float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("orbit: sgp4 propagation produced NaN/Inf: %w", model.ErrDegenerateGeometry)
		}
	}
	o.pos = r3.Scale(kmToM, r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z})
	o.vel = r3.Scale(kmToM, r3.Vec{X: vel.X, Y: vel.Y, Z: vel.Z})
	return nil
}

func (o *SGP4Orbit) Position_i() r3.Vec { return o.pos }
func (o *SGP4Orbit) Velocity_i() r3.Vec { return o.vel }
