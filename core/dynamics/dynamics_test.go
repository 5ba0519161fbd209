package dynamics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/model"
	"github.com/signalsfoundry/spacecraft-simulator/timectrl"
)

const muEarth = 3.986004418e14

var (
	epoch = time.Date(2008, time.September, 20, 12, 0, 0, 0, time.UTC)
	earth = model.CenterBody{Name: "EARTH", GravityConstant: muEarth, Radius: 6378137}
	both  = timectrl.Flags{AttitudeDue: true, OrbitDue: true}
)

func circularDefinition(inertia [9]float64, omega [3]float64) model.SpacecraftDefinition {
	r := 7e6
	return model.SpacecraftDefinition{
		ID:      1,
		Mass:    50,
		Inertia: inertia,
		Attitude: model.AttitudeDefinition{
			AngularVelocityB: omega,
		},
		Orbit: model.OrbitDefinition{
			Source:    model.OrbitSourceTwoBody,
			PositionI: [3]float64{r, 0, 0},
			VelocityI: [3]float64{0, math.Sqrt(muEarth / r), 0},
		},
	}
}

func TestTorqueFreeSpinAboutPrincipalAxis(t *testing.T) {
	def := circularDefinition([9]float64{1, 0, 0, 0, 2, 0, 0, 0, 3}, [3]float64{0, 0, 0.1})
	d, err := New(def, earth, epoch, Steps{Attitude: 0.1, Orbit: 1})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Update(epoch, timectrl.Flags{AttitudeDue: true}))
	}

	w := d.AngularVelocity_b()
	assert.InDelta(t, 0.1, w.Z, 1e-12)
	assert.InDelta(t, 0, w.X, 1e-12)

	q := d.Quaternion_i2b()
	assert.InDelta(t, 1, quat.Abs(q), 1e-12)
	assert.InDelta(t, math.Cos(0.05), q.Real, 1e-9)
	assert.InDelta(t, math.Sin(0.05), q.Kmag, 1e-9)
}

func TestConstantTorqueSpinsUpLinearly(t *testing.T) {
	def := circularDefinition([9]float64{2, 0, 0, 0, 2, 0, 0, 0, 2}, [3]float64{})
	d, err := New(def, earth, epoch, Steps{Attitude: 0.1, Orbit: 1})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		d.ClearForceTorque()
		d.AddTorque_b(r3.Vec{Z: 0.5})
		d.AddTorque_b(r3.Vec{Z: 0.5})
		require.NoError(t, d.Update(epoch, timectrl.Flags{AttitudeDue: true}))
	}
	assert.InDelta(t, 0.5, d.AngularVelocity_b().Z, 1e-12)
}

func TestNonFiniteTorqueIsDegenerate(t *testing.T) {
	def := circularDefinition([9]float64{2, 0, 0, 0, 2, 0, 0, 0, 2}, [3]float64{0, 0, 0.1})
	d, err := New(def, earth, epoch, Steps{Attitude: 0.1, Orbit: 1})
	require.NoError(t, err)

	d.AddTorque_b(r3.Vec{X: math.NaN()})
	err = d.Update(epoch, timectrl.Flags{AttitudeDue: true})
	require.ErrorIs(t, err, model.ErrDegenerateGeometry)
}

func TestTwoBodyCircularOrbitKeepsRadius(t *testing.T) {
	def := circularDefinition([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{})
	d, err := New(def, earth, epoch, Steps{Attitude: 1, Orbit: 1})
	require.NoError(t, err)

	energy := func() float64 {
		v := r3.Norm(d.Velocity_i())
		return v*v/2 - muEarth/r3.Norm(d.Position_i())
	}
	e0 := energy()
	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Update(epoch, timectrl.Flags{OrbitDue: true}))
	}
	assert.InDelta(t, 7e6, r3.Norm(d.Position_i()), 1)
	assert.InDelta(t, 0, (energy()-e0)/e0, 1e-9)

	theta := math.Sqrt(muEarth/(7e6*7e6*7e6)) * 1000
	assert.InDelta(t, 7e6*math.Cos(theta), d.Position_i().X, 10)
	assert.InDelta(t, 7e6*math.Sin(theta), d.Position_i().Y, 10)
}

func TestBodyForceAcceleratesOrbit(t *testing.T) {
	def := circularDefinition([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{})
	free, err := New(def, earth, epoch, Steps{Attitude: 1, Orbit: 1})
	require.NoError(t, err)
	pushed, err := New(def, earth, epoch, Steps{Attitude: 1, Orbit: 1})
	require.NoError(t, err)

	pushed.AddForce_b(r3.Vec{Y: 50}) // 1 m/s^2 along-track with identity attitude
	require.NoError(t, free.Update(epoch, both))
	require.NoError(t, pushed.Update(epoch, both))

	dv := r3.Sub(pushed.Velocity_i(), free.Velocity_i())
	assert.InDelta(t, 1, dv.Y, 1e-5)
}

func TestClearForceTorque(t *testing.T) {
	def := circularDefinition([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{})
	d, err := New(def, earth, epoch, Steps{Attitude: 1, Orbit: 1})
	require.NoError(t, err)
	d.AddTorque_b(r3.Vec{X: 1})
	d.AddForce_b(r3.Vec{Y: 1})
	d.AddAcceleration_i(r3.Vec{Z: 1})
	d.ClearForceTorque()
	assert.Equal(t, r3.Vec{}, d.Torque_b())
	assert.Equal(t, r3.Vec{}, d.Force_b())
	assert.Equal(t, r3.Vec{}, d.Acceleration_i())
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	def := circularDefinition([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{})

	noMass := def
	noMass.Mass = 0
	singular := def
	singular.Inertia = [9]float64{}
	noOrbit := def
	noOrbit.Orbit.PositionI = [3]float64{}
	badTLE := def
	badTLE.Orbit = model.OrbitDefinition{Source: model.OrbitSourceSGP4, TLE1: "1 short", TLE2: "2 short"}
	unknown := def
	unknown.Orbit.Source = model.OrbitSource(42)

	for name, d := range map[string]model.SpacecraftDefinition{
		"mass": noMass, "inertia": singular, "position": noOrbit, "tle": badTLE, "source": unknown,
	} {
		if _, err := New(d, earth, epoch, Steps{Attitude: 1, Orbit: 1}); !errors.Is(err, model.ErrInvalidConfiguration) {
			t.Fatalf("%s: expected ErrInvalidConfiguration, got %v", name, err)
		}
	}
	if _, err := New(def, earth, epoch, Steps{Attitude: 0, Orbit: 1}); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("zero attitude step: expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestSGP4OrbitFromTLE(t *testing.T) {
	def := circularDefinition([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{})
	def.Orbit = model.OrbitDefinition{
		Source: model.OrbitSourceSGP4,
		TLE1:   "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927",
		TLE2:   "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
	}
	d, err := New(def, earth, epoch, Steps{Attitude: 1, Orbit: 60})
	require.NoError(t, err)

	r0 := d.Position_i()
	assert.InDelta(t, 6.7e6, r3.Norm(r0), 1.5e5)
	assert.InDelta(t, 7.7e3, r3.Norm(d.Velocity_i()), 3e2)

	require.NoError(t, d.Update(epoch.Add(time.Minute), timectrl.Flags{OrbitDue: true}))
	moved := r3.Norm(r3.Sub(d.Position_i(), r0))
	assert.InDelta(t, 60*7.7e3, moved, 3e4)
}

func TestQuaternionI2RTN(t *testing.T) {
	def := circularDefinition([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{})
	d, err := New(def, earth, epoch, Steps{Attitude: 1, Orbit: 1})
	require.NoError(t, err)
	q, err := d.Quaternion_i2rtn()
	require.NoError(t, err)
	assert.InDelta(t, 1, math.Abs(q.Real), 1e-12)
}

func TestSGP4OrbitHoldsWithinWholeSecond(t *testing.T) {
	o, err := NewSGP4Orbit(
		"1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927",
		"2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
		epoch,
	)
	require.NoError(t, err)
	r0 := o.Position_i()

	require.NoError(t, o.Propagate(epoch.Add(900*time.Millisecond), r3.Vec{}))
	assert.Equal(t, r0, o.Position_i())

	require.NoError(t, o.Propagate(epoch.Add(time.Second), r3.Vec{}))
	assert.NotEqual(t, r0, o.Position_i())
}
