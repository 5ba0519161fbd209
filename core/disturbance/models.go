package disturbance

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/core/environment"
	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/core/noise"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// gravityGradientTorque returns 3μ/r³ · û × (I·û), û the body-frame unit
// position vector.
func gravityGradientTorque(mu float64, s dynamics.State) (r3.Vec, error) {
	posB := frames.FrameConversion(s.Quaternion_i2b(), s.Position_i())
	r := r3.Norm(posB)
	if r == 0 {
		return r3.Vec{}, fmt.Errorf("zero-norm position: %w", model.ErrDegenerateGeometry)
	}
	u := r3.Scale(1/r, posB)
	k := 3 * mu / (r * r * r)
	return r3.Scale(k, r3.Cross(u, frames.MulVec(s.InertiaTensor(), u))), nil
}

// nT to T
const teslaPerNanotesla = 1e-9

const defaultMagneticStepWidth = 0.1

// magneticMoment is the residual dipole of one spacecraft: a constant
// part plus a bounded random walk plus white noise, all owned here.
type magneticMoment struct {
	constant r3.Vec
	walk     *noise.RandomWalk
	normal   distuv.Normal
	last     r3.Vec
}

func newMagneticMoment(cfg model.MagneticConfig, seed uint64) (*magneticMoment, error) {
	step := cfg.RandomWalkStepWidth
	if step == 0 {
		step = defaultMagneticStepWidth
	}
	if cfg.NoiseStdDev < 0 {
		return nil, fmt.Errorf("magnetic: negative noise std-dev: %w", model.ErrInvalidConfiguration)
	}
	walk, err := noise.NewRandomWalk(step, cfg.RandomWalkStdDev[:], cfg.RandomWalkLimit[:], seed)
	if err != nil {
		return nil, fmt.Errorf("magnetic: %w", err)
	}
	return &magneticMoment{
		constant: frames.Vec(cfg.ConstantMoment),
		walk:     walk,
		normal:   distuv.Normal{Mu: 0, Sigma: cfg.NoiseStdDev, Src: rand.NewPCG(seed, magneticNoiseStream)},
	}, nil
}

const magneticNoiseStream = 0x6d61676e

// current draws the moment for this call and advances the walk.
func (m *magneticMoment) current() r3.Vec {
	w := m.walk.Current()
	rmm := r3.Vec{
		X: m.constant.X + w[0],
		Y: m.constant.Y + w[1],
		Z: m.constant.Z + w[2],
	}
	if m.normal.Sigma > 0 {
		rmm = r3.Add(rmm, r3.Vec{X: m.normal.Rand(), Y: m.normal.Rand(), Z: m.normal.Rand()})
	}
	m.walk.Advance()
	m.last = rmm
	return rmm
}

func (m *magneticMoment) torque(fieldB r3.Vec) r3.Vec {
	return r3.Scale(teslaPerNanotesla, r3.Cross(m.current(), fieldB))
}

// solarRadiation treats the spacecraft as one effective surface facing
// the Sun.
func solarRadiation(surface model.SurfaceConfig, env Environment) (force, torque r3.Vec) {
	p := env.SolarPressure() * env.ShadowCoefficient()
	force = r3.Scale(-p*surface.Area*surface.Coefficient, env.SunDirection_b())
	torque = r3.Cross(frames.Vec(surface.CenterOfPressure), force)
	return force, torque
}

// airDrag opposes the body-frame velocity.
func airDrag(surface model.SurfaceConfig, density float64, velB r3.Vec) (force, torque r3.Vec) {
	v := r3.Norm(velB)
	if v == 0 || density == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	force = r3.Scale(-0.5*density*v*surface.Coefficient*surface.Area, velB)
	torque = r3.Cross(frames.Vec(surface.CenterOfPressure), force)
	return force, torque
}

// sunThirdBody is the Sun's perturbing acceleration relative to the
// center body.
func sunThirdBody(sunI, posI r3.Vec) r3.Vec {
	d := r3.Sub(sunI, posI)
	dn := r3.Norm(d)
	sn := r3.Norm(sunI)
	if dn == 0 || sn == 0 {
		return r3.Vec{}
	}
	return r3.Scale(environment.SunGravityConstant,
		r3.Sub(r3.Scale(1/(dn*dn*dn), d), r3.Scale(1/(sn*sn*sn), sunI)))
}

// j2Acceleration is the zonal J2 perturbation.
func j2Acceleration(body model.CenterBody, pos r3.Vec) (r3.Vec, error) {
	r := r3.Norm(pos)
	if r == 0 {
		return r3.Vec{}, fmt.Errorf("zero-norm position: %w", model.ErrDegenerateGeometry)
	}
	z2 := (pos.Z / r) * (pos.Z / r)
	k := -1.5 * body.J2 * body.GravityConstant * body.Radius * body.Radius / math.Pow(r, 5)
	return r3.Vec{
		X: k * pos.X * (1 - 5*z2),
		Y: k * pos.Y * (1 - 5*z2),
		Z: k * pos.Z * (3 - 5*z2),
	}, nil
}
