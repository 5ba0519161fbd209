package component

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/core/noise"
	"github.com/signalsfoundry/spacecraft-simulator/core/scheduler"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// threeAxisSensor measures a body-frame vector in the component frame.
type threeAxisSensor struct {
	base
	qB2C     quat.Number
	pipeline *noise.Pipeline
	output   r3.Vec
}

func newThreeAxisSensor(kind string, cfg model.SensorConfig, port *PowerPort, seed uint64) (threeAxisSensor, []noise.Correction, error) {
	p, corr, err := noise.NewPipeline(3, cfg.Noise, seed)
	if err != nil {
		return threeAxisSensor{}, nil, fmt.Errorf("%s %s: %w", kind, cfg.Name, err)
	}
	return threeAxisSensor{
		base:     base{name: cfg.Name, port: port},
		qB2C:     frames.QuaternionFromArray(cfg.QuaternionB2C),
		pipeline: p,
	}, corr, nil
}

func (s *threeAxisSensor) measure(trueB r3.Vec) {
	out, err := s.pipeline.MeasureVec(frames.FrameConversion(s.qB2C, trueB))
	if err != nil {
		// dimension is fixed at three
		panic(err)
	}
	s.output = out
}

// Gyro measures the body angular velocity.
type Gyro struct {
	threeAxisSensor
	state dynamics.State
}

var (
	_ scheduler.Component       = (*Gyro)(nil)
	_ scheduler.PowerOffHandler = (*Gyro)(nil)
	_ telemetry.Loggable        = (*Gyro)(nil)
)

func NewGyro(cfg model.SensorConfig, state dynamics.State, port *PowerPort, seed uint64) (*Gyro, []noise.Correction, error) {
	s, corr, err := newThreeAxisSensor("gyro", cfg, port, seed)
	if err != nil {
		return nil, nil, err
	}
	return &Gyro{threeAxisSensor: s, state: state}, corr, nil
}

func (g *Gyro) MainRoutine(int64) { g.measure(g.state.AngularVelocity_b()) }

// PowerOffRoutine zeroes the output while unpowered.
func (g *Gyro) PowerOffRoutine() { g.output = r3.Vec{} }

// AngularVelocity_c is the measured rate in the component frame [rad/s].
func (g *Gyro) AngularVelocity_c() r3.Vec { return g.output }

func (g *Gyro) LogHeader() string { return telemetry.VectorHeader(g.name+"_omega_c", "rad/s") }
func (g *Gyro) LogValue() string  { return telemetry.VectorValue(g.output) }

// Magnetometer measures the geomagnetic field. It holds its last output
// while unpowered.
type Magnetometer struct {
	threeAxisSensor
	env Environment
}

var (
	_ scheduler.Component = (*Magnetometer)(nil)
	_ telemetry.Loggable  = (*Magnetometer)(nil)
)

func NewMagnetometer(cfg model.SensorConfig, env Environment, port *PowerPort, seed uint64) (*Magnetometer, []noise.Correction, error) {
	s, corr, err := newThreeAxisSensor("magnetometer", cfg, port, seed)
	if err != nil {
		return nil, nil, err
	}
	return &Magnetometer{threeAxisSensor: s, env: env}, corr, nil
}

func (m *Magnetometer) MainRoutine(int64) { m.measure(m.env.MagneticField_b()) }

// MagneticField_c is the measured field in the component frame [nT].
func (m *Magnetometer) MagneticField_c() r3.Vec { return m.output }

func (m *Magnetometer) LogHeader() string { return telemetry.VectorHeader(m.name+"_mag_c", "nT") }
func (m *Magnetometer) LogValue() string  { return telemetry.VectorValue(m.output) }
