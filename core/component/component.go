// Package component emulates onboard sensors, actuators and power
// equipment. Components are driven by the scheduler and read the true
// state of their own spacecraft.
package component

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/core/noise"
	"github.com/signalsfoundry/spacecraft-simulator/core/scheduler"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Environment is the part of the local environment components observe.
type Environment interface {
	MagneticField_b() r3.Vec
	SunDirection_b() r3.Vec
	SolarFlux() float64
	ShadowCoefficient() float64
}

// Actuator components contribute to the spacecraft's accumulators.
type Actuator interface {
	GeneratedTorque_b() r3.Vec
	GeneratedForce_b() r3.Vec
}

// PowerPort is a switchable supply line owned by a PowerControlUnit.
type PowerPort struct {
	name string
	on   bool
}

func NewPowerPort(name string, on bool) *PowerPort { return &PowerPort{name: name, on: on} }

func (p *PowerPort) Name() string  { return p.name }
func (p *PowerPort) IsOn() bool    { return p.on }
func (p *PowerPort) SetOn(on bool) { p.on = on }

// base carries the capabilities shared by every component.
type base struct {
	name string
	port *PowerPort
}

func (b *base) Name() string { return b.name }

// IsPowerOn is true when the component has no port or its port is on.
func (b *base) IsPowerOn() bool { return b.port == nil || b.port.IsOn() }

// Scheduled pairs a component with its prescaler.
type Scheduled struct {
	Component scheduler.Component
	Prescaler int
}

// RangeCorrection reports a noise range fixed at construction.
type RangeCorrection struct {
	Component string
	noise.Correction
}

// Deps are the collaborators a component set is built against.
type Deps struct {
	State dynamics.State
	Env   Environment
	Tick  time.Duration
	Seed  uint64
}

// Set is every component of one spacecraft.
type Set struct {
	PowerControl     *PowerControlUnit
	Gyros            []*Gyro
	Magnetometers    []*Magnetometer
	ReactionWheels   []*ReactionWheel
	TorqueGenerators []*TorqueGenerator
	SolarArrays      []*SolarArrayPanel

	Corrections []RangeCorrection

	scheduled []Scheduled
	loggables []telemetry.Loggable
	actuators []Actuator
}

// Build constructs the components of cfg. Construction stops at the first
// invalid component.
func Build(cfg model.ComponentsConfig, deps Deps) (*Set, error) {
	s := &Set{}
	var stream uint64
	nextSeed := func() uint64 {
		stream++
		return deps.Seed + stream*0x9e3779b97f4a7c15
	}

	if cfg.PowerControl != nil {
		pcu, err := NewPowerControlUnit(*cfg.PowerControl)
		if err != nil {
			return nil, err
		}
		s.PowerControl = pcu
		s.add(pcu, cfg.PowerControl.Prescaler)
	}
	port := func(component, name string) (*PowerPort, error) {
		if name == "" {
			return nil, nil
		}
		if s.PowerControl == nil {
			return nil, fmt.Errorf("component %s: power port %q without a power control unit: %w", component, name, model.ErrInvalidConfiguration)
		}
		p, ok := s.PowerControl.Port(name)
		if !ok {
			return nil, fmt.Errorf("component %s: unknown power port %q: %w", component, name, model.ErrInvalidConfiguration)
		}
		return p, nil
	}

	for _, c := range cfg.Gyros {
		p, err := port(c.Name, c.PowerPort)
		if err != nil {
			return nil, err
		}
		g, corr, err := NewGyro(withWalkStep(c, updatePeriod(c.Prescaler, deps.Tick)), deps.State, p, nextSeed())
		if err != nil {
			return nil, err
		}
		s.Gyros = append(s.Gyros, g)
		s.correct(c.Name, corr)
		s.add(g, c.Prescaler)
	}
	for _, c := range cfg.Magnetometers {
		p, err := port(c.Name, c.PowerPort)
		if err != nil {
			return nil, err
		}
		m, corr, err := NewMagnetometer(withWalkStep(c, updatePeriod(c.Prescaler, deps.Tick)), deps.Env, p, nextSeed())
		if err != nil {
			return nil, err
		}
		s.Magnetometers = append(s.Magnetometers, m)
		s.correct(c.Name, corr)
		s.add(m, c.Prescaler)
	}
	for _, c := range cfg.ReactionWheels {
		p, err := port(c.Name, c.PowerPort)
		if err != nil {
			return nil, err
		}
		rw, err := NewReactionWheel(c, updatePeriod(c.Prescaler, deps.Tick), p)
		if err != nil {
			return nil, err
		}
		s.ReactionWheels = append(s.ReactionWheels, rw)
		s.actuators = append(s.actuators, rw)
		s.add(rw, c.Prescaler)
	}
	for _, c := range cfg.TorqueGenerators {
		p, err := port(c.Name, c.PowerPort)
		if err != nil {
			return nil, err
		}
		tg, err := NewTorqueGenerator(c, p, nextSeed())
		if err != nil {
			return nil, err
		}
		s.TorqueGenerators = append(s.TorqueGenerators, tg)
		s.actuators = append(s.actuators, tg)
		s.add(tg, c.Prescaler)
	}
	for _, c := range cfg.SolarArrays {
		p, err := port(c.Name, c.PowerPort)
		if err != nil {
			return nil, err
		}
		sap, err := NewSolarArrayPanel(c, deps.Env, p)
		if err != nil {
			return nil, err
		}
		s.SolarArrays = append(s.SolarArrays, sap)
		s.add(sap, c.Prescaler)
	}
	return s, nil
}

// updatePeriod is how often a component with the given prescaler runs, in
// seconds.
func updatePeriod(prescaler int, tick time.Duration) float64 {
	return (time.Duration(max(prescaler, 1)) * tick).Seconds()
}

// withWalkStep defaults a sensor's random-walk step to its update period,
// since the walk advances once per measurement.
func withWalkStep(c model.SensorConfig, period float64) model.SensorConfig {
	if c.Noise.RandomWalkStepWidth == 0 && period > 0 {
		c.Noise.RandomWalkStepWidth = period
	}
	return c
}

func (s *Set) add(c interface {
	scheduler.Component
	telemetry.Loggable
}, prescaler int) {
	s.scheduled = append(s.scheduled, Scheduled{Component: c, Prescaler: prescaler})
	s.loggables = append(s.loggables, c)
}

func (s *Set) correct(name string, corr []noise.Correction) {
	for _, c := range corr {
		s.Corrections = append(s.Corrections, RangeCorrection{Component: name, Correction: c})
	}
}

// Scheduled returns the components in registration order.
func (s *Set) Scheduled() []Scheduled { return s.scheduled }

// Loggables returns the components in registration order.
func (s *Set) Loggables() []telemetry.Loggable { return s.loggables }

// Actuators returns the force/torque producing components.
func (s *Set) Actuators() []Actuator { return s.actuators }

// GeneratedTorque_b sums the torque of every actuator.
func (s *Set) GeneratedTorque_b() r3.Vec {
	var t r3.Vec
	for _, a := range s.actuators {
		t = r3.Add(t, a.GeneratedTorque_b())
	}
	return t
}

// GeneratedForce_b sums the force of every actuator.
func (s *Set) GeneratedForce_b() r3.Vec {
	var f r3.Vec
	for _, a := range s.actuators {
		f = r3.Add(f, a.GeneratedForce_b())
	}
	return f
}
