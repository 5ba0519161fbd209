package component

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/core/scheduler"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// PowerControlUnit owns the power ports and switches them on a schedule.
// It is always powered.
type PowerControlUnit struct {
	name   string
	ports  []*PowerPort
	events []model.PowerEvent
	next   int
}

var (
	_ scheduler.Component = (*PowerControlUnit)(nil)
	_ telemetry.Loggable  = (*PowerControlUnit)(nil)
)

func NewPowerControlUnit(cfg model.PowerControlConfig) (*PowerControlUnit, error) {
	pcu := &PowerControlUnit{name: cfg.Name}
	seen := make(map[string]bool, len(cfg.Ports))
	for _, p := range cfg.Ports {
		if p.Name == "" || seen[p.Name] {
			return nil, fmt.Errorf("power control %s: empty or duplicate port %q: %w", cfg.Name, p.Name, model.ErrInvalidConfiguration)
		}
		seen[p.Name] = true
		pcu.ports = append(pcu.ports, NewPowerPort(p.Name, p.InitiallyOn))
	}
	for _, e := range cfg.Events {
		if !seen[e.Port] {
			return nil, fmt.Errorf("power control %s: event for unknown port %q: %w", cfg.Name, e.Port, model.ErrInvalidConfiguration)
		}
	}
	pcu.events = append([]model.PowerEvent(nil), cfg.Events...)
	sort.SliceStable(pcu.events, func(i, j int) bool { return pcu.events[i].Tick < pcu.events[j].Tick })
	return pcu, nil
}

func (pcu *PowerControlUnit) Name() string { return pcu.name }

// Port looks up a port by name.
func (pcu *PowerControlUnit) Port(name string) (*PowerPort, bool) {
	for _, p := range pcu.ports {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

// MainRoutine applies every event scheduled at or before count.
func (pcu *PowerControlUnit) MainRoutine(count int64) {
	for pcu.next < len(pcu.events) && pcu.events[pcu.next].Tick <= count {
		e := pcu.events[pcu.next]
		if p, ok := pcu.Port(e.Port); ok {
			p.SetOn(e.On)
		}
		pcu.next++
	}
}

func (pcu *PowerControlUnit) LogHeader() string {
	h := ""
	for _, p := range pcu.ports {
		h += telemetry.ScalarHeader(pcu.name+"_"+p.name+"_on", "-")
	}
	return h
}

func (pcu *PowerControlUnit) LogValue() string {
	v := ""
	for _, p := range pcu.ports {
		v += telemetry.BoolValue(p.on)
	}
	return v
}

// SolarArrayPanel converts sunlight into electrical power.
type SolarArrayPanel struct {
	base
	env        Environment
	normal     r3.Vec
	area       float64
	efficiency float64
	power      float64
}

var (
	_ scheduler.Component       = (*SolarArrayPanel)(nil)
	_ scheduler.PowerOffHandler = (*SolarArrayPanel)(nil)
)

func NewSolarArrayPanel(cfg model.SolarArrayConfig, env Environment, port *PowerPort) (*SolarArrayPanel, error) {
	n := frames.Vec(cfg.NormalB)
	if r3.Norm(n) == 0 {
		return nil, fmt.Errorf("solar array %s: zero normal: %w", cfg.Name, model.ErrInvalidConfiguration)
	}
	if cfg.NumberOfSeries < 1 || cfg.NumberOfParallel < 1 || cfg.CellArea <= 0 {
		return nil, fmt.Errorf("solar array %s: cell layout and area must be positive: %w", cfg.Name, model.ErrInvalidConfiguration)
	}
	return &SolarArrayPanel{
		base:       base{name: cfg.Name, port: port},
		env:        env,
		normal:     r3.Unit(n),
		area:       float64(cfg.NumberOfSeries*cfg.NumberOfParallel) * cfg.CellArea,
		efficiency: cfg.CellEfficiency * cfg.TransmissionEfficiency,
	}, nil
}

// MainRoutine computes shadow · flux · area · η · cosθ, clamped at zero
// for a panel facing away from the Sun.
func (s *SolarArrayPanel) MainRoutine(int64) {
	cos := math.Max(0, r3.Dot(s.normal, s.env.SunDirection_b()))
	s.power = s.env.ShadowCoefficient() * s.env.SolarFlux() * s.area * s.efficiency * cos
}

func (s *SolarArrayPanel) PowerOffRoutine() { s.power = 0 }

// GeneratedPower is in watts.
func (s *SolarArrayPanel) GeneratedPower() float64 { return s.power }

func (s *SolarArrayPanel) LogHeader() string { return telemetry.ScalarHeader(s.name+"_power", "W") }
func (s *SolarArrayPanel) LogValue() string  { return telemetry.ScalarValue(s.power) }
