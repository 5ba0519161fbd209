package disturbance

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/core/environment"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
	"github.com/signalsfoundry/spacecraft-simulator/timectrl"
)

// Accumulator receives the aggregate outputs.
type Accumulator interface {
	AddTorque_b(r3.Vec)
	AddForce_b(r3.Vec)
	AddAcceleration_i(r3.Vec)
}

// Aggregator owns the variants of one spacecraft and their sums.
type Aggregator struct {
	variants []*Variant

	torqueB       r3.Vec
	forceB        r3.Vec
	accelerationI r3.Vec
}

// NewAggregator resolves the variant list for the center body once. Drag,
// magnetic and geopotential exist only around the Earth.
func NewAggregator(cfg model.DisturbanceConfig, body model.CenterBody, seed uint64) (*Aggregator, error) {
	earth := environment.IsEarth(body)
	a := &Aggregator{}

	a.variants = append(a.variants, &Variant{Kind: GravityGradient, Enabled: cfg.GravityGradient.Enabled, body: body})

	if err := validateSurface("solar radiation", cfg.SolarRadiation); err != nil {
		return nil, err
	}
	a.variants = append(a.variants, &Variant{Kind: SolarRadiation, Enabled: cfg.SolarRadiation.Enabled, surface: cfg.SolarRadiation})

	if earth {
		if err := validateSurface("air drag", cfg.AirDrag); err != nil {
			return nil, err
		}
		a.variants = append(a.variants, &Variant{Kind: AirDrag, Enabled: cfg.AirDrag.Enabled, surface: cfg.AirDrag})

		mm, err := newMagneticMoment(cfg.Magnetic, seed)
		if err != nil {
			return nil, fmt.Errorf("disturbance: %w", err)
		}
		a.variants = append(a.variants, &Variant{Kind: Magnetic, Enabled: cfg.Magnetic.Enabled, magnetic: mm})
	}

	for _, b := range cfg.ThirdBody.Bodies {
		if !strings.EqualFold(b, "SUN") {
			return nil, fmt.Errorf("disturbance: unsupported third body %q: %w", b, model.ErrInvalidConfiguration)
		}
	}
	a.variants = append(a.variants, &Variant{Kind: ThirdBody, Enabled: cfg.ThirdBody.Enabled, body: body})

	if earth {
		a.variants = append(a.variants, &Variant{Kind: Geopotential, Enabled: cfg.Geopotential.Enabled, body: body})
	}
	return a, nil
}

func validateSurface(name string, s model.SurfaceConfig) error {
	if s.Area < 0 || s.Coefficient < 0 {
		return fmt.Errorf("disturbance: %s area and coefficient must be non-negative: %w", name, model.ErrInvalidConfiguration)
	}
	return nil
}

// Update recomputes the aggregates whose propagation is due. Torque and
// force are rebuilt only when attitude is due; acceleration only when
// orbit is due. Otherwise the previous sums are kept.
func (a *Aggregator) Update(env Environment, s dynamics.State, flags timectrl.Flags) error {
	if flags.AttitudeDue {
		a.torqueB, a.forceB = r3.Vec{}, r3.Vec{}
		for _, v := range a.variants {
			if v.Kind.Class() != AttitudeClass {
				continue
			}
			if err := v.UpdateIfEnabled(env, s); err != nil {
				return err
			}
			a.torqueB = r3.Add(a.torqueB, v.torqueB)
			a.forceB = r3.Add(a.forceB, v.forceB)
		}
	}
	if flags.OrbitDue {
		a.accelerationI = r3.Vec{}
		for _, v := range a.variants {
			if v.Kind.Class() != PositionClass {
				continue
			}
			if err := v.UpdateIfEnabled(env, s); err != nil {
				return err
			}
			a.accelerationI = r3.Add(a.accelerationI, v.accelerationI)
		}
	}
	return nil
}

// ApplyTo adds the aggregates to acc.
func (a *Aggregator) ApplyTo(acc Accumulator) {
	acc.AddTorque_b(a.torqueB)
	acc.AddForce_b(a.forceB)
	acc.AddAcceleration_i(a.accelerationI)
}

func (a *Aggregator) Torque_b() r3.Vec       { return a.torqueB }
func (a *Aggregator) Force_b() r3.Vec        { return a.forceB }
func (a *Aggregator) Acceleration_i() r3.Vec { return a.accelerationI }

// Variants returns the variants in construction order.
func (a *Aggregator) Variants() []*Variant { return a.variants }

// Variant returns the variant of the given kind, if the center body has one.
func (a *Aggregator) Variant(k Kind) (*Variant, bool) {
	for _, v := range a.variants {
		if v.Kind == k {
			return v, true
		}
	}
	return nil, false
}

// SetEnabled toggles a variant. The change takes effect on the next
// Update of its class.
func (a *Aggregator) SetEnabled(k Kind, enabled bool) error {
	v, ok := a.Variant(k)
	if !ok {
		return fmt.Errorf("disturbance: %s not present for this center body: %w", k, model.ErrUnknownEntity)
	}
	v.Enabled = enabled
	return nil
}

var _ telemetry.Loggable = (*Aggregator)(nil)

func (a *Aggregator) LogHeader() string {
	var b strings.Builder
	for _, v := range a.variants {
		b.WriteString(v.LogHeader())
	}
	return b.String()
}

func (a *Aggregator) LogValue() string {
	var b strings.Builder
	for _, v := range a.variants {
		b.WriteString(v.LogValue())
	}
	return b.String()
}
