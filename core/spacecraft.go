package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/spacecraft-simulator/core/component"
	"github.com/signalsfoundry/spacecraft-simulator/core/disturbance"
	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/core/environment"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
	"github.com/signalsfoundry/spacecraft-simulator/timectrl"
)

// Spacecraft bundles everything the engine steps for one vehicle. The
// dynamics are owned by the arena; the bundle keeps the typed handle so
// the engine can drive accumulators and propagation.
type Spacecraft struct {
	ID   int
	Name string

	Dynamics     *dynamics.Dynamics
	Environment  *environment.Environment
	Disturbances *disturbance.Aggregator
	Components   *component.Set

	loggables []telemetry.Loggable
}

// spacecraftSeed spreads the run seed over spacecraft ids so two vehicles
// never share a noise stream.
func spacecraftSeed(runSeed uint64, id int) uint64 {
	return runSeed ^ (uint64(id)+1)*0xbf58476d1ce4e5b9
}

// NewSpacecraft builds the bundle for def. Construction stops at the first
// invalid part.
func NewSpacecraft(def model.SpacecraftDefinition, body model.CenterBody, clock *timectrl.TimeController, runSeed uint64) (*Spacecraft, error) {
	name := def.Name
	if name == "" {
		name = fmt.Sprintf("sc%d", def.ID)
	}

	dyn, err := dynamics.New(def, body, clock.StartTime, dynamics.Steps{
		Attitude: clock.AttitudeStep(),
		Orbit:    clock.OrbitStep(),
	})
	if err != nil {
		return nil, err
	}
	env, err := environment.New(body)
	if err != nil {
		return nil, fmt.Errorf("spacecraft %d: %w", def.ID, err)
	}
	// Components read the environment from their first run.
	if err := env.Update(clock.StartTime, dyn); err != nil {
		return nil, fmt.Errorf("spacecraft %d: initial environment: %w", def.ID, err)
	}

	seed := spacecraftSeed(runSeed, def.ID)
	agg, err := disturbance.NewAggregator(def.Disturbances, body, seed)
	if err != nil {
		return nil, fmt.Errorf("spacecraft %d: %w", def.ID, err)
	}
	set, err := component.Build(def.Components, component.Deps{
		State: dyn,
		Env:   env,
		Tick:  clock.Tick,
		Seed:  seed + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("spacecraft %d: %w", def.ID, err)
	}

	sc := &Spacecraft{
		ID:           def.ID,
		Name:         name,
		Dynamics:     dyn,
		Environment:  env,
		Disturbances: agg,
		Components:   set,
	}
	prefix := name + "_"
	sc.loggables = append(sc.loggables,
		prefixed{prefix: prefix, Loggable: dyn},
		prefixed{prefix: prefix, Loggable: env},
		prefixed{prefix: prefix, Loggable: agg},
	)
	for _, l := range set.Loggables() {
		sc.loggables = append(sc.loggables, prefixed{prefix: prefix, Loggable: l})
	}
	return sc, nil
}

// updateEnvironment refreshes the local environment and the disturbance
// sums, then loads the sums into freshly cleared accumulators.
func (s *Spacecraft) updateEnvironment(now time.Time, flags timectrl.Flags) error {
	if err := s.Environment.Update(now, s.Dynamics); err != nil {
		return fmt.Errorf("spacecraft %d: environment: %w", s.ID, err)
	}
	if err := s.Disturbances.Update(s.Environment, s.Dynamics, flags); err != nil {
		return fmt.Errorf("spacecraft %d: %w", s.ID, err)
	}
	s.Dynamics.ClearForceTorque()
	s.Disturbances.ApplyTo(s.Dynamics)
	return nil
}

// propagate adds the actuator outputs and advances the dynamics.
func (s *Spacecraft) propagate(now time.Time, flags timectrl.Flags) error {
	s.Dynamics.AddTorque_b(s.Components.GeneratedTorque_b())
	s.Dynamics.AddForce_b(s.Components.GeneratedForce_b())
	if err := s.Dynamics.Update(now, flags); err != nil {
		return fmt.Errorf("spacecraft %d: dynamics: %w", s.ID, err)
	}
	return nil
}

// Loggables returns the telemetry columns of the spacecraft, each prefixed
// with its name.
func (s *Spacecraft) Loggables() []telemetry.Loggable { return s.loggables }

// prefixed namespaces every header column of a loggable.
type prefixed struct {
	prefix string
	telemetry.Loggable
}

func (p prefixed) LogHeader() string {
	cols := strings.Split(p.Loggable.LogHeader(), ",")
	var b strings.Builder
	for _, c := range cols {
		if c == "" {
			continue
		}
		b.WriteString(p.prefix)
		b.WriteString(c)
		b.WriteByte(',')
	}
	return b.String()
}
