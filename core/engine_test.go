package core

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/spacecraft-simulator/core/environment"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

const earthMu = 3.986004418e14

func circularSpacecraft(id int, radius, phase float64) model.SpacecraftDefinition {
	v := math.Sqrt(earthMu / radius)
	return model.SpacecraftDefinition{
		ID:      id,
		Mass:    50,
		Inertia: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Orbit: model.OrbitDefinition{
			PositionI: [3]float64{radius * math.Cos(phase), radius * math.Sin(phase), 0},
			VelocityI: [3]float64{-v * math.Sin(phase), v * math.Cos(phase), 0},
		},
	}
}

func testScenario(defs ...model.SpacecraftDefinition) model.Scenario {
	earth, _ := environment.CenterBodyByName("EARTH")
	return model.Scenario{
		Name:             "test",
		StartTime:        time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC),
		StepWidth:        100 * time.Millisecond,
		AttitudeInterval: 1,
		OrbitInterval:    1,
		LogInterval:      5,
		Steps:            20,
		Seed:             7,
		CenterBody:       earth,
		Spacecraft:       defs,
	}
}

type fakeMetrics struct {
	steps     int
	count     int
	torques   map[string]float64
	distances map[string]float64
	forgotten []string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{torques: map[string]float64{}, distances: map[string]float64{}}
}

func (f *fakeMetrics) ObserveStep(time.Duration) { f.steps++ }
func (f *fakeMetrics) SetSpacecraftCount(n int)  { f.count = n }
func (f *fakeMetrics) ForgetSpacecraft(n string) { f.forgotten = append(f.forgotten, n) }
func (f *fakeMetrics) SetDisturbanceTorque(sc, d string, norm float64) {
	f.torques[sc+"/"+d] = norm
}
func (f *fakeMetrics) SetRelativeDistance(t, r string, d float64) {
	f.distances[t+"/"+r] = d
}

func TestEngineRunsScenarioSteps(t *testing.T) {
	var out bytes.Buffer
	metrics := newFakeMetrics()
	sc := testScenario(circularSpacecraft(1, 7e6, 0), circularSpacecraft(2, 7e6, 1e-4))
	sc.Spacecraft[0].Name = "alpha"
	sc.Spacecraft[1].Name = "beta"

	e, err := NewEngine(context.Background(), sc, WithTelemetry(&out), WithMetrics(metrics))
	require.NoError(t, err)
	defer e.Close()

	var ticks []int64
	e.RegisterTickListener(func(n int64) { ticks = append(ticks, n) })

	require.NoError(t, e.Run(context.Background(), 0))
	require.EqualValues(t, 20, e.Clock().Count())
	require.Len(t, ticks, 20)
	require.EqualValues(t, 1, ticks[0])
	require.EqualValues(t, 20, ticks[19])

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5, "one header plus a row every 5 ticks")
	require.True(t, strings.HasPrefix(lines[0], "elapsed_time[s],alpha_"))
	require.Contains(t, lines[0], "beta_")
	require.Contains(t, lines[0], "rel_distance_2_1[m]")
	require.True(t, strings.HasPrefix(lines[1], "0.5,"))
	require.Equal(t, strings.Count(lines[0], ","), strings.Count(lines[4], ","))

	require.Equal(t, 20, metrics.steps)
	require.Equal(t, 2, metrics.count)
	chord := 2 * 7e6 * math.Sin(0.5e-4)
	require.InDelta(t, chord, metrics.distances["beta/alpha"], 1)
}

func TestEngineTorqueGeneratorSpinsUp(t *testing.T) {
	def := circularSpacecraft(1, 7e6, 0)
	def.Components.TorqueGenerators = []model.TorqueGeneratorConfig{{
		Name:      "mtq",
		Prescaler: 1,
		CommandB:  [3]float64{0, 0, 1e-3},
	}}
	e, err := NewEngine(context.Background(), testScenario(def))
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, e.Step(context.Background()))
	}
	sc, ok := e.Spacecraft(1)
	require.True(t, ok)
	omega := sc.Dynamics.AngularVelocity_b()
	require.InDelta(t, 1e-3, omega.Z, 1e-9)
	require.InDelta(t, 0, omega.X, 1e-12)
}

func TestEngineSpacecraftChurn(t *testing.T) {
	var out bytes.Buffer
	metrics := newFakeMetrics()
	def := circularSpacecraft(1, 7e6, 0)
	def.Components.Gyros = []model.SensorConfig{{Name: "gyro", Prescaler: 1}}
	e, err := NewEngine(context.Background(), testScenario(def), WithTelemetry(&out), WithMetrics(metrics))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	second := circularSpacecraft(2, 7.1e6, 0.5)
	second.Components.Gyros = []model.SensorConfig{{Name: "gyro2", Prescaler: 2}}
	require.NoError(t, e.AddSpacecraft(ctx, second))
	require.Equal(t, 2, e.Tracker().Len())
	require.Equal(t, 2, e.Scheduler().Len())
	require.Equal(t, 2, metrics.count)

	err = e.AddSpacecraft(ctx, second)
	require.True(t, errors.Is(err, model.ErrInvalidConfiguration), "duplicate add: %v", err)

	require.NoError(t, e.Step(ctx))
	require.NoError(t, e.RemoveSpacecraft(ctx, 1))
	require.Equal(t, 1, e.Tracker().Len())
	require.Equal(t, 1, e.Scheduler().Len())
	require.Equal(t, 1, e.Arena().Len())
	require.Equal(t, []string{"sc1"}, metrics.forgotten)

	err = e.RemoveSpacecraft(ctx, 1)
	require.True(t, errors.Is(err, model.ErrUnknownEntity), "double remove: %v", err)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Step(ctx))
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.NotContains(t, lines[0], "sc1_")
	require.Contains(t, lines[0], "sc2_gyro2")
}

func TestEngineRejectsInvalidScenario(t *testing.T) {
	cases := map[string]func(*model.Scenario){
		"zero step width": func(s *model.Scenario) { s.StepWidth = 0 },
		"negative orbit":  func(s *model.Scenario) { s.OrbitInterval = -1 },
		"zero mass":       func(s *model.Scenario) { s.Spacecraft[0].Mass = 0 },
		"bad prescaler": func(s *model.Scenario) {
			s.Spacecraft[0].Components.Gyros = []model.SensorConfig{{Name: "g", Prescaler: 0}}
		},
		"duplicate ids": func(s *model.Scenario) { s.Spacecraft = append(s.Spacecraft, s.Spacecraft[0]) },
		"unknown port": func(s *model.Scenario) {
			s.Spacecraft[0].Components.Gyros = []model.SensorConfig{{Name: "g", Prescaler: 1, PowerPort: "p"}}
		},
		"third body moon": func(s *model.Scenario) { s.Spacecraft[0].Disturbances.ThirdBody.Bodies = []string{"MOON"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			sc := testScenario(circularSpacecraft(1, 7e6, 0))
			mutate(&sc)
			_, err := NewEngine(context.Background(), sc)
			require.Error(t, err)
			require.True(t, errors.Is(err, model.ErrInvalidConfiguration), "got %v", err)
		})
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e, err := NewEngine(context.Background(), testScenario(circularSpacecraft(1, 7e6, 0)))
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	e.RegisterTickListener(func(n int64) {
		if n == 3 {
			cancel()
		}
	})
	err = e.Run(ctx, -1)
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 3, e.Clock().Count())
}

func TestPrefixedHeader(t *testing.T) {
	p := prefixed{prefix: "sat_", Loggable: stubLoggable{header: "a[m],b[s],"}}
	require.Equal(t, "sat_a[m],sat_b[s],", p.LogHeader())
	require.Equal(t, "1,2,", p.LogValue())
}

type stubLoggable struct{ header string }

func (s stubLoggable) LogHeader() string { return s.header }
func (s stubLoggable) LogValue() string  { return "1,2," }
