package core

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

func TestLoadScenarioDefaults(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(`{
		"step_width_s": 0.5,
		"spacecraft": [{
			"id": 3,
			"mass": 10,
			"inertia": [1,0,0, 0,1,0, 0,0,1],
			"orbit": {"position_i": [7000000,0,0], "velocity_i": [0,7546,0]},
			"components": {"gyros": [{"name": "g"}]}
		}]
	}`))
	require.NoError(t, err)

	require.Equal(t, 500*time.Millisecond, sc.StepWidth)
	require.Equal(t, defaultStartTime, sc.StartTime)
	require.Equal(t, 1, sc.AttitudeInterval)
	require.Equal(t, 1, sc.OrbitInterval)
	require.Equal(t, 1, sc.LogInterval)
	require.Equal(t, "EARTH", sc.CenterBody.Name)
	require.Greater(t, sc.CenterBody.GravityConstant, 3.9e14)

	require.Len(t, sc.Spacecraft, 1)
	def := sc.Spacecraft[0]
	require.Equal(t, 3, def.ID)
	require.Equal(t, model.OrbitSourceTwoBody, def.Orbit.Source)
	require.Equal(t, 1, def.Components.Gyros[0].Prescaler)
}

func TestLoadScenarioCustomBody(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(`{
		"step_width_s": 1,
		"center_body": {"name": "ceres", "gravity_constant": 6.26e10, "radius": 469700}
	}`))
	require.NoError(t, err)
	require.Equal(t, "CERES", sc.CenterBody.Name)
	require.Equal(t, 469700.0, sc.CenterBody.Radius)

	moon, err := LoadScenario(strings.NewReader(`{"step_width_s": 1, "center_body": {"name": "Moon"}}`))
	require.NoError(t, err)
	require.Equal(t, "MOON", moon.CenterBody.Name)
	require.Greater(t, moon.CenterBody.Radius, 1.7e6)
}

func TestLoadScenarioErrors(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"step_width_s": `,
		"unknown field":  `{"step_width_s": 1, "tick": 3}`,
		"no step width":  `{}`,
		"bad start time": `{"step_width_s": 1, "start_time": "yesterday"}`,
		"unknown body":   `{"step_width_s": 1, "center_body": {"name": "VULCAN"}}`,
		"unknown source": `{"step_width_s": 1, "spacecraft": [{"id": 1, "orbit": {"source": "ephemeris"}}]}`,
		"duplicate ids":  `{"step_width_s": 1, "spacecraft": [{"id": 1}, {"id": 1}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScenario(strings.NewReader(payload))
			require.Error(t, err)
			require.True(t, errors.Is(err, model.ErrInvalidConfiguration), "got %v", err)
		})
	}
}

func TestShippedScenarioRuns(t *testing.T) {
	f, err := os.Open("../configs/leo_pair.json")
	require.NoError(t, err)
	defer f.Close()

	sc, err := LoadScenario(f)
	require.NoError(t, err)
	require.Len(t, sc.Spacecraft, 2)
	require.Equal(t, model.OrbitSourceSGP4, sc.Spacecraft[1].Orbit.Source)
	require.Equal(t, [3]float64{1, 2, 0}, sc.Spacecraft[0].Components.ReactionWheels[0].LagCoefficients)

	e, err := NewEngine(context.Background(), sc)
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Run(context.Background(), 200))

	chief, ok := e.Spacecraft(1)
	require.True(t, ok)
	wheel := chief.Components.ReactionWheels[0]
	require.Greater(t, wheel.Speed(), 0.0, "wheel powered at tick 100 should spin up")
	d, err := e.Tracker().RelativeDistance(2, 1)
	require.NoError(t, err)
	require.Greater(t, d, 0.0)
}
