package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/signalsfoundry/spacecraft-simulator/core/environment"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// defaultStartTime is used when a scenario omits start_time.
var defaultStartTime = time.Date(2020, time.January, 1, 11, 0, 0, 0, time.UTC)

// internal JSON shapes – keep them unexported so we're free to evolve them.
type scenarioJSON struct {
	Name             string           `json:"name"`
	StartTime        string           `json:"start_time"` // RFC 3339
	StepWidthSeconds float64          `json:"step_width_s"`
	AttitudeInterval int              `json:"attitude_interval"`
	OrbitInterval    int              `json:"orbit_interval"`
	LogInterval      int              `json:"log_interval"`
	Steps            int64            `json:"steps"`
	Seed             uint64           `json:"seed"`
	CenterBody       centerBodyJSON   `json:"center_body"`
	Spacecraft       []spacecraftJSON `json:"spacecraft"`
}

type centerBodyJSON struct {
	Name            string  `json:"name"`
	GravityConstant float64 `json:"gravity_constant"`
	Radius          float64 `json:"radius"`
	J2              float64 `json:"j2"`
}

type spacecraftJSON struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Mass         float64          `json:"mass"`
	Inertia      [9]float64       `json:"inertia"`
	Attitude     attitudeJSON     `json:"attitude"`
	Orbit        orbitJSON        `json:"orbit"`
	Disturbances disturbancesJSON `json:"disturbances"`
	Components   componentsJSON   `json:"components"`
}

type attitudeJSON struct {
	QuaternionI2B    [4]float64 `json:"quaternion_i2b"`
	AngularVelocityB [3]float64 `json:"angular_velocity_b"`
}

type orbitJSON struct {
	Source    string     `json:"source"` // "two_body" | "sgp4"
	PositionI [3]float64 `json:"position_i"`
	VelocityI [3]float64 `json:"velocity_i"`
	TLE1      string     `json:"tle1"`
	TLE2      string     `json:"tle2"`
}

type disturbancesJSON struct {
	GravityGradient enabledJSON  `json:"gravity_gradient"`
	Magnetic        magneticJSON `json:"magnetic"`
	SolarRadiation  surfaceJSON  `json:"solar_radiation"`
	AirDrag         surfaceJSON  `json:"air_drag"`
	ThirdBody       struct {
		Enabled bool     `json:"enabled"`
		Bodies  []string `json:"bodies"`
	} `json:"third_body"`
	Geopotential enabledJSON `json:"geopotential"`
}

type enabledJSON struct {
	Enabled bool `json:"enabled"`
}

type magneticJSON struct {
	Enabled             bool       `json:"enabled"`
	ConstantMoment      [3]float64 `json:"constant_moment"`
	RandomWalkStdDev    [3]float64 `json:"random_walk_std_dev"`
	RandomWalkLimit     [3]float64 `json:"random_walk_limit"`
	RandomWalkStepWidth float64    `json:"random_walk_step_width_s"`
	NoiseStdDev         float64    `json:"noise_std_dev"`
}

type surfaceJSON struct {
	Enabled          bool       `json:"enabled"`
	Area             float64    `json:"area"`
	Coefficient      float64    `json:"coefficient"`
	CenterOfPressure [3]float64 `json:"center_of_pressure"`
}

type noiseJSON struct {
	ScaleFactor         []float64 `json:"scale_factor"`
	RangeToConst        []float64 `json:"range_to_const"`
	RangeToZero         []float64 `json:"range_to_zero"`
	Bias                []float64 `json:"bias"`
	NormalStdDev        []float64 `json:"normal_std_dev"`
	RandomWalkStepWidth float64   `json:"random_walk_step_width_s"`
	RandomWalkStdDev    []float64 `json:"random_walk_std_dev"`
	RandomWalkLimit     []float64 `json:"random_walk_limit"`
}

type componentsJSON struct {
	PowerControl *struct {
		Name      string `json:"name"`
		Prescaler int    `json:"prescaler"`
		Ports     []struct {
			Name        string `json:"name"`
			InitiallyOn bool   `json:"initially_on"`
		} `json:"ports"`
		Events []struct {
			Tick int64  `json:"tick"`
			Port string `json:"port"`
			On   bool   `json:"on"`
		} `json:"events"`
	} `json:"power_control"`
	Gyros          []sensorJSON `json:"gyros"`
	Magnetometers  []sensorJSON `json:"magnetometers"`
	ReactionWheels []struct {
		commonJSON
		StepWidth       float64    `json:"step_width_s"`
		RotorInertia    float64    `json:"rotor_inertia"`
		AxisB           [3]float64 `json:"axis_b"`
		InitialSpeed    float64    `json:"initial_speed"`
		TargetSpeed     float64    `json:"target_speed"`
		LagCoefficients [3]float64 `json:"lag_coefficients"`
	} `json:"reaction_wheels"`
	TorqueGenerators []struct {
		commonJSON
		CommandB             [3]float64 `json:"command_b"`
		MagnitudeErrorStdDev float64    `json:"magnitude_error_std_dev"`
	} `json:"torque_generators"`
	SolarArrays []struct {
		commonJSON
		NumberOfSeries         int        `json:"number_of_series"`
		NumberOfParallel       int        `json:"number_of_parallel"`
		CellArea               float64    `json:"cell_area"`
		NormalB                [3]float64 `json:"normal_b"`
		CellEfficiency         float64    `json:"cell_efficiency"`
		TransmissionEfficiency float64    `json:"transmission_efficiency"`
	} `json:"solar_arrays"`
}

// commonJSON holds the fields every scheduled component carries.
type commonJSON struct {
	Name      string `json:"name"`
	Prescaler int    `json:"prescaler"`
	PowerPort string `json:"power_port"`
}

type sensorJSON struct {
	commonJSON
	QuaternionB2C [4]float64 `json:"quaternion_b2c"`
	Noise         noiseJSON  `json:"noise"`
}

// LoadScenario reads a JSON scenario from r and converts it into a
// model.Scenario. Omitted intervals and prescalers default to 1, an omitted start time to
// 2020-01-01T11:00:00Z and an omitted center body to the Earth. Unknown
// fields, unknown orbit sources and duplicate spacecraft ids are rejected;
// everything else is validated when the engine is built.
func LoadScenario(r io.Reader) (model.Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return model.Scenario{}, fmt.Errorf("LoadScenario: decode failed: %w: %w", err, model.ErrInvalidConfiguration)
	}

	sc := model.Scenario{
		Name:             payload.Name,
		StartTime:        defaultStartTime,
		StepWidth:        time.Duration(payload.StepWidthSeconds * float64(time.Second)),
		AttitudeInterval: orDefault(payload.AttitudeInterval),
		OrbitInterval:    orDefault(payload.OrbitInterval),
		LogInterval:      orDefault(payload.LogInterval),
		Steps:            payload.Steps,
		Seed:             payload.Seed,
	}
	if payload.StartTime != "" {
		t, err := time.Parse(time.RFC3339Nano, payload.StartTime)
		if err != nil {
			return model.Scenario{}, fmt.Errorf("LoadScenario: start_time: %w: %w", err, model.ErrInvalidConfiguration)
		}
		sc.StartTime = t.UTC()
	}
	if sc.StepWidth <= 0 {
		return model.Scenario{}, fmt.Errorf("LoadScenario: step_width_s must be positive: %w", model.ErrInvalidConfiguration)
	}

	body, err := centerBodyFromJSON(payload.CenterBody)
	if err != nil {
		return model.Scenario{}, err
	}
	sc.CenterBody = body

	seen := make(map[int]bool, len(payload.Spacecraft))
	for _, js := range payload.Spacecraft {
		if seen[js.ID] {
			return model.Scenario{}, fmt.Errorf("LoadScenario: duplicate spacecraft id %d: %w", js.ID, model.ErrInvalidConfiguration)
		}
		seen[js.ID] = true
		def, err := spacecraftFromJSON(js)
		if err != nil {
			return model.Scenario{}, err
		}
		sc.Spacecraft = append(sc.Spacecraft, def)
	}
	return sc, nil
}

func orDefault(interval int) int {
	if interval == 0 {
		return 1
	}
	return interval
}

// centerBodyFromJSON starts from the named body's constants and applies
// any explicit overrides.
func centerBodyFromJSON(js centerBodyJSON) (model.CenterBody, error) {
	name := strings.ToUpper(strings.TrimSpace(js.Name))
	if name == "" {
		name = "EARTH"
	}
	body, known := environment.CenterBodyByName(name)
	if !known {
		body = model.CenterBody{Name: name}
	}
	if js.GravityConstant != 0 {
		body.GravityConstant = js.GravityConstant
	}
	if js.Radius != 0 {
		body.Radius = js.Radius
	}
	if js.J2 != 0 {
		body.J2 = js.J2
	}
	if !known && (body.GravityConstant <= 0 || body.Radius <= 0) {
		return model.CenterBody{}, fmt.Errorf("LoadScenario: center body %q needs gravity_constant and radius: %w", name, model.ErrInvalidConfiguration)
	}
	return body, nil
}

func orbitSourceFromString(s string) (model.OrbitSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "two_body", "kepler":
		return model.OrbitSourceTwoBody, nil
	case "sgp4", "tle":
		return model.OrbitSourceSGP4, nil
	default:
		return 0, fmt.Errorf("LoadScenario: unknown orbit source %q: %w", s, model.ErrInvalidConfiguration)
	}
}

func spacecraftFromJSON(js spacecraftJSON) (model.SpacecraftDefinition, error) {
	source, err := orbitSourceFromString(js.Orbit.Source)
	if err != nil {
		return model.SpacecraftDefinition{}, err
	}
	d := js.Disturbances
	def := model.SpacecraftDefinition{
		ID:      js.ID,
		Name:    js.Name,
		Mass:    js.Mass,
		Inertia: js.Inertia,
		Attitude: model.AttitudeDefinition{
			QuaternionI2B:    js.Attitude.QuaternionI2B,
			AngularVelocityB: js.Attitude.AngularVelocityB,
		},
		Orbit: model.OrbitDefinition{
			Source:    source,
			PositionI: js.Orbit.PositionI,
			VelocityI: js.Orbit.VelocityI,
			TLE1:      js.Orbit.TLE1,
			TLE2:      js.Orbit.TLE2,
		},
		Disturbances: model.DisturbanceConfig{
			GravityGradient: model.GravityGradientConfig{Enabled: d.GravityGradient.Enabled},
			Magnetic: model.MagneticConfig{
				Enabled:             d.Magnetic.Enabled,
				ConstantMoment:      d.Magnetic.ConstantMoment,
				RandomWalkStdDev:    d.Magnetic.RandomWalkStdDev,
				RandomWalkLimit:     d.Magnetic.RandomWalkLimit,
				RandomWalkStepWidth: d.Magnetic.RandomWalkStepWidth,
				NoiseStdDev:         d.Magnetic.NoiseStdDev,
			},
			SolarRadiation: model.SurfaceConfig(d.SolarRadiation),
			AirDrag:        model.SurfaceConfig(d.AirDrag),
			ThirdBody:      model.ThirdBodyConfig{Enabled: d.ThirdBody.Enabled, Bodies: d.ThirdBody.Bodies},
			Geopotential:   model.GeopotentialConfig{Enabled: d.Geopotential.Enabled},
		},
		Components: componentsFromJSON(js.Components),
	}
	return def, nil
}

func componentsFromJSON(js componentsJSON) model.ComponentsConfig {
	var cfg model.ComponentsConfig
	if pc := js.PowerControl; pc != nil {
		pcu := &model.PowerControlConfig{Name: pc.Name, Prescaler: orDefault(pc.Prescaler)}
		for _, p := range pc.Ports {
			pcu.Ports = append(pcu.Ports, model.PowerPortConfig{Name: p.Name, InitiallyOn: p.InitiallyOn})
		}
		for _, ev := range pc.Events {
			pcu.Events = append(pcu.Events, model.PowerEvent{Tick: ev.Tick, Port: ev.Port, On: ev.On})
		}
		cfg.PowerControl = pcu
	}
	for _, s := range js.Gyros {
		cfg.Gyros = append(cfg.Gyros, sensorFromJSON(s))
	}
	for _, s := range js.Magnetometers {
		cfg.Magnetometers = append(cfg.Magnetometers, sensorFromJSON(s))
	}
	for _, rw := range js.ReactionWheels {
		cfg.ReactionWheels = append(cfg.ReactionWheels, model.ReactionWheelConfig{
			Name:            rw.Name,
			Prescaler:       orDefault(rw.Prescaler),
			PowerPort:       rw.PowerPort,
			StepWidth:       rw.StepWidth,
			RotorInertia:    rw.RotorInertia,
			AxisB:           rw.AxisB,
			InitialSpeed:    rw.InitialSpeed,
			TargetSpeed:     rw.TargetSpeed,
			LagCoefficients: rw.LagCoefficients,
		})
	}
	for _, tg := range js.TorqueGenerators {
		cfg.TorqueGenerators = append(cfg.TorqueGenerators, model.TorqueGeneratorConfig{
			Name:                 tg.Name,
			Prescaler:            orDefault(tg.Prescaler),
			PowerPort:            tg.PowerPort,
			CommandB:             tg.CommandB,
			MagnitudeErrorStdDev: tg.MagnitudeErrorStdDev,
		})
	}
	for _, sa := range js.SolarArrays {
		cfg.SolarArrays = append(cfg.SolarArrays, model.SolarArrayConfig{
			Name:                   sa.Name,
			Prescaler:              orDefault(sa.Prescaler),
			PowerPort:              sa.PowerPort,
			NumberOfSeries:         sa.NumberOfSeries,
			NumberOfParallel:       sa.NumberOfParallel,
			CellArea:               sa.CellArea,
			NormalB:                sa.NormalB,
			CellEfficiency:         sa.CellEfficiency,
			TransmissionEfficiency: sa.TransmissionEfficiency,
		})
	}
	return cfg
}

func sensorFromJSON(js sensorJSON) model.SensorConfig {
	return model.SensorConfig{
		Name:          js.Name,
		Prescaler:     orDefault(js.Prescaler),
		PowerPort:     js.PowerPort,
		QuaternionB2C: js.QuaternionB2C,
		Noise: model.NoiseConfig{
			ScaleFactor:         js.Noise.ScaleFactor,
			RangeToConst:        js.Noise.RangeToConst,
			RangeToZero:         js.Noise.RangeToZero,
			Bias:                js.Noise.Bias,
			NormalStdDev:        js.Noise.NormalStdDev,
			RandomWalkStepWidth: js.Noise.RandomWalkStepWidth,
			RandomWalkStdDev:    js.Noise.RandomWalkStdDev,
			RandomWalkLimit:     js.Noise.RandomWalkLimit,
		},
	}
}
