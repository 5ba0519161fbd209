package model

// DisturbanceConfig enables and parameterises each environmental effect.
// Which effects exist at all is decided by the center body; the enable
// flags only gate effects that exist.
type DisturbanceConfig struct {
	GravityGradient GravityGradientConfig
	Magnetic        MagneticConfig
	SolarRadiation  SurfaceConfig
	AirDrag         SurfaceConfig
	ThirdBody       ThirdBodyConfig
	Geopotential    GeopotentialConfig
}

type GravityGradientConfig struct {
	Enabled bool
}

// MagneticConfig describes the residual magnetic moment of the spacecraft.
type MagneticConfig struct {
	Enabled bool

	ConstantMoment      [3]float64 // A m^2
	RandomWalkStdDev    [3]float64 // A m^2
	RandomWalkLimit     [3]float64 // A m^2
	RandomWalkStepWidth float64    // s, defaults to 0.1
	NoiseStdDev         float64    // A m^2
}

// SurfaceConfig is a single effective surface used by the solar radiation
// and air drag models.
type SurfaceConfig struct {
	Enabled bool

	Area             float64    // m^2
	Coefficient      float64    // C_r for radiation, C_d for drag
	CenterOfPressure [3]float64 // m, from center of mass
}

type ThirdBodyConfig struct {
	Enabled bool
	Bodies  []string // currently "SUN"
}

type GeopotentialConfig struct {
	Enabled bool
}
