package model

// OrbitSource indicates how a spacecraft's orbit is propagated.
type OrbitSource int

const (
	OrbitSourceTwoBody OrbitSource = iota // numerically integrated Keplerian motion
	OrbitSourceSGP4                       // TLE-based orbit propagation
)

// SpacecraftDefinition describes one simulated vehicle. Vectors are body
// frame unless the field name says otherwise; units are SI.
type SpacecraftDefinition struct {
	ID   int
	Name string

	Mass float64 // kg
	// Inertia is the body-frame inertia tensor, row-major [kg m^2].
	Inertia [9]float64

	Attitude AttitudeDefinition
	Orbit    OrbitDefinition

	Disturbances DisturbanceConfig
	Components   ComponentsConfig
}

// AttitudeDefinition holds the initial attitude state.
type AttitudeDefinition struct {
	// QuaternionI2B is scalar-first (w, x, y, z). The zero value means identity.
	QuaternionI2B    [4]float64
	AngularVelocityB [3]float64 // rad/s
}

// OrbitDefinition holds the initial orbit state or the TLE used to derive it.
type OrbitDefinition struct {
	Source OrbitSource

	PositionI [3]float64 // m, inertial
	VelocityI [3]float64 // m/s, inertial

	// TLE lines, used when Source == OrbitSourceSGP4.
	TLE1 string
	TLE2 string
}
