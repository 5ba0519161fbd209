package model

import "time"

// CenterBody identifies the body the spacecraft orbit.
type CenterBody struct {
	Name            string  // e.g. "EARTH"
	GravityConstant float64 // m^3/s^2
	Radius          float64 // m
	J2              float64
}

// Scenario is the fully parsed configuration of one simulation run.
type Scenario struct {
	Name string

	StartTime time.Time
	StepWidth time.Duration // base tick

	// Propagation cadences, in base ticks.
	AttitudeInterval int
	OrbitInterval    int
	LogInterval      int

	Steps int64
	Seed  uint64

	CenterBody CenterBody
	Spacecraft []SpacecraftDefinition
}
