package environment

import (
	"strings"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Physical constants.
const (
	AstronomicalUnit = 1.495978707e11 // m
	SolarConstant    = 1366.0         // W/m^2 at 1 AU
	SpeedOfLight     = 299792458.0    // m/s
	// SolarPressureAtAU is the radiation pressure at 1 AU [N/m^2].
	SolarPressureAtAU  = SolarConstant / SpeedOfLight
	SunGravityConstant = 1.32712440018e20 // m^3/s^2
)

var centerBodies = map[string]model.CenterBody{
	"EARTH": {Name: "EARTH", GravityConstant: 3.986004418e14, Radius: 6378137.0, J2: 1.08262668e-3},
	"MOON":  {Name: "MOON", GravityConstant: 4.9028e12, Radius: 1737400.0, J2: 2.033e-4},
	"MARS":  {Name: "MARS", GravityConstant: 4.282837e13, Radius: 3396190.0, J2: 1.96045e-3},
}

// CenterBodyByName returns the default constants for a named body. Names
// are case-insensitive.
func CenterBodyByName(name string) (model.CenterBody, bool) {
	b, ok := centerBodies[strings.ToUpper(strings.TrimSpace(name))]
	return b, ok
}

// IsEarth reports whether b is the Earth. Several models (atmosphere,
// geomagnetic field, geopotential) only exist for the Earth.
func IsEarth(b model.CenterBody) bool {
	return strings.EqualFold(b.Name, "EARTH")
}
