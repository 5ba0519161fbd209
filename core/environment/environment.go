// Package environment computes the local environment of each spacecraft:
// Sun position, geomagnetic field, atmospheric density, solar radiation
// pressure and the shadow coefficient.
package environment

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Environment holds the values seen by one spacecraft on the current tick.
type Environment struct {
	body    model.CenterBody
	isEarth bool

	time          time.Time
	sunPositionI  r3.Vec
	sunDirectionB r3.Vec
	fieldI        r3.Vec // nT
	fieldB        r3.Vec // nT
	density       float64
	shadow        float64
	pressure      float64
	flux          float64
}

// New validates the center body constants.
func New(body model.CenterBody) (*Environment, error) {
	if !(body.GravityConstant > 0) || !(body.Radius > 0) {
		return nil, fmt.Errorf("environment: center body %q needs positive gravity constant and radius: %w", body.Name, model.ErrInvalidConfiguration)
	}
	return &Environment{body: body, isEarth: IsEarth(body), shadow: 1}, nil
}

// Update recomputes every quantity for simTime and the spacecraft state.
func (e *Environment) Update(simTime time.Time, s dynamics.State) error {
	pos := s.Position_i()
	if r3.Norm(pos) == 0 {
		return fmt.Errorf("environment: spacecraft at the center of %s: %w", e.body.Name, model.ErrDegenerateGeometry)
	}
	q := s.Quaternion_i2b()
	jd := JulianDate(simTime)

	e.time = simTime
	e.sunPositionI = SunPosition(jd)
	toSun := r3.Sub(e.sunPositionI, pos)
	e.sunDirectionB = frames.FrameConversion(q, r3.Unit(toSun))

	scale := AstronomicalUnit / r3.Norm(toSun)
	e.pressure = SolarPressureAtAU * scale * scale
	e.flux = SolarConstant * scale * scale
	e.shadow = 0
	if frames.HasLineOfSight(pos, e.sunPositionI, e.body.Radius) {
		e.shadow = 1
	}

	if e.isEarth {
		e.fieldI = DipoleField(pos, satellite.ThetaG_JD(jd), e.body.Radius)
		e.fieldB = frames.FrameConversion(q, e.fieldI)
		e.density = Density(r3.Norm(pos) - e.body.Radius)
	}
	return nil
}

// JulianDate converts t to a Julian date with sub-second resolution.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	return satellite.JDay(year, int(month), day, hour, min, sec) + float64(t.Nanosecond())/86400e9
}

// SunPosition returns the geocentric inertial Sun position [m] from the
// low-precision almanac formulae (accurate to about 0.01 degrees).
func SunPosition(jd float64) r3.Vec {
	const deg = math.Pi / 180
	n := jd - 2451545.0
	l := (280.460 + 0.9856474*n) * deg
	g := (357.528 + 0.9856003*n) * deg
	lambda := l + (1.915*math.Sin(g)+0.020*math.Sin(2*g))*deg
	eps := (23.439 - 0.0000004*n) * deg
	r := (1.00014 - 0.01671*math.Cos(g) - 0.00014*math.Cos(2*g)) * AstronomicalUnit
	return r3.Vec{
		X: r * math.Cos(lambda),
		Y: r * math.Cos(eps) * math.Sin(lambda),
		Z: r * math.Sin(eps) * math.Sin(lambda),
	}
}

// First-order IGRF-13 coefficients for 2020 [nT].
const (
	igrfG10 = -29404.8
	igrfG11 = -1450.9
	igrfH11 = 4652.5
)

// DipoleField returns the tilted-dipole geomagnetic field [nT] at the
// inertial position pos, with gmst the Greenwich sidereal angle [rad].
func DipoleField(pos r3.Vec, gmst, radius float64) r3.Vec {
	c, s := math.Cos(gmst), math.Sin(gmst)
	// dipole coefficients rotated from Earth-fixed to inertial
	g := r3.Vec{
		X: c*igrfG11 - s*igrfH11,
		Y: s*igrfG11 + c*igrfH11,
		Z: igrfG10,
	}
	r := r3.Norm(pos)
	u := r3.Scale(1/r, pos)
	k := math.Pow(radius/r, 3)
	return r3.Scale(k, r3.Sub(r3.Scale(3*r3.Dot(g, u), u), g))
}

// Exponential atmosphere table: base altitude [km], base density
// [kg/m^3], scale height [km].
var atmosphere = [...]struct{ h0, rho0, scale float64 }{
	{0, 1.225, 7.249}, {25, 3.899e-2, 6.349}, {30, 1.774e-2, 6.682},
	{40, 3.972e-3, 7.554}, {50, 1.057e-3, 8.382}, {60, 3.206e-4, 7.714},
	{70, 8.770e-5, 6.549}, {80, 1.905e-5, 5.799}, {90, 3.396e-6, 5.382},
	{100, 5.297e-7, 5.877}, {110, 9.661e-8, 7.263}, {120, 2.438e-8, 9.473},
	{130, 8.484e-9, 12.636}, {140, 3.845e-9, 16.149}, {150, 2.070e-9, 22.523},
	{180, 5.464e-10, 29.740}, {200, 2.789e-10, 37.105}, {250, 7.248e-11, 45.546},
	{300, 2.418e-11, 53.628}, {350, 9.518e-12, 53.298}, {400, 3.725e-12, 58.515},
	{450, 1.585e-12, 60.828}, {500, 6.967e-13, 63.822}, {600, 1.454e-13, 71.835},
	{700, 3.614e-14, 88.667}, {800, 1.170e-14, 124.64}, {900, 5.245e-15, 181.05},
	{1000, 3.019e-15, 268.00},
}

// Density returns the atmospheric density [kg/m^3] at altitude [m].
func Density(altitude float64) float64 {
	h := altitude / 1000
	if h < 0 {
		h = 0
	}
	i := len(atmosphere) - 1
	for i > 0 && h < atmosphere[i].h0 {
		i--
	}
	row := atmosphere[i]
	return row.rho0 * math.Exp(-(h-row.h0)/row.scale)
}

func (e *Environment) CenterBody() model.CenterBody { return e.body }
func (e *Environment) IsEarth() bool                { return e.isEarth }
func (e *Environment) Time() time.Time              { return e.time }

// SunPosition_i returns the Sun position relative to the center body [m].
func (e *Environment) SunPosition_i() r3.Vec { return e.sunPositionI }

// SunDirection_b is the unit vector from the spacecraft to the Sun in the
// body frame.
func (e *Environment) SunDirection_b() r3.Vec { return e.sunDirectionB }

func (e *Environment) MagneticField_i() r3.Vec { return e.fieldI }
func (e *Environment) MagneticField_b() r3.Vec { return e.fieldB }

// AtmosphericDensity is zero away from the Earth.
func (e *Environment) AtmosphericDensity() float64 { return e.density }

// ShadowCoefficient is 1 in sunlight and 0 in eclipse.
func (e *Environment) ShadowCoefficient() float64 { return e.shadow }

// SolarPressure is the radiation pressure at the spacecraft's distance
// from the Sun, before shadowing [N/m^2].
func (e *Environment) SolarPressure() float64 { return e.pressure }

// SolarFlux is the power flux at the spacecraft's distance, before
// shadowing [W/m^2].
func (e *Environment) SolarFlux() float64 { return e.flux }

var _ telemetry.Loggable = (*Environment)(nil)

func (e *Environment) LogHeader() string {
	return telemetry.VectorHeader("sun_direction_b", "-") +
		telemetry.VectorHeader("mag_field_b", "nT") +
		telemetry.ScalarHeader("air_density", "kg/m3") +
		telemetry.ScalarHeader("shadow_coefficient", "-")
}

func (e *Environment) LogValue() string {
	return telemetry.VectorValue(e.sunDirectionB) +
		telemetry.VectorValue(e.fieldB) +
		telemetry.ScalarValue(e.density) +
		telemetry.ScalarValue(e.shadow)
}
