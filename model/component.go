package model

// ComponentsConfig lists the emulated onboard components of one spacecraft.
type ComponentsConfig struct {
	PowerControl     *PowerControlConfig
	Gyros            []SensorConfig
	Magnetometers    []SensorConfig
	ReactionWheels   []ReactionWheelConfig
	TorqueGenerators []TorqueGeneratorConfig
	SolarArrays      []SolarArrayConfig
}

// SensorConfig is shared by three-axis sensors (gyro, magnetometer).
type SensorConfig struct {
	Name      string
	Prescaler int
	PowerPort string // empty means always powered

	// QuaternionB2C is scalar-first; zero value means identity.
	QuaternionB2C [4]float64
	Noise         NoiseConfig
}

type ReactionWheelConfig struct {
	Name      string
	Prescaler int
	PowerPort string

	StepWidth       float64    // s, ODE step
	RotorInertia    float64    // kg m^2
	AxisB           [3]float64 // rotation axis, body frame
	InitialSpeed    float64    // rad/s
	TargetSpeed     float64    // rad/s
	LagCoefficients [3]float64 // see ode.ReactionWheelLag
}

type TorqueGeneratorConfig struct {
	Name      string
	Prescaler int
	PowerPort string

	CommandB             [3]float64 // N m
	MagnitudeErrorStdDev float64    // N m
}

type SolarArrayConfig struct {
	Name      string
	Prescaler int
	PowerPort string

	NumberOfSeries         int
	NumberOfParallel       int
	CellArea               float64    // m^2
	NormalB                [3]float64 // body frame
	CellEfficiency         float64
	TransmissionEfficiency float64
}

// PowerControlConfig owns the power ports and switches them on a schedule.
type PowerControlConfig struct {
	Name      string
	Prescaler int
	Ports     []PowerPortConfig
	Events    []PowerEvent
}

type PowerPortConfig struct {
	Name        string
	InitiallyOn bool
}

// PowerEvent switches Port at the first power-control run on or after Tick.
type PowerEvent struct {
	Tick int64
	Port string
	On   bool
}
