package model

// NoiseConfig parameterises a sensor/actuator noise pipeline of dimension n.
// Empty slices default to the neutral value: identity scale factor, zero
// bias/std-dev, and unlimited ranges.
type NoiseConfig struct {
	ScaleFactor  []float64 // n*n, row-major
	RangeToConst []float64
	RangeToZero  []float64
	Bias         []float64
	NormalStdDev []float64

	RandomWalkStepWidth float64 // s
	RandomWalkStdDev    []float64
	RandomWalkLimit     []float64
}
