package noise

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Pipeline turns a true value into a measured one:
//
//	Clip(S·x + bias + N(0, σ) + walk)
//
// and advances its random walk once per measurement.
type Pipeline struct {
	n      int
	scale  *mat.Dense
	ranges RangeSpec
	bias   []float64
	stdDev []float64
	normal []distuv.Normal
	walk   *RandomWalk
}

// NewPipeline constructs a pipeline of dimension n. Inverted range
// thresholds are corrected and returned so the caller can report them.
func NewPipeline(n int, cfg model.NoiseConfig, seed uint64) (*Pipeline, []Correction, error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("noise: dimension must be positive, got %d: %w", n, model.ErrInvalidConfiguration)
	}

	scale := mat.NewDense(n, n, nil)
	switch len(cfg.ScaleFactor) {
	case 0:
		for i := 0; i < n; i++ {
			scale.Set(i, i, 1)
		}
	case n * n:
		scale = mat.NewDense(n, n, append([]float64(nil), cfg.ScaleFactor...))
	default:
		return nil, nil, fmt.Errorf("noise: scale factor has %d entries, want %d: %w", len(cfg.ScaleFactor), n*n, model.ErrInvalidConfiguration)
	}

	bias, err := vectorOrZero(n, "bias", cfg.Bias)
	if err != nil {
		return nil, nil, err
	}
	stdDev, err := vectorOrZero(n, "normal std-dev", cfg.NormalStdDev)
	if err != nil {
		return nil, nil, err
	}
	for i, s := range stdDev {
		if s < 0 {
			return nil, nil, fmt.Errorf("noise: axis %d has negative std-dev: %w", i, model.ErrInvalidConfiguration)
		}
	}
	for name, v := range map[string][]float64{"range-to-const": cfg.RangeToConst, "range-to-zero": cfg.RangeToZero} {
		if len(v) != 0 && len(v) != n {
			return nil, nil, fmt.Errorf("noise: %s has %d axes, want %d: %w", name, len(v), n, model.ErrInvalidConfiguration)
		}
	}

	walkStd, err := vectorOrZero(n, "random walk std-dev", cfg.RandomWalkStdDev)
	if err != nil {
		return nil, nil, err
	}
	walkLimit, err := vectorOrZero(n, "random walk limit", cfg.RandomWalkLimit)
	if err != nil {
		return nil, nil, err
	}
	stepWidth := cfg.RandomWalkStepWidth
	if stepWidth == 0 {
		stepWidth = 1
	}
	walk, err := NewRandomWalk(stepWidth, walkStd, walkLimit, seed)
	if err != nil {
		return nil, nil, err
	}

	ranges, corrections := NewRangeSpec(n, cfg.RangeToConst, cfg.RangeToZero)

	normal := make([]distuv.Normal, n)
	for i := range normal {
		normal[i] = standardNormal(seed, streamNormal+uint64(i)*0x9e3779b97f4a7c15)
	}

	return &Pipeline{
		n:      n,
		scale:  scale,
		ranges: ranges,
		bias:   bias,
		stdDev: stdDev,
		normal: normal,
		walk:   walk,
	}, corrections, nil
}

func vectorOrZero(n int, name string, v []float64) ([]float64, error) {
	switch len(v) {
	case 0:
		return make([]float64, n), nil
	case n:
		return append([]float64(nil), v...), nil
	default:
		return nil, fmt.Errorf("noise: %s has %d axes, want %d: %w", name, len(v), n, model.ErrInvalidConfiguration)
	}
}

// Dimension returns the number of axes.
func (p *Pipeline) Dimension() int { return p.n }

// Ranges returns the (corrected) clipping thresholds.
func (p *Pipeline) Ranges() RangeSpec { return p.ranges }

// RandomWalk exposes the pipeline's walk for inspection.
func (p *Pipeline) RandomWalk() *RandomWalk { return p.walk }

// Measure returns the contaminated value of trueValue.
func (p *Pipeline) Measure(trueValue []float64) ([]float64, error) {
	if len(trueValue) != p.n {
		return nil, fmt.Errorf("noise: measured %d axes, want %d: %w", len(trueValue), p.n, model.ErrInvalidConfiguration)
	}
	out := make([]float64, p.n)
	for i := 0; i < p.n; i++ {
		var v float64
		for j := 0; j < p.n; j++ {
			v += p.scale.At(i, j) * trueValue[j]
		}
		v += p.bias[i] + p.walk.At(i)
		if p.stdDev[i] > 0 {
			v += p.stdDev[i] * p.normal[i].Rand()
		}
		out[i] = v
	}
	p.walk.Advance()
	return p.ranges.Clip(out), nil
}

// MeasureVec is Measure for three-axis pipelines.
func (p *Pipeline) MeasureVec(v r3.Vec) (r3.Vec, error) {
	out, err := p.Measure([]float64{v.X, v.Y, v.Z})
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}, nil
}

// Clip applies the pipeline's range thresholds.
func (p *Pipeline) Clip(in []float64) []float64 {
	return p.ranges.Clip(in)
}
