// Package noise implements the stochastic contamination applied to true
// physical quantities by sensor and actuator emulations.
package noise

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// RandomWalk is a per-axis bounded random walk. Reading and advancing are
// separate operations: Current is stable until the next Advance.
type RandomWalk struct {
	stepWidth float64
	stdDev    []float64
	limit     []float64
	value     []float64
	normal    distuv.Normal
}

// NewRandomWalk constructs a walk starting at zero. stepWidth is the
// simulation-time interval between advances [s]; callers must keep it
// consistent with how often they call Advance.
func NewRandomWalk(stepWidth float64, stdDev, limit []float64, seed uint64) (*RandomWalk, error) {
	if !(stepWidth > 0) {
		return nil, fmt.Errorf("random walk: step width must be positive, got %g: %w", stepWidth, model.ErrInvalidConfiguration)
	}
	if len(stdDev) != len(limit) {
		return nil, fmt.Errorf("random walk: std-dev has %d axes, limit has %d: %w", len(stdDev), len(limit), model.ErrInvalidConfiguration)
	}
	for i := range stdDev {
		if stdDev[i] < 0 || limit[i] < 0 {
			return nil, fmt.Errorf("random walk: axis %d has negative std-dev or limit: %w", i, model.ErrInvalidConfiguration)
		}
	}
	return &RandomWalk{
		stepWidth: stepWidth,
		stdDev:    append([]float64(nil), stdDev...),
		limit:     append([]float64(nil), limit...),
		value:     make([]float64, len(stdDev)),
		normal:    standardNormal(seed, streamWalk),
	}, nil
}

// Dimension returns the number of axes.
func (w *RandomWalk) Dimension() int { return len(w.value) }

// StepWidth returns the interval between advances [s].
func (w *RandomWalk) StepWidth() float64 { return w.stepWidth }

// Current returns a copy of the accumulated value.
func (w *RandomWalk) Current() []float64 {
	return append([]float64(nil), w.value...)
}

// At returns the accumulated value of one axis.
func (w *RandomWalk) At(i int) float64 { return w.value[i] }

// Advance adds one Gaussian increment per axis and saturates at ±limit.
func (w *RandomWalk) Advance() {
	sq := math.Sqrt(w.stepWidth)
	for i := range w.value {
		v := w.value[i] + w.stdDev[i]*sq*w.normal.Rand()
		if v > w.limit[i] {
			v = w.limit[i]
		} else if v < -w.limit[i] {
			v = -w.limit[i]
		}
		w.value[i] = v
	}
}

// PCG stream selectors, so that generators derived from one seed are
// independent of each other.
const (
	streamWalk uint64 = iota + 1
	streamNormal
)

func standardNormal(seed, stream uint64) distuv.Normal {
	return distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, stream)}
}
