package noise

import "math"

// RangeSpec holds per-axis clipping thresholds. An input whose magnitude
// reaches ToZero reads as zero; one that reaches ToConst (but not ToZero)
// saturates at ±ToConst.
type RangeSpec struct {
	ToConst []float64
	ToZero  []float64
}

// Correction records an axis whose thresholds were swapped at construction.
type Correction struct {
	Axis    int
	ToConst float64
	ToZero  float64
}

// NewRangeSpec builds a range spec of dimension n. Negative values are
// taken by magnitude. An axis with only a to-zero threshold saturates
// nowhere below it; an axis with only a to-const threshold never zeroes.
// Inverted pairs are swapped and reported only when both thresholds were
// given for that axis.
func NewRangeSpec(n int, toConst, toZero []float64) (RangeSpec, []Correction) {
	spec := RangeSpec{
		ToConst: make([]float64, n),
		ToZero:  make([]float64, n),
	}
	var corrections []Correction
	for i := 0; i < n; i++ {
		c, hasConst := threshold(toConst, i)
		z, hasZero := threshold(toZero, i)
		switch {
		case hasConst && hasZero && c > z:
			c, z = z, c
			corrections = append(corrections, Correction{Axis: i, ToConst: c, ToZero: z})
		case hasZero && !hasConst:
			c = z
		}
		spec.ToConst[i], spec.ToZero[i] = c, z
	}
	return spec, corrections
}

func threshold(src []float64, i int) (float64, bool) {
	if i < len(src) {
		return math.Abs(src[i]), true
	}
	return math.Inf(1), false
}

// Clip applies the thresholds to in and returns a new slice.
// Clip(Clip(x)) == Clip(x).
func (r RangeSpec) Clip(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		a := math.Abs(x)
		switch {
		case a >= r.ToZero[i]:
			out[i] = 0
		case a >= r.ToConst[i]:
			out[i] = math.Copysign(r.ToConst[i], x)
		default:
			out[i] = x
		}
	}
	return out
}
