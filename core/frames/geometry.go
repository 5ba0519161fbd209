package frames

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec converts a fixed-size array into an r3 vector.
func Vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}

// Array converts an r3 vector into a fixed-size array.
func Array(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// MulVec returns m·v for a 3x3 matrix.
func MulVec(m mat.Matrix, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// IsZero reports whether every component of v is exactly zero.
func IsZero(v r3.Vec) bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// HasLineOfSight checks whether the straight segment between p1 and p2
// clears a sphere of the given radius centred on the origin. Positions and
// radius share units.
func HasLineOfSight(p1, p2 r3.Vec, radius float64) bool {
	v := r3.Sub(p2, p1)
	a := r3.Dot(v, v)
	if a == 0 {
		// Degenerate case: same point. Outside the body counts as LoS.
		return r3.Dot(p1, p1) > radius*radius
	}

	// t* minimises |p1 + t v|^2 over the segment.
	t := -r3.Dot(p1, v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := r3.Add(p1, r3.Scale(t, v))
	return r3.Dot(closest, closest) > radius*radius
}
