package frames

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Quaternions are Hamilton, scalar-first. A frame quaternion q_a2b converts
// a vector expressed in frame a into frame b via FrameConversion.

// Identity is the identity rotation.
var Identity = quat.Number{Real: 1}

// QuaternionFromArray builds a unit quaternion from (w, x, y, z). The zero
// array maps to Identity.
func QuaternionFromArray(a [4]float64) quat.Number {
	q := quat.Number{Real: a[0], Imag: a[1], Jmag: a[2], Kmag: a[3]}
	if quat.Abs(q) == 0 {
		return Identity
	}
	return Normalize(q)
}

// QuaternionArray returns (w, x, y, z).
func QuaternionArray(q quat.Number) [4]float64 {
	return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

// Normalize scales q to unit norm. The zero quaternion maps to Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// FrameConversion expresses v, given in the source frame of q, in its
// destination frame: conj(q) ⊗ v ⊗ q.
func FrameConversion(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Mul(quat.Mul(quat.Conj(q), pure(v)), q)
	return r3.Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// InverseFrameConversion is FrameConversion with the conjugate of q.
func InverseFrameConversion(q quat.Number, v r3.Vec) r3.Vec {
	return FrameConversion(quat.Conj(q), v)
}

// Relative returns q_target ⊗ conj(q_reference). For two i2b quaternions the
// result rotates the reference body frame into the target body frame.
func Relative(target, reference quat.Number) quat.Number {
	return quat.Mul(target, quat.Conj(reference))
}

// DCMToQuaternion converts a direction cosine matrix, whose rows are the
// destination axes in source coordinates, into the matching frame
// quaternion.
func DCMToQuaternion(c [3][3]float64) quat.Number {
	// FrameConversion applies the transpose of the active rotation matrix,
	// so recover the active quaternion of c and conjugate it.
	var w, x, y, z float64
	tr := c[0][0] + c[1][1] + c[2][2]
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		w = s / 4
		x = (c[2][1] - c[1][2]) / s
		y = (c[0][2] - c[2][0]) / s
		z = (c[1][0] - c[0][1]) / s
	case c[0][0] > c[1][1] && c[0][0] > c[2][2]:
		s := math.Sqrt(1+c[0][0]-c[1][1]-c[2][2]) * 2
		w = (c[2][1] - c[1][2]) / s
		x = s / 4
		y = (c[0][1] + c[1][0]) / s
		z = (c[0][2] + c[2][0]) / s
	case c[1][1] > c[2][2]:
		s := math.Sqrt(1+c[1][1]-c[0][0]-c[2][2]) * 2
		w = (c[0][2] - c[2][0]) / s
		x = (c[0][1] + c[1][0]) / s
		y = s / 4
		z = (c[1][2] + c[2][1]) / s
	default:
		s := math.Sqrt(1+c[2][2]-c[0][0]-c[1][1]) * 2
		w = (c[1][0] - c[0][1]) / s
		x = (c[0][2] + c[2][0]) / s
		y = (c[1][2] + c[2][1]) / s
		z = s / 4
	}
	return Normalize(quat.Conj(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}))
}

// QuaternionI2RTN returns the inertial-to-RTN frame quaternion of an orbit
// with the given inertial position and velocity.
func QuaternionI2RTN(pos, vel r3.Vec) (quat.Number, error) {
	r := r3.Norm(pos)
	h := r3.Cross(pos, vel)
	hn := r3.Norm(h)
	if r == 0 || hn == 0 {
		return Identity, fmt.Errorf("rtn frame undefined for r=%g |h|=%g: %w", r, hn, model.ErrDegenerateGeometry)
	}
	radial := r3.Scale(1/r, pos)
	normal := r3.Scale(1/hn, h)
	tangential := r3.Cross(normal, radial)

	return DCMToQuaternion([3][3]float64{
		{radial.X, radial.Y, radial.Z},
		{tangential.X, tangential.Y, tangential.Z},
		{normal.X, normal.Y, normal.Z},
	}), nil
}

func pure(v r3.Vec) quat.Number {
	return quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
}
