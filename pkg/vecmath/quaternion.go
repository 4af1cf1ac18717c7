package vecmath

import "github.com/chewxy/math32"

// Quaternion is a rotation quaternion stored as (W, X, Y, Z).
// The zero value is not a rotation; use Identity.
type Quaternion struct {
	W float32 `json:"w" yaml:"w"`
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
}

// fromToEpsilon is the relative threshold below which FromToRotation
// treats the inputs as opposite.
const fromToEpsilon = 1e-6

// Quat returns a new quaternion from its components.
func Quat(w, x, y, z float32) Quaternion {
	return Quaternion{W: w, X: x, Y: y, Z: z}
}

// Identity returns the identity rotation.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// Vector returns the imaginary part (x, y, z).
func (q Quaternion) Vector() Vector3 {
	return Vector3{q.X, q.Y, q.Z}
}

// Add returns the componentwise sum.
func (q Quaternion) Add(o Quaternion) Quaternion {
	return Quaternion{q.W + o.W, q.X + o.X, q.Y + o.Y, q.Z + o.Z}
}

// Sub returns the componentwise difference.
func (q Quaternion) Sub(o Quaternion) Quaternion {
	return Quaternion{q.W - o.W, q.X - o.X, q.Y - o.Y, q.Z - o.Z}
}

// MulScalar scales every component by s.
func (q Quaternion) MulScalar(s float32) Quaternion {
	return Quaternion{q.W * s, q.X * s, q.Y * s, q.Z * s}
}

// Mul returns the Hamilton product q * o (apply o, then q).
func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Dot returns the four-component dot product.
func (q Quaternion) Dot(o Quaternion) float32 {
	return q.W*o.W + q.X*o.X + q.Y*o.Y + q.Z*o.Z
}

// Norm returns the length of q.
func (q Quaternion) Norm() float32 {
	return math32.Sqrt(q.Dot(q))
}

// Normalized returns q scaled to unit length, or Identity if q is zero.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n == 0 {
		return Identity()
	}
	return q.MulScalar(1 / n)
}

// Inverted returns the conjugate, which is the inverse for unit q.
func (q Quaternion) Inverted() Quaternion {
	return Quaternion{q.W, -q.X, -q.Y, -q.Z}
}

// Rotate rotates v in place. q must be unit length.
func (q Quaternion) Rotate(v *Vector3) {
	*v = q.Rotated(*v)
}

// Rotated returns v rotated by q. q must be unit length; the expansion
// below is not a valid rotation otherwise.
func (q Quaternion) Rotated(v Vector3) Vector3 {
	debugAssertUnit("Rotated", q.Norm())
	u := q.Vector()
	w := q.W
	return v.MulScalar(2*w*w - 1).
		Add(u.MulScalar(2 * u.Dot(v))).
		Add(u.Cross(v).MulScalar(2 * w))
}

// IsFinite reports whether no component is NaN or Inf.
func (q Quaternion) IsFinite() bool {
	return isFinite(q.W) && isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z)
}

// Array returns the components as [w, x, y, z].
func (q Quaternion) Array() [4]float32 {
	return [4]float32{q.W, q.X, q.Y, q.Z}
}

// FromToRotation returns the shortest-arc rotation taking direction from
// onto direction to. Opposite inputs rotate half a turn about an axis
// orthogonal to from.
func FromToRotation(from, to Vector3) Quaternion {
	norm := math32.Sqrt(from.MagnitudeSquared() * to.MagnitudeSquared())
	w := norm + from.Dot(to)
	var axis Vector3
	if w < fromToEpsilon*norm {
		w = 0
		if math32.Abs(from.X) > math32.Abs(from.Z) {
			axis = Vector3{-from.Y, from.X, 0}
		} else {
			axis = Vector3{0, -from.Z, from.Y}
		}
	} else {
		axis = from.Cross(to)
	}
	return Quaternion{w, axis.X, axis.Y, axis.Z}.Normalized()
}

// AxisAngle returns a rotation of angleDegrees about axis.
// axis must be unit length.
func AxisAngle(axis Vector3, angleDegrees float32) Quaternion {
	debugAssertUnit("AxisAngle", axis.Magnitude())
	half := DegToRad(angleDegrees) * 0.5
	s := math32.Sin(half)
	return Quaternion{math32.Cos(half), axis.X * s, axis.Y * s, axis.Z * s}
}

// LerpQuat blends a and b linearly and renormalizes. It is a cheap stand-in
// for slerp when the angle between a and b is small.
func LerpQuat(a, b Quaternion, t float32) Quaternion {
	return a.MulScalar(1 - t).Add(b.MulScalar(t)).Normalized()
}

// RelativeCosHalfAngle returns the W component of b * a⁻¹, the cosine of
// half the angle between two unit rotations. It is 1 for equal rotations.
// The arm model's elbow blend is tuned against this raw value rather than
// an angle in degrees.
func RelativeCosHalfAngle(a, b Quaternion) float32 {
	return b.Mul(a.Inverted()).W
}
