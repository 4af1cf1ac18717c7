// Package vecmath provides the small float32 vector and quaternion algebra
// used by the arm model.
//
// Both types are plain values. Nothing here normalizes implicitly: methods
// that only make sense for unit input say so and leave normalization to the
// caller.
package vecmath

import "github.com/chewxy/math32"

// Vector3 is a 3D vector.
type Vector3 struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
}

// Vec3 returns a new Vector3.
func Vec3(x, y, z float32) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Zero returns the zero vector.
func Zero() Vector3 {
	return Vector3{}
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// MulScalar returns v scaled by s.
func (v Vector3) MulScalar(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Negate returns -v.
func (v Vector3) Negate() Vector3 {
	return Vector3{-v.X, -v.Y, -v.Z}
}

// Dot returns the dot product of v and o.
func (v Vector3) Dot(o Vector3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v × o.
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// MagnitudeSquared returns the squared length. Prefer it over Magnitude
// for comparisons.
func (v Vector3) MagnitudeSquared() float32 {
	return v.Dot(v)
}

// Magnitude returns the length of v.
func (v Vector3) Magnitude() float32 {
	return math32.Sqrt(v.MagnitudeSquared())
}

// Normalized returns v scaled to unit length.
// The zero vector is returned unchanged.
func (v Vector3) Normalized() Vector3 {
	m := v.Magnitude()
	if m == 0 {
		return v
	}
	return v.MulScalar(1 / m)
}

// Scale multiplies v elementwise by o in place.
func (v *Vector3) Scale(o Vector3) {
	v.X *= o.X
	v.Y *= o.Y
	v.Z *= o.Z
}

// ScaleVec returns the elementwise product of a and b.
func ScaleVec(a, b Vector3) Vector3 {
	a.Scale(b)
	return a
}

// IsFinite reports whether no component is NaN or Inf.
func (v Vector3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Array returns the components as [x, y, z].
func (v Vector3) Array() [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

// SlerpVec spherically interpolates between the directions of start and end.
// Both inputs are normalized first, so the result is a unit direction
// (or zero when either input is zero).
func SlerpVec(start, end Vector3, percent float32) Vector3 {
	start = start.Normalized()
	end = end.Normalized()
	dot := Clamp(start.Dot(end), -1, 1)
	theta := math32.Acos(dot) * percent
	relative := end.Sub(start.MulScalar(dot)).Normalized()
	return start.MulScalar(math32.Cos(theta)).Add(relative.MulScalar(math32.Sin(theta)))
}

// AngleDegrees returns the angle between a and b in degrees.
// Both vectors must already be unit length.
func AngleDegrees(a, b Vector3) float32 {
	debugAssertUnit("AngleDegrees a", a.Magnitude())
	debugAssertUnit("AngleDegrees b", b.Magnitude())
	return RadToDeg(math32.Acos(Clamp(a.Dot(b), -1, 1)))
}
