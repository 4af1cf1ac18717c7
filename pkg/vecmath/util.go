package vecmath

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Assertions enables unit-length precondition checks on Rotated, AxisAngle
// and AngleDegrees. They panic on violation, so leave this off outside tests.
var Assertions bool

// unitTolerance is how far from 1 a norm may drift before an assertion fires.
const unitTolerance = 1e-3

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DegToRad converts degrees to radians.
func DegToRad(deg float32) float32 {
	return deg * (math32.Pi / 180)
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float32) float32 {
	return rad * (180 / math32.Pi)
}

func isFinite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

func debugAssertUnit(where string, norm float32) {
	if !Assertions {
		return
	}
	if math32.Abs(norm-1) > unitTolerance {
		panic(fmt.Sprintf("vecmath: %s requires unit input, got norm %v", where, norm))
	}
}
