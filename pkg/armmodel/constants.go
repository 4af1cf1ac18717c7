package armmodel

import "github.com/teslashibe/go-armmodel/pkg/vecmath"

// Body-relative offsets in meters, right-handed. Left-handed values are
// obtained by negating X.
var (
	forward = vecmath.Vec3(0, 0, -1)
	up      = vecmath.Vec3(0, 1, 0)
	right   = vecmath.Vec3(1, 0, 0)

	pointerOffset        = vecmath.Vec3(0, -0.009, -0.109)
	defaultShoulderRight = vecmath.Vec3(0.19, -0.19, 0.03)
	elbowRest            = vecmath.Vec3(0.195, -0.5, 0.075)
	wristRest            = vecmath.Vec3(0, 0, -0.25)
	armExtensionOffset   = vecmath.Vec3(-0.13, 0.14, -0.08)
	neckOffset           = vecmath.Vec3(0, 0.075, 0.08)

	// elbow offset box for accelerometer-driven motion
	elbowMinRange = vecmath.Vec3(-0.05, -0.1, -0.2)
	elbowMaxRange = vecmath.Vec3(0.05, 0.1, 0)
)

const (
	// GravityForce is standard gravity in m/s².
	GravityForce = 9.807

	// alpha fade rate per second
	deltaAlpha = 4.0

	gravityCalibStrength   = 0.999
	velocityFilterSuppress = 0.99
	restVelocityDecay      = 0.9
	disconnectDecay        = 0.5
	decelerationDamping    = 0.5
	minAccel               = 1.0

	// gaze follow: angular speed (rad/s) below which the torso holds still,
	// the speed scale, and the per-frame blend cap
	gazeMinAngularVelocity = 0.2
	gazeAngularVelocityDiv = 45.0
	gazeMaxFilterStrength  = 0.1

	minExtensionAngle = 7.0
	maxExtensionAngle = 60.0
	extensionWeight   = 0.4

	// elbow blend: base weight, extension-driven weight, suppression exponent
	elbowLerpBase       = 0.4
	elbowLerpExtension  = 0.6
	lerpSuppressionPow  = 6
	lerpSuppressionSpan = 180.0
)

// Default configuration values.
const (
	DefaultPointerTiltAngle           = 15.0
	DefaultFadeDistanceFromFace       = 0.32
	DefaultTooltipMinDistanceFromFace = 0.45
	DefaultTooltipMaxAngleFromCamera  = 80.0
)

// Forward returns the model's forward direction (-Z).
func Forward() vecmath.Vector3 { return forward }

// Up returns the model's up direction (+Y).
func Up() vecmath.Vector3 { return up }

// PointerPositionOffset returns the pointer tip offset from the wrist,
// in wrist space.
func PointerPositionOffset() vecmath.Vector3 { return pointerOffset }
