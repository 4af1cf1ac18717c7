// Package armmodel estimates the pose of a hand-held 3DoF controller.
//
// A Controller takes one UpdateData per frame (controller orientation,
// accelerometer and gyro readings, head direction and position) and infers
// where the shoulder, elbow and wrist sit so the controller can be drawn in
// an anatomically plausible place. It also animates a fade alpha for the
// controller (hidden when it comes close to the face) and for its tooltips.
//
// A Controller is not safe for concurrent use. Hosts that read the pose
// from another goroutine should copy it with Pose under their own lock.
package armmodel

import (
	"github.com/chewxy/math32"

	"github.com/teslashibe/go-armmodel/pkg/vecmath"
)

// Controller is the arm model for one tracked hand.
type Controller struct {
	// Configuration
	addedElbowHeight           float32
	addedElbowDepth            float32
	pointerTiltAngle           float32
	followGaze                 GazeBehavior
	handedness                 Handedness
	useAccelerometer           bool
	fadeDistanceFromFace       float32
	tooltipMinDistanceFromFace float32
	tooltipMaxAngleFromCamera  float32
	isLockedToHead             bool

	// Recomputed every Update from handedness and torso direction
	handedMultiplier vecmath.Vector3
	shoulderPosition vecmath.Vector3
	shoulderRotation vecmath.Quaternion

	// Filter state carried between frames
	torsoDirection   vecmath.Vector3
	filteredVelocity vecmath.Vector3
	filteredAccel    vecmath.Vector3
	zeroAccel        vecmath.Vector3
	elbowOffset      vecmath.Vector3
	firstUpdate      bool

	// Outputs
	elbowPosition   vecmath.Vector3
	elbowRotation   vecmath.Quaternion
	wristPosition   vecmath.Vector3
	wristRotation   vecmath.Quaternion
	pointerPosition vecmath.Vector3
	pointerRotation vecmath.Quaternion

	controllerAlphaValue float32
	tooltipAlphaValue    float32
}

// New returns a right-handed controller with the default configuration.
func New() *Controller {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig returns a controller configured with cfg.
func NewWithConfig(cfg Config) *Controller {
	c := &Controller{
		torsoDirection:   forward,
		zeroAccel:        vecmath.Vec3(0, GravityForce, 0),
		firstUpdate:      true,
		shoulderRotation: vecmath.Identity(),
		elbowRotation:    vecmath.Identity(),
		wristRotation:    vecmath.Identity(),
		pointerRotation:  vecmath.Identity(),
	}
	c.ApplyConfig(cfg)
	c.updateHandedness()
	return c
}

// Configuration accessors.

func (c *Controller) AddedElbowHeight() float32         { return c.addedElbowHeight }
func (c *Controller) SetAddedElbowHeight(h float32)     { c.addedElbowHeight = h }
func (c *Controller) AddedElbowDepth() float32          { return c.addedElbowDepth }
func (c *Controller) SetAddedElbowDepth(d float32)      { c.addedElbowDepth = d }
func (c *Controller) PointerTiltAngle() float32         { return c.pointerTiltAngle }
func (c *Controller) SetPointerTiltAngle(deg float32)   { c.pointerTiltAngle = deg }
func (c *Controller) GazeBehavior() GazeBehavior        { return c.followGaze }
func (c *Controller) SetGazeBehavior(g GazeBehavior)    { c.followGaze = g }
func (c *Controller) Handedness() Handedness            { return c.handedness }
func (c *Controller) SetHandedness(h Handedness)        { c.handedness = h }
func (c *Controller) UseAccelerometer() bool            { return c.useAccelerometer }
func (c *Controller) SetUseAccelerometer(use bool)      { c.useAccelerometer = use }
func (c *Controller) IsLockedToHead() bool              { return c.isLockedToHead }
func (c *Controller) SetIsLockedToHead(locked bool)     { c.isLockedToHead = locked }
func (c *Controller) FadeDistanceFromFace() float32     { return c.fadeDistanceFromFace }
func (c *Controller) SetFadeDistanceFromFace(m float32) { c.fadeDistanceFromFace = m }

func (c *Controller) TooltipMinDistanceFromFace() float32 { return c.tooltipMinDistanceFromFace }
func (c *Controller) SetTooltipMinDistanceFromFace(m float32) {
	c.tooltipMinDistanceFromFace = m
}

func (c *Controller) TooltipMaxAngleFromCamera() float32 { return c.tooltipMaxAngleFromCamera }

// SetTooltipMaxAngleFromCamera sets the tooltip viewing cone, clamped to
// [0, 180] degrees.
func (c *Controller) SetTooltipMaxAngleFromCamera(deg float32) {
	c.tooltipMaxAngleFromCamera = vecmath.Clamp(deg, 0, 180)
}

// Output accessors.

// Position returns the controller (wrist) position.
func (c *Controller) Position() vecmath.Vector3 { return c.wristPosition }

// Rotation returns the controller (wrist) rotation.
func (c *Controller) Rotation() vecmath.Quaternion { return c.wristRotation }

func (c *Controller) ElbowPosition() vecmath.Vector3      { return c.elbowPosition }
func (c *Controller) ElbowRotation() vecmath.Quaternion   { return c.elbowRotation }
func (c *Controller) PointerPosition() vecmath.Vector3    { return c.pointerPosition }
func (c *Controller) PointerRotation() vecmath.Quaternion { return c.pointerRotation }
func (c *Controller) ControllerAlpha() float32            { return c.controllerAlphaValue }
func (c *Controller) TooltipAlpha() float32               { return c.tooltipAlphaValue }

// Pose returns a copy of all outputs.
func (c *Controller) Pose() Pose {
	return Pose{
		ShoulderPosition: c.shoulderPosition,
		ShoulderRotation: c.shoulderRotation,
		ElbowPosition:    c.elbowPosition,
		ElbowRotation:    c.elbowRotation,
		WristPosition:    c.wristPosition,
		WristRotation:    c.wristRotation,
		PointerPosition:  c.pointerPosition,
		PointerRotation:  c.pointerRotation,
		ControllerAlpha:  c.controllerAlphaValue,
		TooltipAlpha:     c.tooltipAlphaValue,
	}
}

// Update advances the model by one frame. It is the only method that
// changes filter or pose state.
func (c *Controller) Update(data UpdateData) {
	c.updateHandedness()
	c.updateTorsoDirection(data)

	if data.Connected {
		c.updateFromController(data)
	} else {
		c.resetState()
	}

	if c.useAccelerometer {
		c.updateVelocity(data)
		c.transformElbow(data)
	} else {
		c.elbowOffset = vecmath.Zero()
	}

	c.applyArmModel(data)
	c.updateTransparency(data)
	c.updatePointer()
}

func (c *Controller) updateHandedness() {
	var x float32
	switch c.handedness {
	case Right:
		x = 1
	case Left:
		x = -1
	}
	c.handedMultiplier = vecmath.Vec3(x, 1, 1)
	c.shoulderRotation = vecmath.Identity()
	c.shoulderPosition = vecmath.ScaleVec(defaultShoulderRight, c.handedMultiplier)
}

func (c *Controller) updateTorsoDirection(data UpdateData) {
	if c.followGaze == GazeNever {
		return
	}

	head := data.HeadDirection
	head.Y = 0
	head = head.Normalized()

	// Looking straight up or down gives no horizontal heading; hold the torso.
	if head.MagnitudeSquared() > 0 {
		switch c.followGaze {
		case GazeAlways:
			c.torsoDirection = head
		case GazeDuringMotion:
			angularVelocity := data.Gyro.Magnitude()
			strength := vecmath.Clamp((angularVelocity-gazeMinAngularVelocity)/gazeAngularVelocityDiv, 0, gazeMaxFilterStrength)
			c.torsoDirection = vecmath.SlerpVec(c.torsoDirection, head, strength)
		}
	}

	gaze := vecmath.FromToRotation(forward, c.torsoDirection)
	c.shoulderRotation = gaze
	c.shoulderPosition = gaze.Rotated(c.shoulderPosition)
}

// updateFromController slowly calibrates gravity out of the accelerometer
// and derives the acceleration used for elbow motion.
func (c *Controller) updateFromController(data UpdateData) {
	accel := data.Orientation.Rotated(data.Acceleration)

	c.zeroAccel = c.zeroAccel.MulScalar(gravityCalibStrength).
		Add(accel.MulScalar(1 - gravityCalibStrength))
	c.filteredAccel = accel.Sub(c.zeroAccel)

	if c.firstUpdate {
		c.filteredVelocity = vecmath.Zero()
		c.firstUpdate = false
	}

	if c.filteredAccel.MagnitudeSquared() < minAccel*minAccel {
		c.filteredAccel = vecmath.Zero()
		c.filteredVelocity = c.filteredVelocity.MulScalar(restVelocityDecay)
		return
	}

	next := c.filteredVelocity.Add(c.filteredAccel.MulScalar(data.DeltaTimeSeconds))
	if next.MagnitudeSquared() < c.filteredVelocity.MagnitudeSquared() {
		c.filteredAccel = c.filteredAccel.MulScalar(decelerationDamping)
	}
}

func (c *Controller) resetState() {
	c.filteredVelocity = c.filteredVelocity.MulScalar(disconnectDecay)
	c.filteredAccel = c.filteredAccel.MulScalar(disconnectDecay)
	c.firstUpdate = true
}

func (c *Controller) updateVelocity(data UpdateData) {
	c.filteredVelocity = c.filteredVelocity.
		Add(c.filteredAccel.MulScalar(data.DeltaTimeSeconds)).
		MulScalar(velocityFilterSuppress)
}

func (c *Controller) transformElbow(data UpdateData) {
	c.elbowOffset = c.elbowOffset.Add(c.filteredVelocity.MulScalar(data.DeltaTimeSeconds))

	lo := vecmath.ScaleVec(elbowMinRange, c.handedMultiplier)
	hi := vecmath.ScaleVec(elbowMaxRange, c.handedMultiplier)
	c.elbowOffset = vecmath.Vec3(
		clampRange(c.elbowOffset.X, lo.X, hi.X),
		clampRange(c.elbowOffset.Y, lo.Y, hi.Y),
		clampRange(c.elbowOffset.Z, lo.Z, hi.Z),
	)
}

func (c *Controller) applyArmModel(data UpdateData) {
	controllerOrientation := c.shoulderRotation.Inverted().Mul(data.Orientation)

	elbow := vecmath.Vec3(elbowRest.X, elbowRest.Y+c.addedElbowHeight, elbowRest.Z+c.addedElbowDepth)
	elbow.Scale(c.handedMultiplier)
	elbow = elbow.Add(c.elbowOffset)
	wrist := vecmath.ScaleVec(wristRest, c.handedMultiplier)
	extension := vecmath.ScaleVec(armExtensionOffset, c.handedMultiplier)

	controllerForward := controllerOrientation.Rotated(forward)
	xAngle := 90 - vecmath.AngleDegrees(controllerForward, up)
	xyRotation := vecmath.FromToRotation(forward, controllerForward)

	extensionRatio := vecmath.Clamp((xAngle-minExtensionAngle)/(maxExtensionAngle-minExtensionAngle), 0, 1)
	if !c.useAccelerometer {
		elbow = elbow.Add(extension.MulScalar(extensionRatio))
	}

	totalAngle := vecmath.RelativeCosHalfAngle(xyRotation, vecmath.Identity())
	lerpSuppression := 1 - math32.Pow(totalAngle/lerpSuppressionSpan, lerpSuppressionPow)
	lerpValue := lerpSuppression * (elbowLerpBase + elbowLerpExtension*extensionRatio*extensionWeight)

	lerpRotation := vecmath.LerpQuat(vecmath.Identity(), xyRotation, lerpValue)
	c.elbowRotation = c.shoulderRotation.Mul(lerpRotation.Inverted()).Mul(controllerOrientation)
	c.wristRotation = c.shoulderRotation.Mul(controllerOrientation)

	var head vecmath.Vector3
	if c.isLockedToHead {
		head = applyInverseNeckModel(data)
	}

	c.elbowPosition = head.Add(c.shoulderRotation.Rotated(elbow))
	c.wristPosition = c.elbowPosition.Add(c.elbowRotation.Rotated(wrist))
}

// applyInverseNeckModel moves the tracked head position back to the neck
// pivot.
func applyInverseNeckModel(data UpdateData) vecmath.Vector3 {
	headRotation := vecmath.FromToRotation(forward, data.HeadDirection)
	neck := headRotation.Rotated(neckOffset)
	neck.Y -= neckOffset.Y
	return data.HeadPosition.Sub(neck)
}

func (c *Controller) updateTransparency(data UpdateData) {
	wristRelativeToHead := c.wristPosition.Sub(data.HeadPosition)
	distance := wristRelativeToHead.Magnitude()
	step := deltaAlpha * data.DeltaTimeSeconds

	if distance < c.fadeDistanceFromFace {
		c.controllerAlphaValue -= step
	} else {
		c.controllerAlphaValue += step
	}
	c.controllerAlphaValue = vecmath.Clamp(c.controllerAlphaValue, 0, 1)

	showTooltip := false
	if distance >= c.fadeDistanceFromFace && distance < c.tooltipMinDistanceFromFace && distance > 0 {
		wristUp := c.wristRotation.Rotated(up)
		toHead := wristRelativeToHead.MulScalar(-1 / distance)
		showTooltip = vecmath.AngleDegrees(wristUp, toHead) <= c.tooltipMaxAngleFromCamera
	}

	if showTooltip {
		c.tooltipAlphaValue += step
	} else {
		c.tooltipAlphaValue -= step
	}
	c.tooltipAlphaValue = vecmath.Clamp(c.tooltipAlphaValue, 0, 1)
}

// updatePointer places the pointer tip ahead of the wrist and tilts its
// ray down by the pointer tilt angle.
func (c *Controller) updatePointer() {
	c.pointerPosition = c.wristPosition.Add(c.wristRotation.Rotated(pointerOffset))
	c.pointerRotation = c.wristRotation.Mul(vecmath.AxisAngle(right, -c.pointerTiltAngle))
}

// clampRange clamps v between a and b in either order.
func clampRange(v, a, b float32) float32 {
	if a > b {
		a, b = b, a
	}
	return vecmath.Clamp(v, a, b)
}
