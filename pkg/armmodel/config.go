package armmodel

import "github.com/teslashibe/go-armmodel/pkg/vecmath"

// Config holds the host-tunable parameters of a Controller.
type Config struct {
	// Arm shape (meters)
	AddedElbowHeight float32 `yaml:"added_elbow_height" json:"added_elbow_height"`
	AddedElbowDepth  float32 `yaml:"added_elbow_depth" json:"added_elbow_depth"`

	// Pointer tilt below the controller's forward axis (degrees)
	PointerTiltAngle float32 `yaml:"pointer_tilt_angle" json:"pointer_tilt_angle"`

	FollowGaze       GazeBehavior `yaml:"follow_gaze" json:"follow_gaze"`
	Handedness       Handedness   `yaml:"handedness" json:"handedness"`
	UseAccelerometer bool         `yaml:"use_accelerometer" json:"use_accelerometer"`
	IsLockedToHead   bool         `yaml:"locked_to_head" json:"locked_to_head"`

	// Fading (meters, degrees)
	FadeDistanceFromFace       float32 `yaml:"fade_distance_from_face" json:"fade_distance_from_face"`
	TooltipMinDistanceFromFace float32 `yaml:"tooltip_min_distance_from_face" json:"tooltip_min_distance_from_face"`
	TooltipMaxAngleFromCamera  float32 `yaml:"tooltip_max_angle_from_camera" json:"tooltip_max_angle_from_camera"`
}

// DefaultConfig returns the configuration a new Controller starts with.
func DefaultConfig() Config {
	return Config{
		PointerTiltAngle: DefaultPointerTiltAngle,
		FollowGaze:       GazeDuringMotion,
		Handedness:       Right,

		FadeDistanceFromFace:       DefaultFadeDistanceFromFace,
		TooltipMinDistanceFromFace: DefaultTooltipMinDistanceFromFace,
		TooltipMaxAngleFromCamera:  DefaultTooltipMaxAngleFromCamera,
	}
}

// SeatedConfig returns a configuration for seated experiences where the
// body always faces the head and the arm follows head translation.
func SeatedConfig() Config {
	cfg := DefaultConfig()
	cfg.FollowGaze = GazeAlways
	cfg.IsLockedToHead = true
	return cfg
}

// ActiveConfig returns a configuration that lets accelerometer motion
// push the elbow around.
func ActiveConfig() Config {
	cfg := DefaultConfig()
	cfg.UseAccelerometer = true
	return cfg
}

// Preset returns a named configuration: "default", "seated" or "active".
func Preset(name string) (Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "seated":
		return SeatedConfig(), true
	case "active":
		return ActiveConfig(), true
	}
	return Config{}, false
}

// ApplyConfig sets every configuration field through the regular setters,
// so out-of-range values are clamped the same way.
func (c *Controller) ApplyConfig(cfg Config) {
	c.SetAddedElbowHeight(cfg.AddedElbowHeight)
	c.SetAddedElbowDepth(cfg.AddedElbowDepth)
	c.SetPointerTiltAngle(cfg.PointerTiltAngle)
	c.SetGazeBehavior(cfg.FollowGaze)
	c.SetHandedness(cfg.Handedness)
	c.SetUseAccelerometer(cfg.UseAccelerometer)
	c.SetIsLockedToHead(cfg.IsLockedToHead)
	c.SetFadeDistanceFromFace(cfg.FadeDistanceFromFace)
	c.SetTooltipMinDistanceFromFace(cfg.TooltipMinDistanceFromFace)
	c.SetTooltipMaxAngleFromCamera(cfg.TooltipMaxAngleFromCamera)
}

// Config returns the current configuration.
func (c *Controller) Config() Config {
	return Config{
		AddedElbowHeight:           c.addedElbowHeight,
		AddedElbowDepth:            c.addedElbowDepth,
		PointerTiltAngle:           c.pointerTiltAngle,
		FollowGaze:                 c.followGaze,
		Handedness:                 c.handedness,
		UseAccelerometer:           c.useAccelerometer,
		IsLockedToHead:             c.isLockedToHead,
		FadeDistanceFromFace:       c.fadeDistanceFromFace,
		TooltipMinDistanceFromFace: c.tooltipMinDistanceFromFace,
		TooltipMaxAngleFromCamera:  c.tooltipMaxAngleFromCamera,
	}
}

// TuningParams is a partial configuration update. Only non-nil fields are
// applied, so a client can change one knob without echoing the rest.
type TuningParams struct {
	AddedElbowHeight           *float32      `yaml:"added_elbow_height,omitempty" json:"added_elbow_height,omitempty"`
	AddedElbowDepth            *float32      `yaml:"added_elbow_depth,omitempty" json:"added_elbow_depth,omitempty"`
	PointerTiltAngle           *float32      `yaml:"pointer_tilt_angle,omitempty" json:"pointer_tilt_angle,omitempty"`
	FollowGaze                 *GazeBehavior `yaml:"follow_gaze,omitempty" json:"follow_gaze,omitempty"`
	Handedness                 *Handedness   `yaml:"handedness,omitempty" json:"handedness,omitempty"`
	UseAccelerometer           *bool         `yaml:"use_accelerometer,omitempty" json:"use_accelerometer,omitempty"`
	IsLockedToHead             *bool         `yaml:"locked_to_head,omitempty" json:"locked_to_head,omitempty"`
	FadeDistanceFromFace       *float32      `yaml:"fade_distance_from_face,omitempty" json:"fade_distance_from_face,omitempty"`
	TooltipMinDistanceFromFace *float32      `yaml:"tooltip_min_distance_from_face,omitempty" json:"tooltip_min_distance_from_face,omitempty"`
	TooltipMaxAngleFromCamera  *float32      `yaml:"tooltip_max_angle_from_camera,omitempty" json:"tooltip_max_angle_from_camera,omitempty"`
}

// Apply returns cfg with the non-nil fields of p written over it.
func (p TuningParams) Apply(cfg Config) Config {
	if p.AddedElbowHeight != nil {
		cfg.AddedElbowHeight = *p.AddedElbowHeight
	}
	if p.AddedElbowDepth != nil {
		cfg.AddedElbowDepth = *p.AddedElbowDepth
	}
	if p.PointerTiltAngle != nil {
		cfg.PointerTiltAngle = *p.PointerTiltAngle
	}
	if p.FollowGaze != nil {
		cfg.FollowGaze = *p.FollowGaze
	}
	if p.Handedness != nil {
		cfg.Handedness = *p.Handedness
	}
	if p.UseAccelerometer != nil {
		cfg.UseAccelerometer = *p.UseAccelerometer
	}
	if p.IsLockedToHead != nil {
		cfg.IsLockedToHead = *p.IsLockedToHead
	}
	if p.FadeDistanceFromFace != nil {
		cfg.FadeDistanceFromFace = *p.FadeDistanceFromFace
	}
	if p.TooltipMinDistanceFromFace != nil {
		cfg.TooltipMinDistanceFromFace = *p.TooltipMinDistanceFromFace
	}
	if p.TooltipMaxAngleFromCamera != nil {
		cfg.TooltipMaxAngleFromCamera = vecmath.Clamp(*p.TooltipMaxAngleFromCamera, 0, 180)
	}
	return cfg
}
