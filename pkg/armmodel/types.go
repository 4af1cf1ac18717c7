package armmodel

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-armmodel/pkg/vecmath"
)

// Handedness selects which side of the body the controller is held on.
type Handedness int

const (
	Right Handedness = iota
	Left
	UnknownHandedness
)

var handednessNames = map[Handedness]string{
	Right:             "right",
	Left:              "left",
	UnknownHandedness: "unknown",
}

func (h Handedness) String() string {
	if s, ok := handednessNames[h]; ok {
		return s
	}
	return fmt.Sprintf("Handedness(%d)", int(h))
}

// ParseHandedness parses "right", "left" or "unknown" (case-insensitive).
func ParseHandedness(s string) (Handedness, error) {
	for h, name := range handednessNames {
		if strings.EqualFold(s, name) {
			return h, nil
		}
	}
	return UnknownHandedness, fmt.Errorf("armmodel: invalid handedness %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (h Handedness) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handedness) UnmarshalText(text []byte) error {
	v, err := ParseHandedness(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// GazeBehavior controls how the virtual torso follows the head.
type GazeBehavior int

const (
	// GazeNever keeps the torso facing where it last faced.
	GazeNever GazeBehavior = iota
	// GazeDuringMotion lets the torso catch up with the head while the
	// controller is rotating.
	GazeDuringMotion
	// GazeAlways snaps the torso to the head direction every frame.
	GazeAlways
)

var gazeNames = map[GazeBehavior]string{
	GazeNever:        "never",
	GazeDuringMotion: "during_motion",
	GazeAlways:       "always",
}

func (g GazeBehavior) String() string {
	if s, ok := gazeNames[g]; ok {
		return s
	}
	return fmt.Sprintf("GazeBehavior(%d)", int(g))
}

// ParseGazeBehavior parses "never", "during_motion" or "always".
func ParseGazeBehavior(s string) (GazeBehavior, error) {
	for g, name := range gazeNames {
		if strings.EqualFold(s, name) {
			return g, nil
		}
	}
	return GazeDuringMotion, fmt.Errorf("armmodel: invalid gaze behavior %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g GazeBehavior) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GazeBehavior) UnmarshalText(text []byte) error {
	v, err := ParseGazeBehavior(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// UpdateData is one frame of sensor input.
type UpdateData struct {
	Connected        bool               `json:"connected"`
	Acceleration     vecmath.Vector3    `json:"acceleration"` // controller space, m/s²
	Orientation      vecmath.Quaternion `json:"orientation"`  // controller in head space, unit
	Gyro             vecmath.Vector3    `json:"gyro"`         // rad/s
	HeadDirection    vecmath.Vector3    `json:"head_direction"`
	HeadPosition     vecmath.Vector3    `json:"head_position"`
	DeltaTimeSeconds float32            `json:"dt"`
}

// RestingSample returns a connected frame of a controller held level and
// still, with the head looking forward.
func RestingSample(dt float32) UpdateData {
	return UpdateData{
		Connected:        true,
		Acceleration:     vecmath.Vec3(0, GravityForce, 0),
		Orientation:      vecmath.Identity(),
		HeadDirection:    Forward(),
		DeltaTimeSeconds: dt,
	}
}

// Pose is a copy of a controller's outputs after an Update.
type Pose struct {
	ShoulderPosition vecmath.Vector3    `json:"shoulder_position"`
	ShoulderRotation vecmath.Quaternion `json:"shoulder_rotation"`
	ElbowPosition    vecmath.Vector3    `json:"elbow_position"`
	ElbowRotation    vecmath.Quaternion `json:"elbow_rotation"`
	WristPosition    vecmath.Vector3    `json:"wrist_position"`
	WristRotation    vecmath.Quaternion `json:"wrist_rotation"`
	PointerPosition  vecmath.Vector3    `json:"pointer_position"`
	PointerRotation  vecmath.Quaternion `json:"pointer_rotation"`
	ControllerAlpha  float32            `json:"controller_alpha"`
	TooltipAlpha     float32            `json:"tooltip_alpha"`
}

// IsFinite reports whether every position and rotation is free of NaN/Inf.
func (p Pose) IsFinite() bool {
	return p.ShoulderPosition.IsFinite() && p.ShoulderRotation.IsFinite() &&
		p.ElbowPosition.IsFinite() && p.ElbowRotation.IsFinite() &&
		p.WristPosition.IsFinite() && p.WristRotation.IsFinite() &&
		p.PointerPosition.IsFinite() && p.PointerRotation.IsFinite()
}
