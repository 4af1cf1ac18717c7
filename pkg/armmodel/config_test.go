package armmodel

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestPreset(t *testing.T) {
	tests := []struct {
		name   string
		ok     bool
		gaze   GazeBehavior
		locked bool
		accel  bool
	}{
		{"", true, GazeDuringMotion, false, false},
		{"default", true, GazeDuringMotion, false, false},
		{"seated", true, GazeAlways, true, false},
		{"active", true, GazeDuringMotion, false, true},
		{"sprinting", false, GazeNever, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ok := Preset(tt.name)
			if ok != tt.ok {
				t.Fatalf("Preset(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			}
			if !ok {
				return
			}
			if cfg.FollowGaze != tt.gaze {
				t.Errorf("FollowGaze = %v, want %v", cfg.FollowGaze, tt.gaze)
			}
			if cfg.IsLockedToHead != tt.locked {
				t.Errorf("IsLockedToHead = %v, want %v", cfg.IsLockedToHead, tt.locked)
			}
			if cfg.UseAccelerometer != tt.accel {
				t.Errorf("UseAccelerometer = %v, want %v", cfg.UseAccelerometer, tt.accel)
			}
		})
	}
}

func TestApplyConfig_RoundTrip(t *testing.T) {
	cfg := SeatedConfig()
	cfg.Handedness = Left
	cfg.AddedElbowHeight = 0.05
	cfg.PointerTiltAngle = 20

	c := NewWithConfig(cfg)
	if got := c.Config(); got != cfg {
		t.Errorf("Config() = %+v, want %+v", got, cfg)
	}
}

func TestApplyConfig_ClampsTooltipAngle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TooltipMaxAngleFromCamera = 500

	c := NewWithConfig(cfg)
	if c.TooltipMaxAngleFromCamera() != 180 {
		t.Errorf("got %v, want 180", c.TooltipMaxAngleFromCamera())
	}
}

func TestTuningParams_OnlySetFieldsApplied(t *testing.T) {
	var p TuningParams
	if err := json.Unmarshal([]byte(`{"handedness":"left","pointer_tilt_angle":30}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	base := ActiveConfig()
	got := p.Apply(base)

	if got.Handedness != Left {
		t.Errorf("Handedness = %v, want left", got.Handedness)
	}
	if got.PointerTiltAngle != 30 {
		t.Errorf("PointerTiltAngle = %v, want 30", got.PointerTiltAngle)
	}
	if !got.UseAccelerometer {
		t.Error("UseAccelerometer should be untouched")
	}
	if got.FadeDistanceFromFace != base.FadeDistanceFromFace {
		t.Errorf("FadeDistanceFromFace = %v, want %v", got.FadeDistanceFromFace, base.FadeDistanceFromFace)
	}
}

func TestTuningParams_ClampsTooltipAngle(t *testing.T) {
	angle := float32(-30)
	got := TuningParams{TooltipMaxAngleFromCamera: &angle}.Apply(DefaultConfig())
	if got.TooltipMaxAngleFromCamera != 0 {
		t.Errorf("got %v, want 0", got.TooltipMaxAngleFromCamera)
	}
}

func TestTuningParams_RejectsUnknownEnum(t *testing.T) {
	var p TuningParams
	if err := json.Unmarshal([]byte(`{"follow_gaze":"sometimes"}`), &p); err == nil {
		t.Error("expected error for unknown gaze behavior")
	}
}

func TestConfig_YAML(t *testing.T) {
	src := []byte(`
handedness: left
follow_gaze: always
use_accelerometer: true
pointer_tilt_angle: 10
`)
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(src, &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Handedness != Left || cfg.FollowGaze != GazeAlways || !cfg.UseAccelerometer {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.PointerTiltAngle != 10 {
		t.Errorf("PointerTiltAngle = %v, want 10", cfg.PointerTiltAngle)
	}
	// fields not in the document keep their defaults
	if cfg.TooltipMinDistanceFromFace != DefaultTooltipMinDistanceFromFace {
		t.Errorf("TooltipMinDistanceFromFace = %v", cfg.TooltipMinDistanceFromFace)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Config
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != cfg {
		t.Errorf("round trip: got %+v, want %+v", back, cfg)
	}
}

func TestParseHandedness(t *testing.T) {
	for in, want := range map[string]Handedness{"right": Right, "LEFT": Left, "Unknown": UnknownHandedness} {
		got, err := ParseHandedness(in)
		if err != nil || got != want {
			t.Errorf("ParseHandedness(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseHandedness("both"); err == nil {
		t.Error("expected error for invalid handedness")
	}
	if s := Handedness(9).String(); s != "Handedness(9)" {
		t.Errorf("String() = %q", s)
	}
}

func TestParseGazeBehavior(t *testing.T) {
	for in, want := range map[string]GazeBehavior{"never": GazeNever, "during_motion": GazeDuringMotion, "ALWAYS": GazeAlways} {
		got, err := ParseGazeBehavior(in)
		if err != nil || got != want {
			t.Errorf("ParseGazeBehavior(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseGazeBehavior(""); err == nil {
		t.Error("expected error for empty gaze behavior")
	}
}

func TestUpdateData_JSON(t *testing.T) {
	in := RestingSample(0.02)
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out UpdateData
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}
