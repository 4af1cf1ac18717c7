package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/teslashibe/go-armmodel/internal/log"
)

func TestFlagsGateOutput(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf, "debug", false)
	defer func() { Enabled, Frames = false, false }()

	Log("off")
	FrameLog("off frame")
	if buf.Len() != 0 {
		t.Fatalf("expected no output with flags off, got %q", buf.String())
	}

	Enabled = true
	Log("general", "hand", "left")
	FrameLog("still off")
	if !strings.Contains(buf.String(), "general") || strings.Contains(buf.String(), "still off") {
		t.Errorf("unexpected output %q", buf.String())
	}

	Frames = true
	FrameLog("frame", "tick", 1)
	if !strings.Contains(buf.String(), "msg=frame") {
		t.Errorf("frame log missing: %q", buf.String())
	}
}
