package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/ingest"
	"github.com/teslashibe/go-armmodel/pkg/protocol"
	"github.com/teslashibe/go-armmodel/pkg/tracker"
)

func newHands(t *testing.T, names ...string) *tracker.Registry {
	t.Helper()
	reg := tracker.NewRegistry()
	for _, n := range names {
		tr := tracker.New(tracker.Config{Name: n, Arm: armmodel.DefaultConfig()}, nil)
		if err := reg.Add(tr); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return reg
}

func get(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func TestStatus(t *testing.T) {
	s := NewServer("0", newHands(t, "left", "right"), ingest.NewServer())

	code, body := get(t, s, "GET", "/api/status", "")
	if code != 200 {
		t.Fatalf("Status = %d", code)
	}
	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Hands != 2 || st.Devices == nil {
		t.Errorf("status = %+v", st)
	}

	// device listing is mounted alongside
	if code, _ := get(t, s, "GET", "/api/devices/stats", ""); code != 200 {
		t.Errorf("devices stats = %d", code)
	}
}

func TestStatusWithoutDevices(t *testing.T) {
	s := NewServer("0", newHands(t, "right"), nil)
	_, body := get(t, s, "GET", "/api/status", "")
	if strings.Contains(string(body), "devices") {
		t.Errorf("status should omit devices: %s", body)
	}
	if code, _ := get(t, s, "GET", "/api/devices/stats", ""); code != 404 {
		t.Errorf("devices stats = %d, want 404", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	hands := newHands(t, "right")
	tr, _ := hands.Get("right")
	tr.Step(armmodel.RestingSample(0.016))
	tr.Step(armmodel.RestingSample(0.016))
	s := NewServer("0", hands, ingest.NewServer())

	code, body := get(t, s, "GET", "/health", "")
	if code != 200 || !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("health = %d %s", code, body)
	}

	code, body = get(t, s, "GET", "/metrics", "")
	if code != 200 {
		t.Fatalf("metrics = %d", code)
	}
	for _, want := range []string{
		`armmodel_ticks_total{hand="right"} 2`,
		"# TYPE armmodel_viewers gauge",
		"armmodel_devices 0",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestListHands(t *testing.T) {
	s := NewServer("0", newHands(t, "right", "left"), nil)

	code, body := get(t, s, "GET", "/api/hands", "")
	if code != 200 {
		t.Fatalf("Status = %d", code)
	}
	var infos []tracker.Info
	if err := json.Unmarshal(body, &infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "left" || infos[1].Name != "right" {
		t.Errorf("hands = %+v", infos)
	}

	// lookup by id works as well as by name
	code, body = get(t, s, "GET", "/api/hands/"+infos[1].ID, "")
	if code != 200 || !strings.Contains(string(body), `"name":"right"`) {
		t.Errorf("GET by id = %d %s", code, body)
	}
}

func TestGetPose(t *testing.T) {
	hands := newHands(t, "right")
	tr, _ := hands.Get("right")
	tr.Step(armmodel.RestingSample(0.016))
	s := NewServer("0", hands, nil)

	code, body := get(t, s, "GET", "/api/hands/right/pose", "")
	if code != 200 {
		t.Fatalf("Status = %d", code)
	}
	var pd protocol.PoseData
	if err := json.Unmarshal(body, &pd); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, _ := tr.Pose()
	if pd.Hand != "right" || pd.Tick != 1 || pd.Pose != want {
		t.Errorf("pose = %+v", pd)
	}
}

func TestUnknownHand(t *testing.T) {
	s := NewServer("0", newHands(t, "right"), nil)
	for _, path := range []string{"/api/hands/left", "/api/hands/left/pose", "/api/hands/left/config"} {
		code, body := get(t, s, "GET", path, "")
		if code != 404 || !strings.Contains(string(body), "not found") {
			t.Errorf("GET %s = %d %s", path, code, body)
		}
	}
}

func TestConfig(t *testing.T) {
	hands := newHands(t, "right")
	s := NewServer("0", hands, nil)

	code, body := get(t, s, "GET", "/api/hands/right/config", "")
	if code != 200 {
		t.Fatalf("Status = %d", code)
	}
	var cfg armmodel.Config
	json.Unmarshal(body, &cfg)
	if cfg != armmodel.DefaultConfig() {
		t.Errorf("config = %+v", cfg)
	}

	code, body = get(t, s, "PUT", "/api/hands/right/config", `{"handedness":"left","tooltip_max_angle_from_camera":500}`)
	if code != 200 {
		t.Fatalf("PUT = %d %s", code, body)
	}
	json.Unmarshal(body, &cfg)
	if cfg.Handedness != armmodel.Left {
		t.Errorf("handedness = %v", cfg.Handedness)
	}
	if cfg.TooltipMaxAngleFromCamera != 180 {
		t.Errorf("tooltip angle = %v, want clamped to 180", cfg.TooltipMaxAngleFromCamera)
	}
	if cfg.FollowGaze != armmodel.GazeDuringMotion {
		t.Errorf("omitted field changed: %v", cfg.FollowGaze)
	}

	tr, _ := hands.Get("right")
	if tr.Config().Handedness != armmodel.Left {
		t.Error("update did not reach the tracker")
	}

	if code, _ := get(t, s, "PUT", "/api/hands/right/config", `{"handedness":"both"}`); code != 400 {
		t.Errorf("bad enum = %d, want 400", code)
	}
}

func TestPoseStream(t *testing.T) {
	hands := newHands(t, "left", "right")
	s := NewServer("0", hands, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	base := "ws://" + ln.Addr().String()
	all, _, err := websocket.DefaultDialer.Dial(base+"/ws/pose", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer all.Close()
	left, _, err := websocket.DefaultDialer.Dial(base+"/ws/pose/left", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer left.Close()

	if _, _, err := websocket.DefaultDialer.Dial(base+"/ws/pose/middle", nil); err == nil {
		t.Error("dial for unknown hand should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Poses().ClientCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("viewers did not register")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for _, name := range []string{"right", "left"} {
		tr, _ := hands.Get(name)
		tr.OnPose(s.PublishPose)
		tr.Step(armmodel.RestingSample(0.016))
	}

	readPose := func(ws *websocket.Conn) *protocol.PoseData {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil || msg.Type != protocol.TypePose {
			t.Fatalf("message = %s, %v", data, err)
		}
		pd, err := msg.GetPoseData()
		if err != nil {
			t.Fatalf("pose: %v", err)
		}
		return pd
	}

	if pd := readPose(all); pd.Hand != "right" {
		t.Errorf("first pose for %q, want right", pd.Hand)
	}
	if pd := readPose(all); pd.Hand != "left" {
		t.Errorf("second pose for %q, want left", pd.Hand)
	}
	if pd := readPose(left); pd.Hand != "left" || pd.Tick != 1 {
		t.Errorf("left viewer got %+v", pd)
	}

	// viewers can measure latency
	ping, _ := protocol.NewPingMessage("v1", time.Now().UnixMilli())
	b, _ := ping.Bytes()
	left.WriteMessage(websocket.TextMessage, b)
	left.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := left.ReadMessage()
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if msg, _ := protocol.ParseMessage(data); msg == nil || msg.Type != protocol.TypePong {
		t.Errorf("reply = %s, want pong", data)
	}
}
