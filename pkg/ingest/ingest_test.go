package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/protocol"
)

type received struct {
	device string
	hand   string
	data   armmodel.UpdateData
}

// sink collects callback invocations.
type sink struct {
	mu      sync.Mutex
	samples []received
	configs []armmodel.TuningParams
}

func (k *sink) sample(device, hand string, data armmodel.UpdateData) error {
	if hand == "middle" {
		return errors.New("no tracker for hand middle")
	}
	k.mu.Lock()
	k.samples = append(k.samples, received{device, hand, data})
	k.mu.Unlock()
	return nil
}

func (k *sink) config(device, hand string, p armmodel.TuningParams) error {
	k.mu.Lock()
	k.configs = append(k.configs, p)
	k.mu.Unlock()
	return nil
}

func (k *sink) snapshot() []received {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]received(nil), k.samples...)
}

func startServer(t *testing.T, s *Server) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	s.RegisterRoutes(app)
	s.RegisterAPIRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewServer(t *testing.T) {
	s := NewServer()
	if s.DeviceCount() != 0 {
		t.Error("DeviceCount should be 0 initially")
	}
	if st := s.Stats(); st.MessagesReceived != 0 || st.SamplesReceived != 0 {
		t.Errorf("Stats = %+v", st)
	}
	if len(s.Devices()) != 0 {
		t.Error("Devices should be empty initially")
	}
}

func TestSampleCallback(t *testing.T) {
	s := NewServer()
	k := &sink{}
	s.OnSample(k.sample)
	base := startServer(t, s)

	ws := dial(t, base+"/ws/device/glove-1")
	waitFor(t, func() bool { return s.DeviceCount() == 1 })

	data := armmodel.RestingSample(0.016)
	data.Orientation.W = 2 // not unit
	msg, _ := protocol.NewSampleMessage("right", data)
	send(t, ws, msg)

	waitFor(t, func() bool { return len(k.snapshot()) == 1 })
	got := k.snapshot()[0]
	if got.device != "glove-1" || got.hand != "right" {
		t.Errorf("callback got %s/%s", got.device, got.hand)
	}
	if got.data.Orientation.W != 1 {
		t.Errorf("orientation = %v, want normalized", got.data.Orientation)
	}
	if got.data.DeltaTimeSeconds != 0.016 {
		t.Errorf("dt = %v", got.data.DeltaTimeSeconds)
	}

	infos := s.Devices()
	if len(infos) != 1 || infos[0].ID != "glove-1" || len(infos[0].Hands) != 1 || infos[0].Samples != 1 {
		t.Errorf("Devices = %+v", infos)
	}
}

func TestGeneratedDeviceID(t *testing.T) {
	s := NewServer()
	base := startServer(t, s)

	dial(t, base+"/ws/device")
	waitFor(t, func() bool { return s.DeviceCount() == 1 })
	if id := s.Devices()[0].ID; len(id) != 36 {
		t.Errorf("generated id = %q, want a uuid", id)
	}
}

func TestRejectsBadMessages(t *testing.T) {
	s := NewServer()
	k := &sink{}
	s.OnSample(k.sample)
	base := startServer(t, s)
	ws := dial(t, base+"/ws/device/bad")

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", "{oops", "parse"},
		{"no hand", `{"type":"sample","data":{"dt":0.1}}`, "no hand"},
		{"unknown hand", `{"type":"sample","data":{"hand":"middle"}}`, "middle"},
		{"unknown type", `{"type":"teleport","data":{}}`, "teleport"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws.WriteMessage(websocket.TextMessage, []byte(tc.raw))
			msg := read(t, ws)
			if msg.Type != protocol.TypeError {
				t.Fatalf("Type = %s, want error", msg.Type)
			}
			var e protocol.ErrorData
			msg.ParseData(&e)
			if !strings.Contains(e.Message, tc.want) {
				t.Errorf("error %q should mention %q", e.Message, tc.want)
			}
		})
	}
	if s.Stats().Rejected != uint64(len(cases)) {
		t.Errorf("Rejected = %d", s.Stats().Rejected)
	}
}

func TestPingPong(t *testing.T) {
	s := NewServer()
	base := startServer(t, s)
	ws := dial(t, base+"/ws/device/ping")

	ping, _ := protocol.NewPingMessage("p1", 1000)
	send(t, ws, ping)

	msg := read(t, ws)
	if msg.Type != protocol.TypePong {
		t.Fatalf("Type = %s, want pong", msg.Type)
	}
	var pong protocol.PongData
	msg.ParseData(&pong)
	if pong.ID != "p1" || pong.PingTS != 1000 || pong.PongTS < 1000 {
		t.Errorf("pong = %+v", pong)
	}

	// a bare ping still gets a pong
	bare, _ := protocol.NewMessage(protocol.TypePing, nil)
	send(t, ws, bare)
	if msg := read(t, ws); msg.Type != protocol.TypePong {
		t.Errorf("Type = %s, want pong", msg.Type)
	}
}

func TestConfigCallback(t *testing.T) {
	s := NewServer()
	k := &sink{}
	s.OnConfig(k.config)
	base := startServer(t, s)
	ws := dial(t, base+"/ws/device/cfg")

	left := armmodel.Left
	msg, _ := protocol.NewConfigMessage("right", armmodel.TuningParams{Handedness: &left})
	send(t, ws, msg)

	waitFor(t, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		return len(k.configs) == 1
	})
	k.mu.Lock()
	got := k.configs[0]
	k.mu.Unlock()
	if got.Handedness == nil || *got.Handedness != armmodel.Left {
		t.Errorf("config = %+v", got)
	}
}

func TestDisconnectSignalsLostController(t *testing.T) {
	s := NewServer()
	k := &sink{}
	s.OnSample(k.sample)
	base := startServer(t, s)

	ws := dial(t, base+"/ws/device/glove")
	msg, _ := protocol.NewSampleMessage("left", armmodel.RestingSample(0.01))
	send(t, ws, msg)
	waitFor(t, func() bool { return len(k.snapshot()) == 1 })

	ws.Close()
	waitFor(t, func() bool { return len(k.snapshot()) == 2 })

	last := k.snapshot()[1]
	if last.hand != "left" || last.data.Connected {
		t.Errorf("disconnect sample = %+v", last)
	}
	if last.data.DeltaTimeSeconds != 0 {
		t.Errorf("disconnect dt = %v, want 0", last.data.DeltaTimeSeconds)
	}
	waitFor(t, func() bool { return s.DeviceCount() == 0 })
}

func TestPublishPose(t *testing.T) {
	s := NewServer()
	s.OnSample(func(string, string, armmodel.UpdateData) error { return nil })
	base := startServer(t, s)

	right := dial(t, base+"/ws/device/r")
	left := dial(t, base+"/ws/device/l")
	for ws, hand := range map[*websocket.Conn]string{right: "right", left: "left"} {
		msg, _ := protocol.NewSampleMessage(hand, armmodel.RestingSample(0.01))
		send(t, ws, msg)
	}
	waitFor(t, func() bool { return s.Stats().SamplesReceived == 2 })

	pose := armmodel.New().Pose()
	if n := s.PublishPose("right", 7, pose); n != 1 {
		t.Fatalf("PublishPose reached %d devices, want 1", n)
	}

	msg := read(t, right)
	if msg.Type != protocol.TypePose {
		t.Fatalf("Type = %s, want pose", msg.Type)
	}
	data, err := msg.GetPoseData()
	if err != nil || data.Hand != "right" || data.Tick != 7 {
		t.Errorf("pose = %+v, %v", data, err)
	}

	if err := s.SendPose("l", "left", 1, pose); err != nil {
		t.Errorf("SendPose: %v", err)
	}
	if msg := read(t, left); msg.Type != protocol.TypePose {
		t.Errorf("Type = %s, want pose", msg.Type)
	}

	if err := s.SendPose("ghost", "left", 1, pose); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendPose(ghost) = %v, want ErrNotConnected", err)
	}
}

func TestDuplicateDeviceID(t *testing.T) {
	s := NewServer()
	base := startServer(t, s)

	dial(t, base+"/ws/device/twin")
	waitFor(t, func() bool { return s.DeviceCount() == 1 })

	second := dial(t, base+"/ws/device/twin")
	if msg := read(t, second); msg.Type != protocol.TypeError {
		t.Errorf("Type = %s, want error", msg.Type)
	}
	if s.DeviceCount() != 1 {
		t.Errorf("DeviceCount = %d, want 1", s.DeviceCount())
	}
}

func TestAPI(t *testing.T) {
	s := NewServer()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	s.RegisterRoutes(app)
	s.RegisterAPIRoutes(app.Group("/api"))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/devices/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var list struct {
		Devices []DeviceInfo `json:"devices"`
		Count   int          `json:"count"`
	}
	if err := json.Unmarshal(body, &list); err != nil || list.Count != 0 {
		t.Errorf("list = %s, %v", body, err)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/devices/stats", nil))
	if resp.StatusCode != 200 {
		t.Errorf("stats Status = %d", resp.StatusCode)
	}

	// plain HTTP to the websocket endpoint needs an upgrade
	resp, _ = app.Test(httptest.NewRequest("GET", "/ws/device", nil))
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("ws Status = %d, want 426", resp.StatusCode)
	}
}
