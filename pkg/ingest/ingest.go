// Package ingest accepts websocket connections from controller devices.
// Devices stream sensor samples for a named hand and receive the
// resulting poses back on the same connection.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-armmodel/internal/log"
	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/protocol"
)

// writeWait bounds one write to a device.
const writeWait = 2 * time.Second

// ErrNotConnected is returned when sending to an unknown device.
var ErrNotConnected = errors.New("ingest: device not connected")

// SampleFunc receives one decoded sample. A returned error is reported to
// the device.
type SampleFunc func(deviceID, hand string, data armmodel.UpdateData) error

// ConfigFunc receives a partial configuration update from a device.
type ConfigFunc func(deviceID, hand string, params armmodel.TuningParams) error

// Device is one connected controller.
type Device struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex // guards writes and the fields below
	lastSeen time.Time
	hands    map[string]struct{}
	samples  uint64
}

// Send writes a message to the device.
func (d *Device) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return d.Conn.WriteMessage(websocket.TextMessage, data)
}

func (d *Device) touch(hand string) {
	d.mu.Lock()
	d.lastSeen = time.Now()
	if hand != "" {
		d.hands[hand] = struct{}{}
		d.samples++
	}
	d.mu.Unlock()
}

func (d *Device) streams(hand string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.hands[hand]
	return ok
}

func (d *Device) handList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	hands := make([]string, 0, len(d.hands))
	for h := range d.hands {
		hands = append(hands, h)
	}
	sort.Strings(hands)
	return hands
}

// Server manages device connections.
type Server struct {
	mu      sync.RWMutex
	devices map[string]*Device
	logger  *slog.Logger

	onSample SampleFunc
	onConfig ConfigFunc

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	samplesReceived  atomic.Uint64
	rejected         atomic.Uint64
}

// NewServer creates a device server.
func NewServer() *Server {
	return &Server{
		devices: make(map[string]*Device),
		logger:  log.Component("ingest"),
	}
}

// OnSample sets the callback for incoming samples.
func (s *Server) OnSample(fn SampleFunc) {
	s.mu.Lock()
	s.onSample = fn
	s.mu.Unlock()
}

// OnConfig sets the callback for configuration updates.
func (s *Server) OnConfig(fn ConfigFunc) {
	s.mu.Lock()
	s.onConfig = fn
	s.mu.Unlock()
}

// RegisterRoutes mounts the device endpoints on app.
func (s *Server) RegisterRoutes(app fiber.Router) {
	app.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/device", websocket.New(s.handleDevice))
	app.Get("/ws/device/:id", websocket.New(s.handleDevice))
}

func (s *Server) handleDevice(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	dev := &Device{
		ID:        id,
		Conn:      c,
		Connected: now,
		lastSeen:  now,
		hands:     make(map[string]struct{}),
	}

	s.mu.Lock()
	if _, taken := s.devices[id]; taken {
		s.mu.Unlock()
		s.logger.Warn("duplicate device id", "device", id)
		if msg, err := protocol.NewErrorMessage(fmt.Sprintf("device %q already connected", id)); err == nil {
			dev.Send(msg)
		}
		return
	}
	s.devices[id] = dev
	count := len(s.devices)
	s.mu.Unlock()

	s.logger.Info("device connected", "device", id, "devices", count)

	defer func() {
		s.mu.Lock()
		delete(s.devices, id)
		count := len(s.devices)
		s.mu.Unlock()

		s.disconnect(dev)
		s.logger.Info("device disconnected", "device", id, "devices", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.logger.Debug("device read ended", "device", id, "error", err)
			return
		}
		s.messagesReceived.Add(1)
		s.handleMessage(dev, data)
	}
}

// disconnect tells the model that every hand this device drove has lost
// its controller.
func (s *Server) disconnect(dev *Device) {
	s.mu.RLock()
	cb := s.onSample
	s.mu.RUnlock()
	if cb == nil {
		return
	}
	for _, hand := range dev.handList() {
		lost := armmodel.RestingSample(0)
		lost.Connected = false
		if err := cb(dev.ID, hand, lost); err != nil {
			s.logger.Debug("disconnect sample rejected", "device", dev.ID, "hand", hand, "error", err)
		}
	}
}

func (s *Server) handleMessage(dev *Device, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.reject(dev, err)
		return
	}

	s.mu.RLock()
	sampleCb := s.onSample
	configCb := s.onConfig
	s.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeSample:
		sample, err := msg.GetSampleData()
		if err != nil {
			s.reject(dev, err)
			return
		}
		if sample.Hand == "" {
			s.reject(dev, errors.New("sample has no hand"))
			return
		}
		dev.touch(sample.Hand)
		s.samplesReceived.Add(1)
		if sampleCb == nil {
			return
		}
		data := sample.UpdateData
		data.Orientation = data.Orientation.Normalized()
		if err := sampleCb(dev.ID, sample.Hand, data); err != nil {
			s.reject(dev, err)
		}

	case protocol.TypeConfig:
		dev.touch("")
		cfg, err := msg.GetConfigData()
		if err != nil {
			s.reject(dev, err)
			return
		}
		if configCb == nil {
			return
		}
		if err := configCb(dev.ID, cfg.Hand, cfg.TuningParams); err != nil {
			s.reject(dev, err)
		}

	case protocol.TypePing:
		dev.touch("")
		ping, err := msg.GetPingData()
		if err != nil {
			// bare ping: echo the envelope timestamp
			ping = &protocol.PingData{Timestamp: msg.Timestamp}
		}
		pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
		if err == nil {
			s.send(dev, pong)
		}

	default:
		s.reject(dev, fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

func (s *Server) reject(dev *Device, err error) {
	s.rejected.Add(1)
	s.logger.Debug("rejected device message", "device", dev.ID, "error", err)
	msg, merr := protocol.NewErrorMessage(err.Error())
	if merr != nil {
		return
	}
	s.send(dev, msg)
}

func (s *Server) send(dev *Device, msg *protocol.Message) error {
	s.messagesSent.Add(1)
	return dev.Send(msg)
}

// SendPose sends a pose to one device.
func (s *Server) SendPose(deviceID, hand string, tick uint64, pose armmodel.Pose) error {
	s.mu.RLock()
	dev, ok := s.devices[deviceID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, deviceID)
	}
	msg, err := protocol.NewPoseMessage(hand, tick, pose)
	if err != nil {
		return err
	}
	return s.send(dev, msg)
}

// PublishPose sends a pose to every device streaming that hand. It returns
// the number of devices reached.
func (s *Server) PublishPose(hand string, tick uint64, pose armmodel.Pose) int {
	s.mu.RLock()
	targets := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		if d.streams(hand) {
			targets = append(targets, d)
		}
	}
	s.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	msg, err := protocol.NewPoseMessage(hand, tick, pose)
	if err != nil {
		return 0
	}
	sent := 0
	for _, d := range targets {
		if err := s.send(d, msg); err != nil {
			s.logger.Debug("pose send failed", "device", d.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// DeviceCount returns the number of connected devices.
func (s *Server) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// Stats contains server statistics.
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	SamplesReceived  uint64 `json:"samples_received"`
	Rejected         uint64 `json:"rejected"`
}

// Stats returns server statistics.
func (s *Server) Stats() Stats {
	return Stats{
		DeviceCount:      s.DeviceCount(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		SamplesReceived:  s.samplesReceived.Load(),
		Rejected:         s.rejected.Load(),
	}
}

// DeviceInfo describes a connected device.
type DeviceInfo struct {
	ID        string    `json:"id"`
	Hands     []string  `json:"hands"`
	Samples   uint64    `json:"samples"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Devices returns info about all connected devices, sorted by ID.
func (s *Server) Devices() []DeviceInfo {
	s.mu.RLock()
	devs := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		devs = append(devs, d)
	}
	s.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		hands := d.handList()
		d.mu.Lock()
		infos = append(infos, DeviceInfo{
			ID:        d.ID,
			Hands:     hands,
			Samples:   d.samples,
			Connected: d.Connected,
			LastSeen:  d.lastSeen,
		})
		d.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// RegisterAPIRoutes mounts device listing endpoints under api.
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	devices := api.Group("/devices")

	devices.Get("/", func(c *fiber.Ctx) error {
		infos := s.Devices()
		return c.JSON(fiber.Map{
			"devices": infos,
			"count":   len(infos),
		})
	})

	devices.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.Stats())
	})
}
