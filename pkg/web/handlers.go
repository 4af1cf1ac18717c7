package web

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/hub"
	"github.com/teslashibe/go-armmodel/pkg/ingest"
	"github.com/teslashibe/go-armmodel/pkg/protocol"
	"github.com/teslashibe/go-armmodel/pkg/tracker"
)

// Status is the response of /api/status.
type Status struct {
	Uptime  string        `json:"uptime"`
	Hands   int           `json:"hands"`
	Viewers hub.Stats     `json:"viewers"`
	Devices *ingest.Stats `json:"devices,omitempty"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, tracker.ErrNotFound):
		code = fiber.StatusNotFound
	}
	if code >= 500 {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
		"hands":   s.hands.Len(),
	})
}

// handleMetrics renders counters in the Prometheus text format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	var b strings.Builder
	metric := func(name, kind, help string) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
	}

	metric("armmodel_ticks_total", "counter", "Model updates per hand")
	list := s.hands.List()
	for _, t := range list {
		fmt.Fprintf(&b, "armmodel_ticks_total{hand=%q} %d\n", t.Name(), t.Stats().Ticks)
	}
	metric("armmodel_rejected_samples_total", "counter", "Samples rejected for NaN/Inf per hand")
	for _, t := range list {
		fmt.Fprintf(&b, "armmodel_rejected_samples_total{hand=%q} %d\n", t.Name(), t.Stats().RejectedInput)
	}
	metric("armmodel_source_errors_total", "counter", "Sensor source errors per hand")
	for _, t := range list {
		fmt.Fprintf(&b, "armmodel_source_errors_total{hand=%q} %d\n", t.Name(), t.Stats().SourceErrors)
	}

	vs := s.poses.Stats()
	metric("armmodel_viewers", "gauge", "Connected pose viewers")
	fmt.Fprintf(&b, "armmodel_viewers %d\n", vs.Clients)
	metric("armmodel_viewer_evictions_total", "counter", "Viewers dropped for falling behind")
	fmt.Fprintf(&b, "armmodel_viewer_evictions_total %d\n", vs.Evicted)

	if s.devices != nil {
		ds := s.devices.Stats()
		metric("armmodel_devices", "gauge", "Connected controller devices")
		fmt.Fprintf(&b, "armmodel_devices %d\n", ds.DeviceCount)
		metric("armmodel_device_samples_total", "counter", "Samples received from devices")
		fmt.Fprintf(&b, "armmodel_device_samples_total %d\n", ds.SamplesReceived)
	}

	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(b.String())
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Hands:   s.hands.Len(),
		Viewers: s.poses.Stats(),
	}
	if s.devices != nil {
		ds := s.devices.Stats()
		st.Devices = &ds
	}
	return c.JSON(st)
}

func (s *Server) handleListHands(c *fiber.Ctx) error {
	list := s.hands.List()
	infos := make([]tracker.Info, 0, len(list))
	for _, t := range list {
		infos = append(infos, t.Info())
	}
	return c.JSON(infos)
}

func (s *Server) hand(c *fiber.Ctx) (*tracker.Tracker, error) {
	return s.hands.Get(c.Params("id"))
}

func (s *Server) requireHand(c *fiber.Ctx) error {
	if _, err := s.hand(c); err != nil {
		return err
	}
	return c.Next()
}

func (s *Server) handleGetHand(c *fiber.Ctx) error {
	t, err := s.hand(c)
	if err != nil {
		return err
	}
	return c.JSON(t.Info())
}

func (s *Server) handleGetPose(c *fiber.Ctx) error {
	t, err := s.hand(c)
	if err != nil {
		return err
	}
	pose, tick := t.Pose()
	return c.JSON(protocol.PoseData{Hand: t.Name(), Tick: tick, Pose: pose})
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	t, err := s.hand(c)
	if err != nil {
		return err
	}
	return c.JSON(t.Config())
}

// handleUpdateConfig applies a partial update; omitted fields keep their
// current values.
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	t, err := s.hand(c)
	if err != nil {
		return err
	}
	var params armmodel.TuningParams
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(t.ApplyTuning(params))
}

// handlePoseWS streams poses to a viewer, for one hand when the route
// carries an id.
func (s *Server) handlePoseWS(c *websocket.Conn) {
	topic := ""
	if id := c.Params("id"); id != "" {
		t, err := s.hands.Get(id)
		if err != nil {
			return
		}
		topic = t.Name()
	}
	hub.NewClient(s.poses, c, topic).Run()
}
