// Package web serves the arm model's HTTP API and the live pose stream.
package web

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-armmodel/internal/log"
	"github.com/teslashibe/go-armmodel/pkg/debug"
	"github.com/teslashibe/go-armmodel/pkg/hub"
	"github.com/teslashibe/go-armmodel/pkg/ingest"
	"github.com/teslashibe/go-armmodel/pkg/protocol"
	"github.com/teslashibe/go-armmodel/pkg/tracker"
)

// Version is reported by /health.
var Version = "0.1.0"

// Server is the HTTP/websocket front end.
type Server struct {
	app     *fiber.App
	port    string
	logger  *slog.Logger
	started time.Time

	hands   *tracker.Registry
	devices *ingest.Server // nil unless devices stream remotely
	poses   *hub.Hub
}

// NewServer creates a server for the trackers in hands. devices may be nil.
func NewServer(port string, hands *tracker.Registry, devices *ingest.Server) *Server {
	s := &Server{
		port:    port,
		logger:  log.Component("web"),
		started: time.Now(),
		hands:   hands,
		devices: devices,
		poses:   hub.New("poses"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Arm Model",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,PUT,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if debug.Enabled {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/hands", s.handleListHands)
	api.Get("/hands/:id", s.handleGetHand)
	api.Get("/hands/:id/pose", s.handleGetPose)
	api.Get("/hands/:id/config", s.handleGetConfig)
	api.Put("/hands/:id/config", s.handleUpdateConfig)
	if devices != nil {
		devices.RegisterAPIRoutes(api)
		devices.RegisterRoutes(app)
	}

	app.Use("/ws/pose", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/pose", websocket.New(s.handlePoseWS))
	app.Get("/ws/pose/:id", s.requireHand, websocket.New(s.handlePoseWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Poses returns the viewer hub.
func (s *Server) Poses() *hub.Hub { return s.poses }

// PublishPose forwards a tracker update to viewers and to the devices
// streaming that hand. Use it as a tracker's OnPose callback.
func (s *Server) PublishPose(u tracker.Update) {
	msg, err := protocol.NewPoseMessage(u.Hand, u.Tick, u.Pose)
	if err == nil {
		err = s.poses.BroadcastJSON(u.Hand, msg)
	}
	if err != nil {
		s.logger.Warn("encode pose", "hand", u.Hand, "error", err)
		return
	}

	if s.devices != nil {
		s.devices.PublishPose(u.Hand, u.Tick, u.Pose)
	}
}

// Start listens on the configured port until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.poses.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	s.logger.Info("web server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("web server shutting down")
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}
