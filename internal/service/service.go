// Package service wires configuration, sensor sources, trackers and the
// web front end into one running process.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-armmodel/internal/config"
	"github.com/teslashibe/go-armmodel/internal/log"
	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/debug"
	"github.com/teslashibe/go-armmodel/pkg/ingest"
	"github.com/teslashibe/go-armmodel/pkg/protocol"
	"github.com/teslashibe/go-armmodel/pkg/sensor"
	"github.com/teslashibe/go-armmodel/pkg/tracker"
	"github.com/teslashibe/go-armmodel/pkg/web"
)

// remoteBuffer is how many unread device samples a hand keeps.
const remoteBuffer = 8

// Service is a configured set of trackers plus their front ends.
type Service struct {
	cfg    config.Config
	logger *slog.Logger

	hands   *tracker.Registry
	remotes map[string]*sensor.ChannelSource
	devices *ingest.Server
	web     *web.Server
}

// New builds a tracker, with its source, for every configured hand.
func New(cfg config.Config) (*Service, error) {
	s := &Service{
		cfg:     cfg,
		logger:  log.Component("service"),
		hands:   tracker.NewRegistry(),
		remotes: make(map[string]*sensor.ChannelSource),
	}
	if cfg.Source.Kind == config.SourceRemote {
		s.devices = ingest.NewServer()
		s.devices.OnSample(s.pushSample)
		s.devices.OnConfig(s.applyConfig)
	}

	for _, h := range cfg.Hands {
		if err := s.addHand(h); err != nil {
			s.hands.Close()
			return nil, err
		}
	}

	s.web = web.NewServer(cfg.Server.Port, s.hands, s.devices)
	for _, t := range s.hands.List() {
		t.OnPose(s.web.PublishPose)
	}
	return s, nil
}

func (s *Service) addHand(h config.HandConfig) error {
	arm, err := h.Arm()
	if err != nil {
		return err
	}
	src, err := s.openSource(h.Name)
	if err != nil {
		return err
	}
	if path := s.cfg.RecordPath(h.Name); path != "" {
		rec, err := sensor.CreateRecorder(path)
		if err != nil {
			src.Close()
			return err
		}
		src = sensor.Tee(src, rec)
	}

	t := tracker.New(tracker.Config{
		Name:     h.Name,
		Arm:      arm,
		Interval: s.cfg.Source.TickInterval(),
	}, src)
	if err := s.hands.Add(t); err != nil {
		src.Close()
		return err
	}
	s.logger.Info("hand configured", "hand", h.Name, "source", src.Name(),
		"handedness", arm.Handedness, "gaze", arm.FollowGaze)
	return nil
}

func (s *Service) openSource(hand string) (sensor.Source, error) {
	switch s.cfg.Source.Kind {
	case config.SourceReplay:
		return sensor.OpenReplay(s.cfg.Source.Replay, s.cfg.Source.Loop)
	case config.SourceRemote:
		ch := sensor.NewChannelSource(hand, remoteBuffer)
		s.remotes[hand] = ch
		return ch, nil
	default:
		dt := float32(1 / s.cfg.Source.TickHz)
		return sensor.NewSimSource(s.cfg.Source.Script, dt)
	}
}

func (s *Service) pushSample(deviceID, hand string, data armmodel.UpdateData) error {
	ch, ok := s.remotes[hand]
	if !ok {
		return fmt.Errorf("no tracked hand %q", hand)
	}
	if !ch.Push(data) {
		return fmt.Errorf("hand %q is shutting down", hand)
	}
	return nil
}

func (s *Service) applyConfig(deviceID, hand string, params armmodel.TuningParams) error {
	t, err := s.hands.Get(hand)
	if err != nil {
		return err
	}
	cfg := t.ApplyTuning(params)
	debug.Log("device tuning applied", "device", deviceID, "hand", hand,
		"handedness", cfg.Handedness, "accelerometer", cfg.UseAccelerometer)
	return nil
}

// Hands returns the tracker registry.
func (s *Service) Hands() *tracker.Registry { return s.hands }

// Web returns the HTTP front end.
func (s *Service) Web() *web.Server { return s.web }

// Run serves HTTP on the configured port and runs every tracker until ctx
// ends.
func (s *Service) Run(ctx context.Context) error {
	return s.run(ctx, s.web.Start)
}

// Serve is Run on an existing listener. The HTTP server keeps running
// after a finite source (a replay) ends, until ctx ends.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	return s.run(ctx, func(ctx context.Context) error { return s.web.Serve(ctx, ln) })
}

func (s *Service) run(ctx context.Context, serve func(context.Context) error) error {
	defer s.hands.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(ctx) })
	for _, t := range s.hands.List() {
		t := t // per-iteration copy (go directive lowered to 1.21 for the local toolchain)
		g.Go(func() error { return t.Run(ctx) })
	}
	return g.Wait()
}

// Offline drains every hand's source as fast as possible and writes one
// NDJSON pose record per update to w, hand by hand.
func (s *Service) Offline(ctx context.Context, w io.Writer) error {
	defer s.hands.Close()
	if s.cfg.Source.Kind != config.SourceReplay || s.cfg.Source.Loop {
		return errors.New("offline processing needs a non-looping replay source")
	}

	enc := json.NewEncoder(w)
	for _, t := range s.hands.List() {
		var werr error
		t.OnPose(func(u tracker.Update) {
			if werr != nil {
				return
			}
			werr = enc.Encode(protocol.PoseData{Hand: u.Hand, Tick: u.Tick, Pose: u.Pose})
		})
		if err := t.Drain(ctx); err != nil {
			return err
		}
		if werr != nil {
			return fmt.Errorf("write poses: %w", werr)
		}
		st := t.Stats()
		s.logger.Info("hand processed", "hand", t.Name(), "ticks", st.Ticks,
			"rejected", st.RejectedInput, "source_errors", st.SourceErrors)
	}
	return ctx.Err()
}
