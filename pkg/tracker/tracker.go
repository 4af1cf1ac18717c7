// Package tracker runs one arm model per tracked hand. A Tracker pulls
// samples from a sensor.Source on a fixed tick, advances its Controller,
// and publishes the resulting pose.
package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/teslashibe/go-armmodel/internal/log"
	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/debug"
	"github.com/teslashibe/go-armmodel/pkg/sensor"
)

// heartbeatEvery is how many ticks pass between heartbeat logs.
const heartbeatEvery = 100

// ErrInvalidSample is reported for samples carrying NaN or Inf.
var ErrInvalidSample = errors.New("tracker: sample has NaN/Inf")

// Update is one published pose.
type Update struct {
	Hand string
	Tick uint64
	Pose armmodel.Pose
}

// Config configures a Tracker.
type Config struct {
	Name     string
	Arm      armmodel.Config
	Interval time.Duration // tick period for Run
}

// Stats are running counters for one tracker.
type Stats struct {
	Ticks         uint64 `json:"ticks"`
	SourceErrors  uint64 `json:"source_errors"`
	RejectedInput uint64 `json:"rejected_input"`
	NonFinitePose uint64 `json:"non_finite_pose"`
}

// Tracker owns one Controller. Step and Run may be called from one
// goroutine while Pose, Config and ApplyTuning are called from others.
type Tracker struct {
	id       uuid.UUID
	name     string
	interval time.Duration
	src      sensor.Source
	logger   *slog.Logger

	mu     sync.RWMutex
	model  *armmodel.Controller
	pose   armmodel.Pose
	tick   uint64
	onPose func(Update)

	running       atomic.Bool
	ticks         atomic.Uint64
	sourceErrors  atomic.Uint64
	rejectedInput atomic.Uint64
	nonFinitePose atomic.Uint64
}

// New creates a tracker reading from src. src may be nil if the tracker
// is only driven through Step.
func New(cfg Config, src sensor.Source) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second / 60
	}
	id := uuid.New()
	model := armmodel.NewWithConfig(cfg.Arm)
	return &Tracker{
		id:       id,
		name:     cfg.Name,
		interval: cfg.Interval,
		src:      src,
		model:    model,
		pose:     model.Pose(),
		logger:   log.Component("tracker").With("hand", cfg.Name, "id", id.String()),
	}
}

// ID returns the tracker's unique ID.
func (t *Tracker) ID() uuid.UUID { return t.id }

// Name returns the hand name.
func (t *Tracker) Name() string { return t.name }

// OnPose sets the callback invoked after every successful step. It runs
// on the stepping goroutine and must not block.
func (t *Tracker) OnPose(fn func(Update)) {
	t.mu.Lock()
	t.onPose = fn
	t.mu.Unlock()
}

// Run steps the model once per tick until ctx ends or the source is
// exhausted or closed. Transient source errors are counted and skipped.
func (t *Tracker) Run(ctx context.Context) error {
	if t.src == nil {
		return errors.New("tracker: no source")
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.running.Store(true)
	defer t.running.Store(false)

	t.logger.Info("tracker started", "source", t.src.Name(), "interval", t.interval)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped", "ticks", t.ticks.Load())
			return nil

		case <-ticker.C:
			done, err := t.pull(ctx)
			if done {
				return err
			}
		}
	}
}

// Drain steps the model as fast as the source yields samples, until the
// source ends. It is used for offline processing of recordings.
func (t *Tracker) Drain(ctx context.Context) error {
	if t.src == nil {
		return errors.New("tracker: no source")
	}
	t.running.Store(true)
	defer t.running.Store(false)

	for {
		if done, err := t.pull(ctx); done {
			return err
		}
	}
}

// pull reads and steps one sample. done reports that the loop should end.
func (t *Tracker) pull(ctx context.Context) (done bool, err error) {
	data, err := t.src.Next(ctx)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, sensor.ErrClosed):
		t.logger.Info("source finished", "source", t.src.Name(), "ticks", t.ticks.Load())
		return true, nil
	case ctx.Err() != nil:
		return true, nil
	default:
		t.sourceErrors.Add(1)
		t.logger.Warn("source error", "error", err)
		return false, nil
	}

	if _, err := t.Step(data); err != nil {
		t.logger.Warn("sample rejected", "error", err)
	}
	return false, nil
}

// Step runs one synchronous update and publishes the pose.
func (t *Tracker) Step(data armmodel.UpdateData) (armmodel.Pose, error) {
	if !finiteSample(data) {
		t.rejectedInput.Add(1)
		return armmodel.Pose{}, ErrInvalidSample
	}
	data.Orientation = data.Orientation.Normalized()

	t.mu.Lock()
	t.model.Update(data)
	pose := t.model.Pose()
	if !pose.IsFinite() {
		t.mu.Unlock()
		t.nonFinitePose.Add(1)
		return pose, errors.New("tracker: model produced NaN/Inf pose")
	}
	t.pose = pose
	t.tick++
	tick := t.tick
	publish := t.onPose
	t.mu.Unlock()

	n := t.ticks.Add(1)
	debug.FrameLog("frame", "hand", t.name, "tick", tick,
		"wrist", pose.WristPosition, "alpha", pose.ControllerAlpha)
	if n%heartbeatEvery == 0 {
		t.logger.Debug("heartbeat", "ticks", n,
			"source_errors", t.sourceErrors.Load(),
			"rejected", t.rejectedInput.Load())
	}

	if publish != nil {
		publish(Update{Hand: t.name, Tick: tick, Pose: pose})
	}
	return pose, nil
}

// Pose returns the last published pose and its tick.
func (t *Tracker) Pose() (armmodel.Pose, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pose, t.tick
}

// Config returns the model's current configuration.
func (t *Tracker) Config() armmodel.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.model.Config()
}

// ApplyTuning applies a partial configuration update and returns the
// resulting configuration. It takes effect on the next step.
func (t *Tracker) ApplyTuning(p armmodel.TuningParams) armmodel.Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	cfg := p.Apply(t.model.Config())
	t.model.ApplyConfig(cfg)
	t.logger.Info("configuration updated", "handedness", cfg.Handedness, "gaze", cfg.FollowGaze)
	return t.model.Config()
}

// IsRunning reports whether Run or Drain is active.
func (t *Tracker) IsRunning() bool { return t.running.Load() }

// Stats returns the tracker counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Ticks:         t.ticks.Load(),
		SourceErrors:  t.sourceErrors.Load(),
		RejectedInput: t.rejectedInput.Load(),
		NonFinitePose: t.nonFinitePose.Load(),
	}
}

// Info describes a tracker for listings.
type Info struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Source  string `json:"source"`
	Running bool   `json:"running"`
	Tick    uint64 `json:"tick"`
	Stats   Stats  `json:"stats"`
}

// Info returns a snapshot description of the tracker.
func (t *Tracker) Info() Info {
	_, tick := t.Pose()
	src := ""
	if t.src != nil {
		src = t.src.Name()
	}
	return Info{
		ID:      t.id.String(),
		Name:    t.name,
		Source:  src,
		Running: t.IsRunning(),
		Tick:    tick,
		Stats:   t.Stats(),
	}
}

// Close closes the tracker's source.
func (t *Tracker) Close() error {
	if t.src == nil {
		return nil
	}
	return t.src.Close()
}

func finiteSample(d armmodel.UpdateData) bool {
	return d.Acceleration.IsFinite() && d.Orientation.IsFinite() && d.Gyro.IsFinite() &&
		d.HeadDirection.IsFinite() && d.HeadPosition.IsFinite() &&
		isFinite(d.DeltaTimeSeconds) && d.DeltaTimeSeconds >= 0
}

func isFinite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}
