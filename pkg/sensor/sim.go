package sensor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chewxy/math32"

	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/vecmath"
)

// script returns the controller orientation, its angular velocity (rad/s),
// any linear acceleration on top of gravity (head space, m/s²), the head
// direction and whether the controller is connected, at time t seconds.
type script func(t float32) scriptFrame

type scriptFrame struct {
	orientation   vecmath.Quaternion
	gyro          vecmath.Vector3
	linear        vecmath.Vector3
	headDirection vecmath.Vector3
	disconnected  bool
}

var scripts = map[string]script{
	"idle":    scriptIdle,
	"point":   scriptPoint,
	"sweep":   scriptSweep,
	"turn":    scriptTurn,
	"shake":   scriptShake,
	"dropout": scriptDropout,
}

// Scripts lists the simulation script names.
func Scripts() []string {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SimSource generates a deterministic scripted motion at a fixed frame
// time. Frame n is always the same regardless of wall-clock time.
type SimSource struct {
	name   string
	script script
	dt     float32

	mu     sync.Mutex
	frame  uint64
	closed bool
}

// NewSimSource creates a simulation running script at dt seconds per frame.
func NewSimSource(name string, dt float32) (*SimSource, error) {
	s, ok := scripts[name]
	if !ok {
		return nil, fmt.Errorf("sensor: unknown script %q (want one of %v)", name, Scripts())
	}
	if dt <= 0 {
		return nil, fmt.Errorf("sensor: frame time must be positive, got %v", dt)
	}
	return &SimSource{name: name, script: s, dt: dt}, nil
}

// Next returns the next scripted frame. It never blocks.
func (s *SimSource) Next(ctx context.Context) (armmodel.UpdateData, error) {
	if err := ctx.Err(); err != nil {
		return armmodel.UpdateData{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return armmodel.UpdateData{}, ErrClosed
	}
	n := s.frame
	s.frame++
	s.mu.Unlock()

	return s.sample(float32(n) * s.dt), nil
}

func (s *SimSource) sample(t float32) armmodel.UpdateData {
	f := s.script(t)

	// The accelerometer reads gravity plus motion in controller space.
	world := vecmath.Vec3(0, armmodel.GravityForce, 0).Add(f.linear)
	accel := f.orientation.Inverted().Rotated(world)

	return armmodel.UpdateData{
		Connected:        !f.disconnected,
		Acceleration:     accel,
		Orientation:      f.orientation,
		Gyro:             f.gyro,
		HeadDirection:    f.headDirection,
		DeltaTimeSeconds: s.dt,
	}
}

// Close stops the simulation.
func (s *SimSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *SimSource) Name() string { return "sim:" + s.name }

var (
	axisX = vecmath.Vec3(1, 0, 0)
	axisY = armmodel.Up()
)

func scriptIdle(float32) scriptFrame {
	return scriptFrame{orientation: vecmath.Identity(), headDirection: armmodel.Forward()}
}

// scriptPoint pitches the controller between 20° down and 60° up every 4s.
func scriptPoint(t float32) scriptFrame {
	const period, center, amp = 4, 20, 40
	w := 2 * math32.Pi / period
	pitch := center + amp*math32.Sin(w*t)
	return scriptFrame{
		orientation:   vecmath.AxisAngle(axisX, pitch),
		gyro:          vecmath.Vec3(vecmath.DegToRad(amp)*w*math32.Cos(w*t), 0, 0),
		headDirection: armmodel.Forward(),
	}
}

// scriptSweep yaws the controller ±45° every 3s while the head follows at
// half the angle.
func scriptSweep(t float32) scriptFrame {
	const period, amp = 3, 45
	w := 2 * math32.Pi / period
	yaw := amp * math32.Sin(w*t)
	return scriptFrame{
		orientation:   vecmath.AxisAngle(axisY, yaw),
		gyro:          vecmath.Vec3(0, vecmath.DegToRad(amp)*w*math32.Cos(w*t), 0),
		headDirection: vecmath.AxisAngle(axisY, yaw/2).Rotated(armmodel.Forward()),
	}
}

// scriptTurn turns the whole body once every 8s, head and controller
// together.
func scriptTurn(t float32) scriptFrame {
	const period = 8
	w := float32(360.0 / period)
	q := vecmath.AxisAngle(axisY, w*t)
	return scriptFrame{
		orientation:   q,
		gyro:          vecmath.Vec3(0, vecmath.DegToRad(w), 0),
		headDirection: q.Rotated(armmodel.Forward()),
	}
}

// scriptShake holds the controller level and shakes it side to side at
// 3Hz with a 12 m/s² peak.
func scriptShake(t float32) scriptFrame {
	const freq, amp = 3, 12
	return scriptFrame{
		orientation:   vecmath.Identity(),
		linear:        vecmath.Vec3(amp*math32.Sin(2*math32.Pi*freq*t), 0, 0),
		headDirection: armmodel.Forward(),
	}
}

// scriptDropout points like scriptPoint but loses the controller for half
// a second out of every three.
func scriptDropout(t float32) scriptFrame {
	f := scriptPoint(t)
	f.disconnected = math32.Mod(t, 3) >= 2.5
	return f
}
