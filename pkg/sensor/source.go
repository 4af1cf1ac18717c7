// Package sensor provides the inputs that feed an arm model: scripted
// simulations, recorded sessions, and samples pushed by remote devices.
package sensor

import (
	"context"
	"errors"
	"sync"

	"github.com/teslashibe/go-armmodel/pkg/armmodel"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("sensor: source closed")

// Source produces one UpdateData per call. Next returns io.EOF when a
// finite source is exhausted.
type Source interface {
	Next(ctx context.Context) (armmodel.UpdateData, error)
	Close() error
	Name() string
}

// ChannelSource is fed by Push and drained by Next. The buffer holds the
// most recent samples; when it is full the oldest is dropped.
type ChannelSource struct {
	name    string
	samples chan armmodel.UpdateData
	done    chan struct{}
	once    sync.Once
}

// NewChannelSource creates a channel-backed source buffering up to size
// samples.
func NewChannelSource(name string, size int) *ChannelSource {
	if size < 1 {
		size = 1
	}
	return &ChannelSource{
		name:    name,
		samples: make(chan armmodel.UpdateData, size),
		done:    make(chan struct{}),
	}
}

// Push queues a sample without blocking. It reports false once the
// source is closed.
func (s *ChannelSource) Push(data armmodel.UpdateData) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	for {
		select {
		case s.samples <- data:
			return true
		default:
		}
		// full: drop the oldest and retry
		select {
		case <-s.samples:
		default:
		}
	}
}

// Next blocks until a sample is pushed, the context ends, or the source
// is closed.
func (s *ChannelSource) Next(ctx context.Context) (armmodel.UpdateData, error) {
	select {
	case data := <-s.samples:
		return data, nil
	case <-s.done:
		return armmodel.UpdateData{}, ErrClosed
	case <-ctx.Done():
		return armmodel.UpdateData{}, ctx.Err()
	}
}

// Close stops the source. Pending samples are discarded.
func (s *ChannelSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *ChannelSource) Name() string { return "remote:" + s.name }
