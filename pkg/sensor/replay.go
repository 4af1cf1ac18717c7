package sensor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/teslashibe/go-armmodel/internal/log"
	"github.com/teslashibe/go-armmodel/pkg/armmodel"
)

// maxLineBytes bounds one NDJSON record.
const maxLineBytes = 64 * 1024

// ReplaySource reads NDJSON UpdateData records, one per line. Blank lines
// are skipped; a malformed line is an error.
type ReplaySource struct {
	name string
	loop bool

	mu      sync.Mutex
	r       io.ReadSeeker
	closer  io.Closer
	scanner *bufio.Scanner
	line    int
	read    int // records returned since the last rewind
	closed  bool
}

// OpenReplay opens an NDJSON recording. With loop set the file restarts
// at EOF instead of ending.
func OpenReplay(path string, loop bool) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	s := NewReplaySource(path, f, loop)
	s.closer = f
	return s, nil
}

// NewReplaySource reads records from r. Looping requires r to be seekable
// back to its start.
func NewReplaySource(name string, r io.ReadSeeker, loop bool) *ReplaySource {
	s := &ReplaySource{name: name, loop: loop, r: r}
	s.resetScanner()
	return s
}

func (s *ReplaySource) resetScanner() {
	s.scanner = bufio.NewScanner(s.r)
	s.scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	s.line = 0
	s.read = 0
}

// Next returns the next recorded sample, or io.EOF at the end of a
// non-looping recording.
func (s *ReplaySource) Next(ctx context.Context) (armmodel.UpdateData, error) {
	if err := ctx.Err(); err != nil {
		return armmodel.UpdateData{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return armmodel.UpdateData{}, ErrClosed
	}

	for {
		if s.scanner.Scan() {
			s.line++
			b := s.scanner.Bytes()
			if len(bytes.TrimSpace(b)) == 0 {
				continue
			}
			data := armmodel.RestingSample(0)
			if err := json.Unmarshal(b, &data); err != nil {
				return armmodel.UpdateData{}, fmt.Errorf("%s:%d: %w", s.name, s.line, err)
			}
			data.Orientation = data.Orientation.Normalized()
			s.read++
			return data, nil
		}

		if err := s.scanner.Err(); err != nil {
			return armmodel.UpdateData{}, fmt.Errorf("%s:%d: %w", s.name, s.line+1, err)
		}
		// an empty recording would loop forever
		if !s.loop || s.read == 0 {
			return armmodel.UpdateData{}, io.EOF
		}
		if _, err := s.r.Seek(0, io.SeekStart); err != nil {
			return armmodel.UpdateData{}, fmt.Errorf("rewind %s: %w", s.name, err)
		}
		log.Debug("replay rewound", "source", s.name)
		s.resetScanner()
	}
}

// Close closes the underlying file, if OpenReplay opened it.
func (s *ReplaySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *ReplaySource) Name() string { return "replay:" + s.name }

// Recorder writes samples as NDJSON so a session can be replayed later.
type Recorder struct {
	mu     sync.Mutex
	w      *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	count  int
}

// CreateRecorder creates (or truncates) path for recording.
func CreateRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// NewRecorder records to w. Close flushes but does not close w.
func NewRecorder(w io.Writer) *Recorder {
	bw := bufio.NewWriter(w)
	return &Recorder{w: bw, enc: json.NewEncoder(bw)}
}

// Write appends one sample.
func (r *Recorder) Write(data armmodel.UpdateData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(data); err != nil {
		return fmt.Errorf("record sample: %w", err)
	}
	r.count++
	return nil
}

// Count returns the number of samples written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes buffered samples and closes the file CreateRecorder opened.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.w.Flush()
	if r.closer != nil {
		err = errors.Join(err, r.closer.Close())
		r.closer = nil
	}
	return err
}

// Tee returns a Source that records every sample src yields.
func Tee(src Source, rec *Recorder) Source {
	return &teeSource{Source: src, rec: rec}
}

type teeSource struct {
	Source
	rec *Recorder
}

func (t *teeSource) Next(ctx context.Context) (armmodel.UpdateData, error) {
	data, err := t.Source.Next(ctx)
	if err != nil {
		return data, err
	}
	if err := t.rec.Write(data); err != nil {
		return data, err
	}
	return data, nil
}

// Close closes the source and then the recorder.
func (t *teeSource) Close() error {
	return errors.Join(t.Source.Close(), t.rec.Close())
}
