// SPDX-License-Identifier: EPL-2.0

// Package diag persists failure reports for later inspection.
package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultFile is the report file name used when none is configured.
const DefaultFile = "sound_exception.json"

// Sink writes the most recent report as indented JSON, replacing the file
// atomically. Reports arriving faster than the configured rate are
// coalesced: the newest one is kept pending and written once the limiter
// allows, so the file always ends on the latest failure.
type Sink struct {
	path    string
	limiter *rate.Limiter

	mu       sync.Mutex
	pending  []byte
	timer    *time.Timer
	skipped  int
	closed   bool
	flushErr error
}

// NewSink returns a sink writing to path at most perSecond times per second
// with a burst of 3. An empty path returns a nil Sink, which discards
// everything.
func NewSink(path string, perSecond float64) *Sink {
	if path == "" {
		return nil
	}

	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Sink{
		path:    path,
		limiter: rate.NewLimiter(limit, 3),
	}
}

func (s *Sink) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Write stores report, or keeps it as the pending report when the sink is
// throttled. It reports whether the file was written now.
func (s *Sink) Write(report any) (bool, error) {
	if s == nil {
		return false, nil
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.limiter.Allow() {
		if s.pending != nil {
			s.pending = nil
			s.skipped++
		}
		if err := s.writeLocked(data); err != nil {
			return false, err
		}
		return true, nil
	}

	if s.pending != nil {
		s.skipped++
	}
	s.pending = data
	if s.timer == nil {
		s.timer = time.AfterFunc(s.limiter.Reserve().Delay(), s.flushPending)
	}
	return false, nil
}

func (s *Sink) flushPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timer = nil
	if s.pending == nil {
		return
	}
	s.flushErr = s.writeLocked(s.pending)
	s.pending = nil
}

// Flush writes the pending report right away. It returns the error of the
// last delayed write when there was nothing left to write.
func (s *Sink) Flush() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending == nil {
		err := s.flushErr
		s.flushErr = nil
		return err
	}
	err := s.writeLocked(s.pending)
	s.pending = nil
	return err
}

// Close flushes the pending report. Later writes go straight to the file.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	err := s.Flush()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

func (s *Sink) writeLocked(data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing report: %w", err)
	}
	return nil
}

// Skipped is the number of reports superseded by a newer one before they
// reached the file.
func (s *Sink) Skipped() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Report is the persisted shape of a failure.
type Report struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Op      string    `json:"op"`
	Path    string    `json:"path,omitempty"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
}

// NewReport fills a Report from err.
func NewReport(id, op, path string, err error, at time.Time) Report {
	r := Report{
		ID:   id,
		Time: at.UTC(),
		Op:   op,
		Path: path,
	}
	if err != nil {
		r.Type = fmt.Sprintf("%T", err)
		r.Message = err.Error()
	}
	return r
}
