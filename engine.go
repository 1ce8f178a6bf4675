// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ik5/chartaudio/audio"
	"github.com/ik5/chartaudio/formats"
	"github.com/ik5/chartaudio/internal/device"
	"github.com/ik5/chartaudio/internal/diag"
	"github.com/ik5/chartaudio/internal/events"
	"github.com/ik5/chartaudio/internal/tasks"
)

type openFunc func(device.Format, time.Duration) (device.Device, error)

func openOto(f device.Format, buffer time.Duration) (device.Device, error) {
	return device.OpenOto(f, buffer)
}

// Engine plays pooled sound effects and one tempo adjustable music track.
// All methods are safe for concurrent use. Play and PlayMusic return as soon
// as the work is queued, failures are delivered through Subscribe.
type Engine struct {
	cfg      Config
	log      *slog.Logger
	decoders *audio.Registry

	dev            device.Device
	supported      bool
	tempoAvailable bool

	effects *tasks.Pool
	music   *tasks.Lane
	bus     *events.Bus[ErrorEvent]
	sink    *diag.Sink

	durMu     sync.RWMutex
	durations map[string]float64
	poolsMu   sync.RWMutex
	pools     map[string]*playbackPool
	register  singleflight.Group
	// measured counts decode passes done for registration
	measured atomic.Int64

	active *activeSet

	musicMu    sync.Mutex
	track      *musicTrack
	musicEpoch atomic.Uint64

	shutdown sync.Once
	closed   atomic.Bool
}

// Initialize opens the audio output described by cfg. An output that cannot
// be opened is not an error: the engine is returned with IsSupported false
// and every playback call fails with ErrNotSupported. Only an invalid cfg
// is reported.
func Initialize(cfg Config) (*Engine, error) {
	return newEngine(cfg, openOto)
}

func newEngine(cfg Config, open openFunc) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		log:       cfg.Logger,
		decoders:  cfg.Decoders,
		bus:       events.NewBus[ErrorEvent](),
		sink:      diag.NewSink(cfg.DiagPath, cfg.DiagPerSecond),
		durations: make(map[string]float64),
		pools:     make(map[string]*playbackPool),
		active:    newActiveSet(),
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.decoders == nil {
		e.decoders = formats.Default()
	}

	e.effects = tasks.NewPool(max(cfg.Workers, 1), e.taskFailed)
	e.music = tasks.NewLane(e.taskFailed)

	dev, err := open(cfg.format(), cfg.Buffer)
	if err != nil {
		e.log.Warn("audio output unavailable, playback disabled", "err", err)
		return e, nil
	}
	e.dev = dev
	e.supported = true

	if err := cfg.Stretch.Validate(); err != nil {
		e.log.Warn("tempo processing disabled", "err", err)
	} else {
		e.tempoAvailable = true
	}

	e.log.Debug("audio output opened",
		"rate", cfg.SampleRate, "channels", cfg.Channels, "format", cfg.SampleFormat)
	return e, nil
}

// IsSupported reports whether an audio output is available.
func (e *Engine) IsSupported() bool { return e.supported }

// TempoAvailable reports whether music speed changes are processed. When
// false, music plays at its original speed.
func (e *Engine) TempoAvailable() bool { return e.tempoAvailable }

// checkPlayable is run at the top of every call that would touch the output.
func (e *Engine) checkPlayable() error {
	if !e.supported {
		return ErrNotSupported
	}
	if e.closed.Load() {
		return fmt.Errorf("%w: engine shut down", ErrInvalidOperation)
	}
	return nil
}

// Shutdown stops the music, waits for queued work, closes every pooled
// stream and the output, and writes any throttled diagnostic report.
// Later calls do nothing.
func (e *Engine) Shutdown() error {
	var err error
	e.shutdown.Do(func() {
		e.closed.Store(true)

		e.music.Close()
		e.StopMusic()
		e.effects.Close()

		e.poolsMu.RLock()
		pools := make([]*playbackPool, 0, len(e.pools))
		for _, p := range e.pools {
			pools = append(pools, p)
		}
		e.poolsMu.RUnlock()

		var errs []error
		for _, p := range pools {
			errs = append(errs, p.close())
		}
		if e.dev != nil {
			errs = append(errs, e.dev.Close())
		}
		errs = append(errs, e.sink.Close())

		e.log.Debug("engine shut down",
			"subscribers", e.bus.SubscriberCount(),
			"events_dropped", e.bus.Dropped(),
			"reports_coalesced", e.sink.Skipped())
		e.bus.Close()

		err = errors.Join(errs...)
		if err != nil {
			e.log.Warn("shutdown finished with errors", "err", err)
		}
	})
	return err
}

// Subscribe returns a channel receiving background failures and the ID to
// pass to Unsubscribe. Slow subscribers miss events rather than stalling
// playback.
func (e *Engine) Subscribe() (string, <-chan ErrorEvent) {
	return e.bus.Subscribe()
}

func (e *Engine) Unsubscribe(id string) {
	e.bus.Unsubscribe(id)
}

// taskFailed receives failures and panics of background tasks. Task names
// are "op path".
func (e *Engine) taskFailed(name string, err error) {
	op, path, _ := strings.Cut(name, " ")
	e.report(op, path, err)
}

func (e *Engine) report(op, path string, err error) {
	ev := ErrorEvent{
		ID:   uuid.NewString(),
		Op:   op,
		Path: path,
		Err:  err,
		Time: time.Now(),
	}

	e.log.Error("background playback failed", "op", op, "path", path, "id", ev.ID, "err", err)
	if _, werr := e.sink.Write(diag.NewReport(ev.ID, op, path, err, ev.Time)); werr != nil {
		e.log.Warn("diagnostic report not written", "path", e.sink.Path(), "err", werr)
	}
	e.bus.Publish(ev)
}

func taskName(op, path string) string {
	return op + " " + path
}

// wait blocks until queued effect and music work has run.
func (e *Engine) wait() {
	e.effects.Wait()
	e.music.Wait()
}

// background wraps fn so it can be scheduled with a task runner.
func background(fn func() error) func(context.Context) error {
	return func(context.Context) error { return fn() }
}
