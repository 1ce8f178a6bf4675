// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ik5/chartaudio/audio"
	"github.com/ik5/chartaudio/internal/device"
	"github.com/ik5/chartaudio/internal/diag"
)

const envPrefix = "CHARTAUDIO_"

// Config holds the engine settings. Start from DefaultConfig or LoadConfig.
type Config struct {
	// SampleRate, Channels and SampleFormat describe the output stream.
	SampleRate   int
	Channels     int
	SampleFormat audio.SampleFormat
	// Buffer is the device buffer length, zero lets the platform decide.
	Buffer time.Duration

	// Workers bounds how many effect playbacks are prepared at once.
	Workers int

	// DiagPath receives the last background failure as JSON. Empty
	// disables the report file.
	DiagPath      string
	DiagPerSecond float64

	// Stretch tunes the music tempo processing.
	Stretch audio.StretchParams

	// Decoders maps file extensions to decoders, nil uses every bundled
	// format.
	Decoders *audio.Registry

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    44100,
		Channels:      2,
		SampleFormat:  audio.FormatFloat32LE,
		Buffer:        50 * time.Millisecond,
		Workers:       8,
		DiagPath:      diag.DefaultFile,
		DiagPerSecond: 1,
		Stretch:       audio.DefaultStretchParams(),
	}
}

// LoadConfig loads the given .env files, missing ones are skipped, and
// overlays CHARTAUDIO_* variables on DefaultConfig. Variables already set in
// the environment win over the files.
func LoadConfig(files ...string) (Config, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Config{}, fmt.Errorf("loading env files: %w", err)
		}
	}

	cfg := DefaultConfig()
	var errs []error
	intVar := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	intVar("SAMPLE_RATE", &cfg.SampleRate)
	intVar("CHANNELS", &cfg.Channels)
	intVar("WORKERS", &cfg.Workers)
	intVar("TEMPO_SEQUENCE_MS", &cfg.Stretch.SequenceMs)
	intVar("TEMPO_OVERLAP_MS", &cfg.Stretch.OverlapMs)
	intVar("TEMPO_SEEK_MS", &cfg.Stretch.SeekWindowMs)

	bufferMs := int(cfg.Buffer / time.Millisecond)
	intVar("BUFFER_MS", &bufferMs)
	cfg.Buffer = time.Duration(bufferMs) * time.Millisecond

	if v, ok := lookup("FORMAT"); ok {
		f, err := audio.ParseSampleFormat(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sFORMAT: %w", envPrefix, err))
		}
		cfg.SampleFormat = f
	}
	if v, ok := lookup("DIAG_PATH"); ok {
		cfg.DiagPath = v
	}
	if v, ok := lookup("DIAG_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sDIAG_PER_SECOND: %w", envPrefix, err))
		}
		cfg.DiagPerSecond = f
	}
	if v, ok := lookup("TEMPO_QUICK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTEMPO_QUICK: %w", envPrefix, err))
		}
		cfg.Stretch.QuickSeek = b
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	return strings.TrimSpace(v), ok
}

// Validate checks the output layout. Tempo parameters are checked when the
// engine starts, an invalid set only disables tempo changes.
func (c Config) Validate() error {
	if err := c.format().Validate(); err != nil {
		return fmt.Errorf("output %d Hz x%d: %w", c.SampleRate, c.Channels, err)
	}
	if c.Buffer < 0 {
		return errors.New("negative buffer length")
	}
	if c.Workers < 0 {
		return errors.New("negative worker count")
	}
	return nil
}

func (c Config) format() device.Format {
	return device.Format{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		Sample:     c.SampleFormat,
	}
}
