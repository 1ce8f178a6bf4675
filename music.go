// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ik5/chartaudio/audio"
	"github.com/ik5/chartaudio/internal/device"
	"github.com/ik5/chartaudio/utils"
)

// musicTrack is the live music channel.
type musicTrack struct {
	path  string
	epoch uint64
	voice device.Voice
	rate  int

	// stretcher is nil when tempo processing is unavailable
	stretcher *audio.Stretcher
	counter   *frameCounter
}

func (m *musicTrack) position() float64 {
	if m.stretcher != nil {
		return utils.FramesToSeconds(m.stretcher.Position(), m.rate)
	}
	return utils.FramesToSeconds(m.counter.frames.Load(), m.rate)
}

// frameCounter tracks the source position when no stretcher does.
type frameCounter struct {
	audio.Source
	frames atomic.Int64
}

func (c *frameCounter) ReadSamples(dst []float32) (int, error) {
	n, err := c.Source.ReadSamples(dst)
	c.frames.Add(int64(n / c.Channels()))
	return n, err
}

func validRatio(ratio float64) error {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return fmt.Errorf("%w: speed ratio %v", ErrInvalidOperation, ratio)
	}
	return nil
}

// PlayMusic replaces the music track with path, played from offset seconds
// at speedRatio times the original tempo. The previous track stops even if
// the new one fails to open. It returns once the request is queued, requests
// are carried out in call order.
func (e *Engine) PlayMusic(path string, offset, speedRatio float64) error {
	if err := e.checkPlayable(); err != nil {
		return err
	}
	if err := validRatio(speedRatio); err != nil {
		return err
	}

	epoch := e.musicEpoch.Add(1)
	err := e.music.Go(taskName("music", path), background(func() error {
		return e.startMusic(epoch, path, offset, speedRatio)
	}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	return nil
}

func (e *Engine) startMusic(epoch uint64, path string, offset, ratio float64) error {
	e.musicMu.Lock()
	defer e.musicMu.Unlock()

	e.stopMusicLocked()
	if e.musicEpoch.Load() != epoch {
		// a later PlayMusic or StopMusic supersedes this request
		return nil
	}

	src, err := e.decoders.Open(path)
	if err != nil {
		return resourceError(path, err)
	}

	skipped, err := audio.Skip(src, utils.SecondsToFrames(offset, src.SampleRate()))
	if err != nil {
		src.Close()
		return resourceError(path, err)
	}

	track := &musicTrack{path: path, epoch: epoch, rate: src.SampleRate()}
	chain := audio.Source(src)

	if e.tempoAvailable {
		st, err := audio.NewStretcher(src, e.cfg.Stretch)
		if err != nil {
			src.Close()
			return resourceError(path, fmt.Errorf("creating tempo stream: %w", err))
		}
		st.SetPosition(skipped)
		if err := st.SetTempoChange((ratio - 1) * 100); err != nil {
			st.Close()
			return resourceError(path, err)
		}
		track.stretcher = st
		chain = st
	} else {
		track.counter = &frameCounter{Source: src}
		track.counter.frames.Store(skipped)
		chain = track.counter
	}

	f := e.dev.Format()
	out, err := audio.Conform(chain, f.SampleRate, f.Channels)
	if err != nil {
		chain.Close()
		return resourceError(path, err)
	}
	reader := audio.NewPCMReader(out, f.Sample)

	voice, err := e.dev.NewVoice(reader, e.musicEnded)
	if err != nil {
		reader.Close()
		return resourceError(path, err)
	}
	if err := voice.Play(epoch, 0); err != nil {
		voice.Close()
		return resourceError(path, err)
	}

	track.voice = voice
	e.track = track

	e.log.Debug("music started", "path", path, "offset", offset, "speed", ratio)
	return nil
}

// musicEnded frees the track once it played to its end.
func (e *Engine) musicEnded(epoch uint64) {
	e.musicMu.Lock()
	defer e.musicMu.Unlock()

	if e.track != nil && e.track.epoch == epoch {
		e.stopMusicLocked()
	}
}

// SetMusicSpeed changes the tempo of the playing track without moving its
// position. Without a track it does nothing.
func (e *Engine) SetMusicSpeed(speedRatio float64) error {
	if err := validRatio(speedRatio); err != nil {
		return err
	}

	e.musicMu.Lock()
	defer e.musicMu.Unlock()

	if e.track == nil || e.track.stretcher == nil {
		return nil
	}
	if err := e.track.stretcher.SetTempoChange((speedRatio - 1) * 100); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	return nil
}

// MusicSpeed returns the speed ratio of the playing track.
func (e *Engine) MusicSpeed() (float64, bool) {
	e.musicMu.Lock()
	defer e.musicMu.Unlock()

	if e.track == nil {
		return 0, false
	}
	if e.track.stretcher == nil {
		return 1, true
	}
	return e.track.stretcher.Tempo(), true
}

// MusicPosition returns how far into its file the playing track has been
// decoded, in seconds.
func (e *Engine) MusicPosition() (float64, bool) {
	e.musicMu.Lock()
	defer e.musicMu.Unlock()

	if e.track == nil {
		return 0, false
	}
	return e.track.position(), true
}

// StopMusic stops and frees the music track. Queued PlayMusic requests are
// dropped as well.
func (e *Engine) StopMusic() {
	e.musicEpoch.Add(1)

	e.musicMu.Lock()
	defer e.musicMu.Unlock()
	e.stopMusicLocked()
}

func (e *Engine) stopMusicLocked() {
	if e.track == nil {
		return
	}
	if err := e.track.voice.Close(); err != nil {
		e.log.Warn("closing music stream", "path", e.track.path, "err", err)
	}
	e.track = nil
}
