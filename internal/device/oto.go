// SPDX-License-Identifier: EPL-2.0

package device

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/ik5/chartaudio/audio"
)

// endPollInterval is how often a finished stream is checked for the end of
// the buffered audio.
const endPollInterval = 5 * time.Millisecond

// oto allows a single context per process.
var (
	ctxMu     sync.Mutex
	ctxShared *oto.Context
	ctxFormat Format
)

func otoContext(f Format, buffer time.Duration) (*oto.Context, error) {
	ctxMu.Lock()
	defer ctxMu.Unlock()

	if ctxShared != nil {
		if ctxFormat != f {
			return nil, fmt.Errorf("%w: output already opened as %d Hz x%d %s",
				ErrInvalidFormat, ctxFormat.SampleRate, ctxFormat.Channels, ctxFormat.Sample)
		}
		if err := ctxShared.Resume(); err != nil {
			return nil, fmt.Errorf("resuming output: %w", err)
		}
		return ctxShared, nil
	}

	sample := oto.FormatFloat32LE
	if f.Sample == audio.FormatInt16LE {
		sample = oto.FormatSignedInt16LE
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       sample,
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	<-ready

	ctxShared, ctxFormat = ctx, f
	return ctx, nil
}

// Oto plays voices through the system output with ebitengine/oto.
type Oto struct {
	ctx    *oto.Context
	format Format

	mu     sync.Mutex
	voices map[*otoVoice]struct{}
	closed bool
}

// OpenOto opens the system output. buffer is the device buffer length,
// zero lets the platform decide.
func OpenOto(f Format, buffer time.Duration) (*Oto, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx, err := otoContext(f, buffer)
	if err != nil {
		return nil, err
	}

	return &Oto{
		ctx:    ctx,
		format: f,
		voices: make(map[*otoVoice]struct{}),
	}, nil
}

func (o *Oto) Format() Format { return o.format }

func (o *Oto) NewVoice(r io.Reader, onEnd func(seq uint64)) (Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}
	if err := o.ctx.Err(); err != nil {
		return nil, fmt.Errorf("output failed: %w", err)
	}

	src := &endReader{r: r}
	return o.addVoice(src, o.ctx.NewPlayer(src), onEnd), nil
}

func (o *Oto) addVoice(src *endReader, p player, onEnd func(seq uint64)) *otoVoice {
	v := &otoVoice{
		dev:    o,
		src:    src,
		onEnd:  onEnd,
		player: p,
	}
	o.voices[v] = struct{}{}
	return v
}

// Close closes every voice and suspends the output.
func (o *Oto) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	voices := make([]*otoVoice, 0, len(o.voices))
	for v := range o.voices {
		voices = append(voices, v)
	}
	o.voices = nil
	o.mu.Unlock()

	var errs []error
	for _, v := range voices {
		errs = append(errs, v.close())
	}
	errs = append(errs, o.ctx.Suspend())
	return errors.Join(errs...)
}

func (o *Oto) forget(v *otoVoice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.voices, v)
}

// endReader records when the wrapped stream reported io.EOF.
type endReader struct {
	r io.Reader

	mu    sync.Mutex
	ended bool
}

func (e *endReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.mu.Lock()
		e.ended = true
		e.mu.Unlock()
	}
	return n, err
}

func (e *endReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := e.r.(io.Seeker)
	if !ok {
		return 0, ErrNotSeekable
	}
	pos, err := s.Seek(offset, whence)
	if err == nil {
		e.mu.Lock()
		e.ended = false
		e.mu.Unlock()
	}
	return pos, err
}

func (e *endReader) done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

// player is the part of *oto.Player a voice drives.
type player interface {
	Play()
	Pause()
	IsPlaying() bool
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

type otoVoice struct {
	dev    *Oto
	src    *endReader
	onEnd  func(seq uint64)
	player player

	mu     sync.Mutex
	played bool
	cancel chan struct{}
	closed bool
}

func (v *otoVoice) Play(seq uint64, offset int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.stopLocked()

	if v.played || offset > 0 {
		if _, err := v.player.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("positioning voice: %w", err)
		}
	}
	v.played = true

	done := make(chan struct{})
	v.cancel = done
	v.player.Play()
	go v.watch(seq, done)

	return nil
}

func (v *otoVoice) watch(seq uint64, done <-chan struct{}) {
	ticker := time.NewTicker(endPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		if !v.src.done() || v.player.IsPlaying() {
			continue
		}

		v.mu.Lock()
		current := v.cancel == done
		if current {
			v.cancel = nil
		}
		v.mu.Unlock()

		if current && v.onEnd != nil {
			v.onEnd(seq)
		}
		return
	}
}

func (v *otoVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

func (v *otoVoice) stopLocked() {
	if v.cancel != nil {
		close(v.cancel)
		v.cancel = nil
	}
	v.player.Pause()
}

func (v *otoVoice) Close() error {
	v.dev.forget(v)
	return v.close()
}

func (v *otoVoice) close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	v.stopLocked()

	err := v.player.Close()
	if c, ok := v.src.r.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}
