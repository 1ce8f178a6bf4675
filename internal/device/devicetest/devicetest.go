// SPDX-License-Identifier: EPL-2.0

// Package devicetest provides an in-memory device.Device for tests. Voices
// never advance on their own, tests decide when a stream ends by calling
// Voice.Finish.
package devicetest

import (
	"errors"
	"io"
	"sync"

	"github.com/ik5/chartaudio/audio"
	"github.com/ik5/chartaudio/internal/device"
)

// DefaultFormat is a small layout that keeps test fixtures cheap.
var DefaultFormat = device.Format{
	SampleRate: 8000,
	Channels:   2,
	Sample:     audio.FormatInt16LE,
}

type Device struct {
	format device.Format

	mu        sync.Mutex
	voices    []*Voice
	voiceErr  error
	closed    bool
	closeHits int
}

func New(f device.Format) *Device {
	return &Device{format: f}
}

func (d *Device) Format() device.Format { return d.format }

// FailVoices makes every following NewVoice call fail with err. A nil err
// restores normal behaviour.
func (d *Device) FailVoices(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.voiceErr = err
}

func (d *Device) NewVoice(r io.Reader, onEnd func(seq uint64)) (device.Voice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, device.ErrClosed
	}
	if d.voiceErr != nil {
		return nil, d.voiceErr
	}

	v := &Voice{r: r, onEnd: onEnd}
	d.voices = append(d.voices, v)
	return v, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.closeHits++
	return nil
}

func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Voices returns every voice created so far, in creation order.
func (d *Device) Voices() []*Voice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Voice(nil), d.voices...)
}

// Playing returns the voices currently playing.
func (d *Device) Playing() []*Voice {
	var out []*Voice
	for _, v := range d.Voices() {
		if v.Playing() {
			out = append(out, v)
		}
	}
	return out
}

type Voice struct {
	r     io.Reader
	onEnd func(seq uint64)

	mu      sync.Mutex
	playing bool
	seq     uint64
	offset  int64
	plays   int
	stops   int
	closed  bool
}

func (v *Voice) Play(seq uint64, offset int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return device.ErrClosed
	}
	if v.plays > 0 || offset > 0 {
		s, ok := v.r.(io.Seeker)
		if !ok {
			return device.ErrNotSeekable
		}
		if _, err := s.Seek(offset, io.SeekStart); err != nil {
			return err
		}
	}

	v.playing = true
	v.seq = seq
	v.offset = offset
	v.plays++
	return nil
}

func (v *Voice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.playing {
		v.stops++
	}
	v.playing = false
}

func (v *Voice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	v.playing = false
	if c, ok := v.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Finish simulates the stream reaching its end and notifies the owner.
// It reports false when the voice was not playing.
func (v *Voice) Finish() bool {
	v.mu.Lock()
	if !v.playing {
		v.mu.Unlock()
		return false
	}
	v.playing = false
	seq := v.seq
	v.mu.Unlock()

	if v.onEnd != nil {
		v.onEnd(seq)
	}
	return true
}

// FinishStale delivers an end notification for seq without touching the
// voice state, as a late notification racing a restart would.
func (v *Voice) FinishStale(seq uint64) {
	if v.onEnd != nil {
		v.onEnd(seq)
	}
}

// Read pulls up to n bytes from the voice stream, as the output would.
func (v *Voice) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(v.r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return buf[:got], err
}

// Drain reads the rest of the voice stream.
func (v *Voice) Drain() ([]byte, error) {
	return io.ReadAll(v.r)
}

func (v *Voice) Reader() io.Reader { return v.r }

func (v *Voice) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *Voice) Seq() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.seq
}

func (v *Voice) Offset() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.offset
}

func (v *Voice) Plays() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.plays
}

func (v *Voice) Stops() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stops
}

func (v *Voice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
