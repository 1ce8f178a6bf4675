// SPDX-License-Identifier: EPL-2.0

// Package device abstracts the audio output used by the engine. A Device
// creates Voices, each one an independent output stream pulling PCM bytes
// from an io.Reader.
package device

import (
	"errors"
	"io"

	"github.com/ik5/chartaudio/audio"
	"github.com/ik5/chartaudio/utils"
)

var (
	ErrClosed        = errors.New("device: closed")
	ErrInvalidFormat = errors.New("device: invalid format")
	ErrNotSeekable   = errors.New("device: voice source cannot seek")
)

// Format is the PCM layout every voice of a device is fed with.
type Format struct {
	SampleRate int
	Channels   int
	Sample     audio.SampleFormat
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return ErrInvalidFormat
	}
	if f.Sample != audio.FormatFloat32LE && f.Sample != audio.FormatInt16LE {
		return ErrInvalidFormat
	}
	return nil
}

// FrameBytes is the size of one interleaved frame.
func (f Format) FrameBytes() int {
	return f.Channels * f.Sample.BytesPerSample()
}

// BytesAt converts a position in seconds to a frame aligned byte offset.
func (f Format) BytesAt(seconds float64) int64 {
	return utils.SecondsToFrames(seconds, f.SampleRate) * int64(f.FrameBytes())
}

// Device is an opened audio output.
type Device interface {
	Format() Format
	// NewVoice prepares a stopped stream reading from r. onEnd is called
	// with the sequence number passed to Play once r is exhausted and the
	// buffered audio has been heard. It is never called for a play that was
	// stopped or superseded.
	NewVoice(r io.Reader, onEnd func(seq uint64)) (Voice, error)
	Close() error
}

// Voice is one output stream of a Device.
type Voice interface {
	// Play starts playback from offset bytes into the stream. Restarting a
	// voice at a non-zero offset, or a second time, requires r to be an
	// io.Seeker.
	Play(seq uint64, offset int64) error
	// Stop halts playback. A pending end notification is dropped.
	Stop()
	Close() error
}
