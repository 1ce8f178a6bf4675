// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// maxEmptyReads bounds consecutive (0, nil) reads before a stream is
// considered stuck.
const maxEmptyReads = 100

// Skip discards frames from the head of src. Sources implementing
// FrameSeeker jump directly, everything else is decoded and dropped.
// It returns the number of frames actually skipped, which is short only when
// the stream ended first.
func Skip(src Source, frames int64) (int64, error) {
	if frames <= 0 {
		return 0, nil
	}

	if fs, ok := src.(FrameSeeker); ok {
		err := fs.SeekFrame(frames)
		if err == nil {
			return frames, nil
		}
		if !errors.Is(err, ErrSeekUnsupported) {
			return 0, fmt.Errorf("%w", err)
		}
	}

	channels := src.Channels()
	buf := make([]float32, bufFrames(src)*channels)
	var skipped int64
	empty := 0

	for skipped < frames {
		want := min(int64(len(buf)/channels), frames-skipped)
		n, err := src.ReadSamples(buf[:want*int64(channels)])
		skipped += int64(n / channels)

		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			return skipped, fmt.Errorf("%w", err)
		}
		if n != 0 {
			empty = 0
			continue
		}
		if empty++; empty > maxEmptyReads {
			return skipped, io.ErrNoProgress
		}
	}
	return skipped, nil
}

// Measure returns the number of frames in src. The source is consumed
// unless it reports its length through Lengther.
func Measure(src Source) (int64, error) {
	if l, ok := src.(Lengther); ok {
		if frames, ok := l.Frames(); ok {
			return frames, nil
		}
	}

	channels := src.Channels()
	if channels <= 0 {
		return 0, ErrInvalidChannels
	}
	buf := make([]float32, bufFrames(src)*channels)
	var frames int64
	empty := 0

	for {
		n, err := src.ReadSamples(buf)
		frames += int64(n / channels)

		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("%w", err)
		}
		if n != 0 {
			empty = 0
			continue
		}
		if empty++; empty > maxEmptyReads {
			return frames, io.ErrNoProgress
		}
	}
}

// Duration is Measure expressed in seconds.
func Duration(src Source) (float64, error) {
	if src.SampleRate() <= 0 {
		return 0, ErrInvalidRate
	}
	frames, err := Measure(src)
	if err != nil {
		return 0, err
	}
	return float64(frames) / float64(src.SampleRate()), nil
}

func bufFrames(src Source) int {
	if n := src.BufSize() / max(src.Channels(), 1); n > 0 {
		return n
	}
	return 1024
}
