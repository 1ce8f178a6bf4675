// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"

	"github.com/ik5/chartaudio/utils"
)

// Resampler streams from src to a target sample rate using cubic interpolation.
// Works on interleaved samples and preserves channel count. A one-pole
// low-pass is applied to incoming frames when downsampling.
type Resampler struct {
	src      Source
	dstRate  int
	step     float64 // source frames advanced per output frame
	channels int

	// window[1] and window[2] bracket the interpolation point,
	// window[0] and window[3] are the outer Catmull-Rom taps.
	window [4][]float32
	valid  [4]bool
	primed bool

	frac float64

	frameBuf []float32
	eof      bool

	lowPass []float32
	smooth  bool
}

const lowPassAlpha float32 = 0.5

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	step := float64(src.SampleRate()) / float64(dstRate)

	r := &Resampler{
		src:      src,
		dstRate:  dstRate,
		step:     step,
		channels: channels,
		frameBuf: make([]float32, channels),
		lowPass:  make([]float32, channels),
		smooth:   step > 1.0,
	}
	for i := range r.window {
		r.window[i] = make([]float32, channels)
	}

	return r
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// readFrame pulls one frame from src into dst, filtered when downsampling.
func (r *Resampler) readFrame(dst []float32) (bool, error) {
	if r.eof {
		return false, io.EOF
	}

	n, err := r.src.ReadSamples(r.frameBuf)
	got := n >= r.channels
	if got {
		if r.smooth {
			for c := range r.channels {
				r.lowPass[c] = lowPassAlpha*r.frameBuf[c] + (1-lowPassAlpha)*r.lowPass[c]
				dst[c] = r.lowPass[c]
			}
		} else {
			copy(dst, r.frameBuf)
		}
	}

	switch {
	case err == io.EOF:
		r.eof = true
	case err != nil:
		return got, fmt.Errorf("%w", err)
	}
	return got, nil
}

// prime loads the first frames of the window. The first frame doubles as
// its own left neighbour.
func (r *Resampler) prime() error {
	r.primed = true

	n, err := r.src.ReadSamples(r.frameBuf)
	if n < r.channels {
		r.eof = true
		if err != nil && err != io.EOF {
			return fmt.Errorf("%w", err)
		}
		return io.EOF
	}
	if err == io.EOF {
		r.eof = true
	}
	// seed the filter to avoid a fade-in transient
	copy(r.lowPass, r.frameBuf)
	copy(r.window[1], r.frameBuf)
	r.valid[1] = true

	for i := 2; i < len(r.window); i++ {
		got, err := r.readFrame(r.window[i])
		if err != nil && err != io.EOF {
			return err
		}
		r.valid[i] = got
	}
	return nil
}

// advance shifts the window by one source frame.
func (r *Resampler) advance() error {
	head := r.window[0]
	copy(r.window[:], r.window[1:])
	r.window[3] = head
	copy(r.valid[:], r.valid[1:])

	got, err := r.readFrame(r.window[3])
	r.valid[3] = got
	if err != nil && err != io.EOF {
		return err
	}
	if !r.valid[1] {
		return io.EOF
	}
	return nil
}

// ReadSamples produces dst samples at the target rate.
// dst length should be a multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		if err := r.prime(); err != nil {
			return 0, err
		}
	}

	frames := len(dst) / r.channels
	written := 0

	for written < frames {
		for r.frac >= 1.0 {
			r.frac -= 1.0
			if err := r.advance(); err != nil {
				return written * r.channels, err
			}
		}

		if !r.valid[1] {
			return written * r.channels, io.EOF
		}

		x := float32(r.frac)
		out := dst[written*r.channels:]
		for c := range r.channels {
			y1 := r.window[1][c]
			y0, y2 := y1, y1
			if r.valid[0] {
				y0 = r.window[0][c]
			}
			if r.valid[2] {
				y2 = r.window[2][c]
			}
			y3 := y2
			if r.valid[3] {
				y3 = r.window[3][c]
			}
			out[c] = utils.CubicInterpolate(y0, y1, y2, y3, x)
		}

		written++
		r.frac += r.step
	}

	return written * r.channels, nil
}
