// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"math"
	"testing"
)

func TestMonoMixer_Average(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		want     float32
	}{
		{"mono passthrough", 1, 0.0},
		{"stereo", 2, 0.5},
		{"quad", 4, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// channel c carries the value c
			src := newMockSource(8000, tt.channels, 50, func(_, c int) float32 { return float32(c) })
			mixer := NewMonoMixer(src)
			if mixer.Channels() != 1 {
				t.Errorf("Channels() = %d, want 1", mixer.Channels())
			}

			out, err := readAll(mixer, 16)
			if err != nil {
				t.Fatalf("ReadSamples() error = %v", err)
			}
			if len(out) != 50 {
				t.Fatalf("got %d frames, want 50", len(out))
			}
			for i, v := range out {
				if math.Abs(float64(v-tt.want)) > 1e-6 {
					t.Fatalf("out[%d] = %v, want %v", i, v, tt.want)
				}
			}
		})
	}
}

func TestUpmixer_Duplicates(t *testing.T) {
	t.Parallel()

	up := NewUpmixer(newRampSource(8000, 1, 10), 2)
	out, err := readAll(up, 6)
	if err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if len(out) != 20 {
		t.Fatalf("got %d samples, want 20", len(out))
	}
	for f := range 10 {
		if out[2*f] != out[2*f+1] || out[2*f] != float32(f)/10 {
			t.Errorf("frame %d = (%v, %v), want both %v", f, out[2*f], out[2*f+1], float32(f)/10)
		}
	}

	if _, err := up.ReadSamples(make([]float32, 3)); !errors.Is(err, ErrInvalidDstSize) {
		t.Errorf("ReadSamples() odd dst error = %v, want ErrInvalidDstSize", err)
	}
}

func TestConform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		rate, channels   int
		toRate, toChans  int
		wantSameInstance bool
	}{
		{"matching", 44100, 2, 44100, 2, true},
		{"downmix", 44100, 2, 44100, 1, false},
		{"upmix", 22050, 1, 44100, 2, false},
		{"six to stereo", 48000, 6, 44100, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newConstantSource(tt.rate, tt.channels, 100, 0.25)
			out, err := Conform(src, tt.toRate, tt.toChans)
			if err != nil {
				t.Fatalf("Conform() error = %v", err)
			}
			if (out == Source(src)) != tt.wantSameInstance {
				t.Errorf("Conform() returned source itself = %v, want %v", out == Source(src), tt.wantSameInstance)
			}
			if out.SampleRate() != tt.toRate || out.Channels() != tt.toChans {
				t.Errorf("Conform() = %d Hz x%d, want %d Hz x%d", out.SampleRate(), out.Channels(), tt.toRate, tt.toChans)
			}
		})
	}

	if _, err := Conform(newConstantSource(8000, 1, 1, 0), 0, 1); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("Conform() zero rate error = %v, want ErrInvalidRate", err)
	}
	if _, err := Conform(newConstantSource(8000, 1, 1, 0), 8000, 0); !errors.Is(err, ErrInvalidChannels) {
		t.Errorf("Conform() zero channels error = %v, want ErrInvalidChannels", err)
	}
}
