// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ik5/chartaudio/formats/wav"
)

// WriteTone writes a 16-bit WAV file holding a 440 Hz tone of the given
// length into dir and returns its path.
func WriteTone(tb testing.TB, dir, name string, rate, channels int, seconds float64) string {
	tb.Helper()

	frames := int(seconds * float64(rate))
	samples := make([]int16, frames*channels)
	for f := range frames {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(f)/float64(rate)))
		for c := range channels {
			samples[f*channels+c] = v
		}
	}
	return WriteSamples(tb, dir, name, rate, channels, samples)
}

// WriteSamples writes interleaved 16-bit samples as a WAV file.
func WriteSamples(tb testing.TB, dir, name string, rate, channels int, samples []int16) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	if err := wav.WritePCM16(f, rate, channels, samples); err != nil {
		tb.Fatalf("writing fixture: %v", err)
	}
	return path
}

// WriteGarbage writes a file that no decoder accepts.
func WriteGarbage(tb testing.TB, dir, name string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("this is not audio at all, just text padding the header"), 0o644); err != nil {
		tb.Fatalf("writing fixture: %v", err)
	}
	return path
}
