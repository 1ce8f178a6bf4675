// SPDX-License-Identifier: EPL-2.0

package device

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ik5/chartaudio/audio"
)

func TestFormat_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"float stereo", Format{SampleRate: 44100, Channels: 2, Sample: audio.FormatFloat32LE}, false},
		{"int16 mono", Format{SampleRate: 8000, Channels: 1, Sample: audio.FormatInt16LE}, false},
		{"zero rate", Format{Channels: 2}, true},
		{"zero channels", Format{SampleRate: 44100}, true},
		{"unknown sample", Format{SampleRate: 44100, Channels: 2, Sample: audio.SampleFormat(9)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Validate() error = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestFormat_BytesAt(t *testing.T) {
	t.Parallel()

	f := Format{SampleRate: 44100, Channels: 2, Sample: audio.FormatFloat32LE}
	if f.FrameBytes() != 8 {
		t.Errorf("FrameBytes() = %d, want 8", f.FrameBytes())
	}

	tests := []struct {
		seconds float64
		want    int64
	}{
		{0, 0},
		{-1, 0},
		{1, 44100 * 8},
		{0.5, 22050 * 8},
		// 0.00001s is 0.441 frames and rounds down
		{0.00001, 0},
	}
	for _, tt := range tests {
		if got := f.BytesAt(tt.seconds); got != tt.want {
			t.Errorf("BytesAt(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
		if got := f.BytesAt(tt.seconds); got%int64(f.FrameBytes()) != 0 {
			t.Errorf("BytesAt(%v) = %d, not frame aligned", tt.seconds, got)
		}
	}
}

func TestEndReader(t *testing.T) {
	t.Parallel()

	e := &endReader{r: bytes.NewReader([]byte("abcd"))}
	if e.done() {
		t.Fatal("done() before reading")
	}

	if _, err := io.ReadAll(e); err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !e.done() {
		t.Fatal("done() = false after EOF")
	}

	if _, err := e.Seek(1, io.SeekStart); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if e.done() {
		t.Error("done() = true after rewinding")
	}

	plain := &endReader{r: io.MultiReader(bytes.NewReader(nil))}
	if _, err := plain.Seek(0, io.SeekStart); !errors.Is(err, ErrNotSeekable) {
		t.Errorf("Seek() on plain reader error = %v, want ErrNotSeekable", err)
	}
}
