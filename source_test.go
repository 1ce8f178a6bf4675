// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSoundSource_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		wantErr error
	}{
		{"hit.wav", nil},
		{"song.OGG", nil},
		{"dir/clap.mp3", nil},
		{"", ErrInvalidOperation},
		{"hit.aiff", ErrUnsupportedFormat},
		{"noext", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			err := NewSoundSource(tt.path, 0).Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSoundSource_JSON(t *testing.T) {
	t.Parallel()

	var s SoundSource
	if err := json.Unmarshal([]byte(`{"filePath":"kick.wav","latency":0.015}`), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s != NewSoundSource("kick.wav", 0.015) {
		t.Errorf("decoded %+v", s)
	}
}
