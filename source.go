// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// SupportedExtensions lists the file types a SoundSource may point to.
var SupportedExtensions = []string{".wav", ".mp3", ".ogg"}

// SoundSource describes a sound a project refers to. Latency is the number
// of seconds the file takes to reach its audible hit point. The engine never
// applies it, callers schedule plays earlier by that amount.
type SoundSource struct {
	FilePath string  `json:"filePath"`
	Latency  float64 `json:"latency"`
}

func NewSoundSource(path string, latency float64) SoundSource {
	return SoundSource{FilePath: path, Latency: latency}
}

func (s SoundSource) Validate() error {
	if s.FilePath == "" {
		return fmt.Errorf("%w: empty sound path", ErrInvalidOperation)
	}
	ext := strings.ToLower(filepath.Ext(s.FilePath))
	if !slices.Contains(SupportedExtensions, ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// PlaySource registers the file of src if needed and plays it from offset
// seconds. Registration errors are returned, playback errors are delivered
// through Subscribe.
func (e *Engine) PlaySource(src SoundSource, offset float64) error {
	if err := e.checkPlayable(); err != nil {
		return err
	}
	if err := src.Validate(); err != nil {
		return err
	}
	if err := e.Register(src.FilePath); err != nil {
		return err
	}
	return e.Play(src.FilePath, offset)
}
