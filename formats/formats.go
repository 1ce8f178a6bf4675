// SPDX-License-Identifier: EPL-2.0

// Package formats wires every bundled decoder into an audio.Registry.
package formats

import (
	"github.com/ik5/chartaudio/audio"
	"github.com/ik5/chartaudio/formats/aiff"
	"github.com/ik5/chartaudio/formats/mp3"
	"github.com/ik5/chartaudio/formats/vorbis"
	"github.com/ik5/chartaudio/formats/wav"
)

// Default returns a registry keyed by file extension.
func Default() *audio.Registry {
	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("ogg", vorbis.Decoder{})
	reg.Register("aif", aiff.Decoder{})
	reg.Register("aiff", aiff.Decoder{})
	return reg
}
