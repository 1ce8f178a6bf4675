// SPDX-License-Identifier: EPL-2.0

// Package chartaudio is the playback engine of a chart editor. It plays short
// sound effects with low latency and free overlap, and streams one backing
// track whose tempo can change without changing its pitch.
//
// # Lifecycle
//
// Initialize opens the audio output once. When no output is available the
// engine still works for measuring files, but every playback call returns
// ErrNotSupported:
//
//	engine, err := chartaudio.Initialize(chartaudio.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer engine.Shutdown()
//
// # Sound Effects
//
// Each registered path owns a pool of decoded streams. A play takes a free
// stream or decodes a new one, so overlapping plays of one sound never cut
// each other off, and a stream returns to its pool when it ends:
//
//	if err := engine.Register("hit.wav"); err != nil {
//	    return err
//	}
//	engine.Play("hit.wav", 0)
//
// Play never blocks on decoding. Failures found in the background are
// published to subscribers and written to a diagnostic file:
//
//	id, errs := engine.Subscribe()
//	defer engine.Unsubscribe(id)
//
// # Music
//
// PlayMusic replaces the current track, SetMusicSpeed changes its tempo in
// place:
//
//	engine.PlayMusic("song.ogg", 12.5, 1.0)
//	engine.SetMusicSpeed(0.75)
//
// # Formats
//
// WAV, MP3, Ogg Vorbis and AIFF are decoded by the formats subpackages. The
// audio subpackage holds the streaming pipeline: resampling, channel
// conversion and the pitch preserving time stretcher.
package chartaudio
