// SPDX-License-Identifier: EPL-2.0

// Package audio provides the streaming building blocks of the playback engine.
//
// Every stage implements Source, so decoders and processors chain into a
// pipeline that is pulled by the output device:
//
//	decoder -> Stretcher -> Resampler -> MonoMixer/Upmixer -> PCMReader -> device
//
// # Source Interface
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Samples are interleaved float32 in [-1, 1]. ReadSamples returns io.EOF once
// the stream is exhausted. Sources may additionally implement Lengther (known
// frame count) and FrameSeeker (cheap repositioning), which Measure and Skip
// use when present.
//
// # Format Registry
//
// Registry maps file extensions to decoders and opens files directly:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	src, err := registry.Open("hit.wav")
//
// # Tempo
//
// Stretcher changes playback speed without changing pitch. The tempo may be
// changed while another goroutine is reading:
//
//	st, _ := audio.NewStretcher(src, audio.DefaultStretchParams())
//	st.SetTempo(1.5)
//
// # Device Output
//
// Conform adapts a source to the device rate and channel layout, PCMReader
// turns it into the byte stream an output device consumes. SeekablePCMReader
// repositions by reopening the stream through an OpenFunc.
package audio
