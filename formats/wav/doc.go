// SPDX-License-Identifier: EPL-2.0

// Package wav decodes and writes WAV files.
//
// Decoding is backed by github.com/go-audio/wav and accepts integer PCM of
// 8, 16, 24 and 32 bits with any chunk layout. The frame count comes from the
// data chunk header, so measuring a sample's duration never decodes it.
//
//	src, err := wav.Decoder{}.Decode(file)
//	frames, _ := src.(audio.Lengther).Frames()
//
// WritePCM16 and WriteWAV16 produce canonical 44-byte header files:
//
//	err := wav.WritePCM16(file, 44100, 2, interleaved)
package wav
