// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III audio through
// github.com/hajimehoshi/go-mp3.
//
// Output is always stereo. When the input implements io.Seeker (an
// *os.File does) the source also reports its length and seeks to a frame
// without decoding the skipped part.
package mp3
