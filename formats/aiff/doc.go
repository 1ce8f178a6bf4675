// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes integer PCM AIFF files through github.com/go-audio/aiff.
// The frame count is read from the COMM chunk.
package aiff
