// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize  = errors.New("dst size must be multiple of channels")
	ErrUnknownFormat   = errors.New("no decoder registered for format")
	ErrSeekUnsupported = errors.New("source does not support seeking")
	ErrInvalidRate     = errors.New("sample rate must be positive")
	ErrInvalidChannels = errors.New("channel count must be positive")

	// ErrInvalidStretch indicates tempo processing parameters that can't
	// produce a usable processing window.
	ErrInvalidStretch = errors.New("invalid tempo stretch parameters")
)
