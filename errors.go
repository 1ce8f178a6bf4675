// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotSupported is returned when no audio output could be opened.
	ErrNotSupported = errors.New("audio playback is not supported")
	// ErrInvalidOperation reports a call that is not valid in the current
	// state, like playing a path that was never registered.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrResource reports a file that cannot be opened or decoded, or an
	// output stream the device refused to create.
	ErrResource = errors.New("audio resource error")
	// ErrUnsupportedFormat is returned for sound sources whose extension
	// is not accepted.
	ErrUnsupportedFormat = errors.New("unsupported sound format")
)

// ErrorEvent describes a failure that happened in the background, after the
// call that caused it already returned.
type ErrorEvent struct {
	ID   string
	Op   string
	Path string
	Err  error
	Time time.Time
}

func (e ErrorEvent) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e ErrorEvent) Unwrap() error { return e.Err }

func resourceError(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrResource, path, err)
}
