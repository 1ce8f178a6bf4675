// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"fmt"

	"github.com/ik5/chartaudio/audio"
)

// Register measures path and prepares its playback pool. Registering a known
// path does nothing, concurrent registrations of one path share a single
// decode pass. Registration never touches the output, so it also works on
// an unsupported engine.
func (e *Engine) Register(path string) error {
	if e.closed.Load() {
		return fmt.Errorf("%w: engine shut down", ErrInvalidOperation)
	}
	if _, ok := e.cachedDuration(path); ok {
		return nil
	}

	_, err, _ := e.register.Do(path, func() (any, error) {
		if d, ok := e.cachedDuration(path); ok {
			return d, nil
		}
		return e.measure(path)
	})
	return err
}

func (e *Engine) measure(path string) (float64, error) {
	e.measured.Add(1)

	src, err := e.decoders.Open(path)
	if err != nil {
		return 0, resourceError(path, err)
	}
	defer src.Close()

	seconds, err := audio.Duration(src)
	if err != nil {
		return 0, resourceError(path, err)
	}

	// the pool goes first so a path with a duration is always playable
	e.poolsMu.Lock()
	if _, ok := e.pools[path]; !ok {
		e.pools[path] = newPlaybackPool(path, e.active)
	}
	e.poolsMu.Unlock()

	e.durMu.Lock()
	e.durations[path] = seconds
	e.durMu.Unlock()

	e.log.Debug("sound registered", "path", path, "seconds", seconds)
	return seconds, nil
}

// GetDuration returns the length of path in seconds, registering it first
// when needed.
func (e *Engine) GetDuration(path string) (float64, error) {
	if err := e.Register(path); err != nil {
		return 0, err
	}
	d, _ := e.cachedDuration(path)
	return d, nil
}

func (e *Engine) cachedDuration(path string) (float64, bool) {
	e.durMu.RLock()
	defer e.durMu.RUnlock()
	d, ok := e.durations[path]
	return d, ok
}

func (e *Engine) pool(path string) (*playbackPool, bool) {
	e.poolsMu.RLock()
	defer e.poolsMu.RUnlock()
	p, ok := e.pools[path]
	return p, ok
}

// PoolStats describes the decode handles of one registered path.
type PoolStats struct {
	Handles int
	Free    int
	Playing int
}

// Stats reports the pool state of path, false when it is not registered.
func (e *Engine) Stats(path string) (PoolStats, bool) {
	p, ok := e.pool(path)
	if !ok {
		return PoolStats{}, false
	}
	return p.stats(), true
}
