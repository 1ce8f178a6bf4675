// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ik5/chartaudio/audio"
	"github.com/ik5/chartaudio/internal/device"
)

// handle is one decoded, playable stream of a registered path. It is either
// free, waiting in its pool, or playing under a sequence number that
// identifies that one play.
type handle struct {
	id    int
	pool  *playbackPool
	voice device.Voice

	// guarded by pool.mu
	playing bool
	seq     uint64
}

// activeSet tracks the handles whose play has started, for StopAll.
// Lock order: a pool's mu may be held while taking activeSet.mu, never the
// reverse.
type activeSet struct {
	mu sync.Mutex
	m  map[*handle]uint64
}

type activeEntry struct {
	h   *handle
	seq uint64
}

func newActiveSet() *activeSet {
	return &activeSet{m: make(map[*handle]uint64)}
}

func (a *activeSet) add(h *handle, seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[h] = seq
}

func (a *activeSet) remove(h *handle, seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.m[h]; ok && s == seq {
		delete(a.m, h)
	}
}

// take removes and returns every entry matching keep.
func (a *activeSet) take(keep func(*handle) bool) []activeEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []activeEntry
	for h, seq := range a.m {
		if keep(h) {
			out = append(out, activeEntry{h, seq})
			delete(a.m, h)
		}
	}
	return out
}

func (a *activeSet) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.m)
}

// playbackPool keeps the handles of one path. It only grows, up to the
// highest number of simultaneous plays seen.
type playbackPool struct {
	path   string
	active *activeSet

	mu       sync.Mutex
	free     []*handle
	all      []*handle
	reserved int
	nextSeq  uint64
	closed   bool
}

func newPlaybackPool(path string, active *activeSet) *playbackPool {
	return &playbackPool{path: path, active: active}
}

// acquire hands out a free handle, or creates one with create when none is
// free. The handle is returned playing under the returned sequence number.
func (p *playbackPool) acquire(create func(id int) (*handle, error)) (*handle, uint64, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, 0, errPoolClosed
	}
	if len(p.free) > 0 {
		h := p.free[0]
		p.free = p.free[1:]
		seq := p.startLocked(h)
		p.mu.Unlock()
		return h, seq, nil
	}
	id := len(p.all) + p.reserved
	p.reserved++
	p.mu.Unlock()

	// creation decodes, keep the pool usable meanwhile
	h, err := create(id)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserved--
	if err != nil {
		return nil, 0, err
	}
	if p.closed {
		h.voice.Close()
		return nil, 0, errPoolClosed
	}
	p.all = append(p.all, h)
	return h, p.startLocked(h), nil
}

func (p *playbackPool) startLocked(h *handle) uint64 {
	p.nextSeq++
	h.playing = true
	h.seq = p.nextSeq
	return h.seq
}

// activate records a started play in the active set, unless it already
// ended.
func (p *playbackPool) activate(h *handle, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !h.playing || h.seq != seq {
		return false
	}
	p.active.add(h, seq)
	return true
}

// recycle returns h to the free queue if it is still playing under seq.
// Stale or repeated notifications are ignored, so a handle is queued at most
// once per play.
func (p *playbackPool) recycle(h *handle, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recycleLocked(h, seq)
}

func (p *playbackPool) recycleLocked(h *handle, seq uint64) bool {
	if !h.playing || h.seq != seq || p.closed {
		return false
	}
	h.playing = false
	p.free = append(p.free, h)
	p.active.remove(h, seq)
	return true
}

// stop halts the play seq of h and recycles the handle. A handle that
// already moved on to another play is left alone.
func (p *playbackPool) stop(h *handle, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !h.playing || h.seq != seq {
		return false
	}
	h.voice.Stop()
	return p.recycleLocked(h, seq)
}

// discard drops a handle whose stream failed.
func (p *playbackPool) discard(h *handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active.remove(h, h.seq)
	h.playing = false
	for i, x := range p.all {
		if x == h {
			p.all = append(p.all[:i], p.all[i+1:]...)
			break
		}
	}
	h.voice.Close()
}

func (p *playbackPool) stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := PoolStats{Handles: len(p.all), Free: len(p.free)}
	for _, h := range p.all {
		if h.playing {
			s.Playing++
		}
	}
	return s
}

func (p *playbackPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for _, h := range p.all {
		p.active.remove(h, h.seq)
		h.playing = false
		errs = append(errs, h.voice.Close())
	}
	p.free = nil
	return errors.Join(errs...)
}

var errPoolClosed = errors.New("playback pool closed")

// Play plays the registered sound path from offset seconds. It returns
// immediately, failures including an unregistered path are delivered
// through Subscribe.
func (e *Engine) Play(path string, offset float64) error {
	if err := e.checkPlayable(); err != nil {
		return err
	}

	err := e.effects.Go(taskName("play", path), background(func() error {
		return e.playEffect(path, offset)
	}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	return nil
}

func (e *Engine) playEffect(path string, offset float64) error {
	p, ok := e.pool(path)
	if !ok {
		return fmt.Errorf("%w: %s was not registered", ErrInvalidOperation, path)
	}

	h, seq, err := p.acquire(func(id int) (*handle, error) {
		return e.newHandle(p, id)
	})
	if err != nil {
		return err
	}

	if err := h.voice.Play(seq, e.dev.Format().BytesAt(offset)); err != nil {
		p.discard(h)
		return resourceError(path, err)
	}
	p.activate(h, seq)
	return nil
}

// newHandle builds the decode chain of a new handle. The stream reopens on
// every seek, so the file is decoded from the requested frame.
func (e *Engine) newHandle(p *playbackPool, id int) (*handle, error) {
	f := e.dev.Format()

	open := func(startFrame int64) (audio.Source, error) {
		src, err := e.decoders.Open(p.path)
		if err != nil {
			return nil, err
		}

		skip := startFrame * int64(src.SampleRate()) / int64(f.SampleRate)
		if _, err := audio.Skip(src, skip); err != nil {
			src.Close()
			return nil, err
		}

		out, err := audio.Conform(src, f.SampleRate, f.Channels)
		if err != nil {
			src.Close()
			return nil, err
		}
		return out, nil
	}

	r, err := audio.NewSeekablePCMReader(open, f.Sample)
	if err != nil {
		return nil, resourceError(p.path, err)
	}

	h := &handle{id: id, pool: p}
	voice, err := e.dev.NewVoice(r, func(seq uint64) { e.finished(h, seq) })
	if err != nil {
		r.Close()
		return nil, resourceError(p.path, err)
	}
	h.voice = voice

	e.log.Debug("decode handle created", "path", p.path, "handle", id)
	return h, nil
}

// finished runs on the output's goroutine once a play reached its end.
func (e *Engine) finished(h *handle, seq uint64) {
	h.pool.recycle(h, seq)
}

// stopActive stops and recycles every active handle matching keep.
func (e *Engine) stopActive(keep func(*handle) bool) int {
	n := 0
	for _, a := range e.active.take(keep) {
		if a.h.pool.stop(a.h, a.seq) {
			n++
		}
	}
	return n
}

// Stop halts every playing effect of path. The stopped handles are free
// for reuse right away.
func (e *Engine) Stop(path string) error {
	if err := e.checkPlayable(); err != nil {
		return err
	}
	e.stopActive(func(h *handle) bool { return h.pool.path == path })
	return nil
}

// StopAll stops the music and every playing effect.
func (e *Engine) StopAll() error {
	if err := e.checkPlayable(); err != nil {
		return err
	}

	e.StopMusic()
	if n := e.stopActive(func(*handle) bool { return true }); n > 0 {
		e.log.Debug("effects stopped", "count", n)
	}
	return nil
}
