// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"errors"
	"testing"

	"github.com/ik5/chartaudio/internal/audiotest"
	"github.com/ik5/chartaudio/internal/device/devicetest"
)

func registeredEngine(t *testing.T) (*Engine, *devicetest.Device, string) {
	t.Helper()

	e, dev := newTestEngine(t, testConfig(t))
	hit := audiotest.WriteTone(t, t.TempDir(), "hit.wav", 8000, 1, 0.25)
	if err := e.Register(hit); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return e, dev, hit
}

func playN(t *testing.T, e *Engine, path string, n int) {
	t.Helper()

	for range n {
		if err := e.Play(path, 0); err != nil {
			t.Fatalf("Play() error = %v", err)
		}
	}
	e.wait()
}

func finishAll(dev *devicetest.Device) int {
	n := 0
	for _, v := range dev.Playing() {
		if v.Finish() {
			n++
		}
	}
	return n
}

// freeQueueUnique reports whether no handle sits twice in the free queue.
func freeQueueUnique(e *Engine, path string) bool {
	p, _ := e.pool(path)
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[*handle]bool)
	for _, h := range p.free {
		if seen[h] || h.playing {
			return false
		}
		seen[h] = true
	}
	return true
}

func TestPlay_OverlappingEffects(t *testing.T) {
	t.Parallel()

	e, dev, hit := registeredEngine(t)
	playN(t, e, hit, 3)

	voices := dev.Voices()
	if len(voices) != 3 {
		t.Fatalf("created %d voices, want 3", len(voices))
	}
	for i, v := range voices {
		if !v.Playing() {
			t.Errorf("voice %d is not playing", i)
		}
	}
	if got := e.active.len(); got != 3 {
		t.Errorf("active set holds %d handles, want 3", got)
	}
	if st, _ := e.Stats(hit); st != (PoolStats{Handles: 3, Playing: 3}) {
		t.Errorf("Stats() = %+v, want 3 handles all playing", st)
	}
}

func TestPlay_ReuseAfterCompletion(t *testing.T) {
	t.Parallel()

	e, dev, hit := registeredEngine(t)
	playN(t, e, hit, 3)

	if n := finishAll(dev); n != 3 {
		t.Fatalf("finished %d plays, want 3", n)
	}
	if st, _ := e.Stats(hit); st != (PoolStats{Handles: 3, Free: 3}) {
		t.Fatalf("Stats() = %+v, want 3 free handles", st)
	}
	if got := e.active.len(); got != 0 {
		t.Errorf("active set holds %d handles after completion, want 0", got)
	}

	playN(t, e, hit, 1)

	voices := dev.Voices()
	if len(voices) != 3 {
		t.Fatalf("created %d voices, want the 3 existing ones reused", len(voices))
	}
	// the first freed handle is reused first
	replayed := 0
	for _, v := range voices {
		if v.Plays() == 2 {
			replayed++
		}
	}
	if replayed != 1 {
		t.Errorf("%d voices replayed, want 1", replayed)
	}
	if st, _ := e.Stats(hit); st != (PoolStats{Handles: 3, Free: 2, Playing: 1}) {
		t.Errorf("Stats() = %+v, want 1 playing and 2 free", st)
	}
}

func TestPlay_PoolGrowsToPeakConcurrency(t *testing.T) {
	t.Parallel()

	e, dev, hit := registeredEngine(t)

	peak := 0
	for _, n := range []int{3, 1, 5, 2, 4} {
		playN(t, e, hit, n)
		peak = max(peak, n)

		st, _ := e.Stats(hit)
		if st.Handles != peak || st.Playing != n {
			t.Fatalf("after %d plays Stats() = %+v, want %d handles and %d playing", n, st, peak, n)
		}

		if got := finishAll(dev); got != n {
			t.Fatalf("finished %d plays, want %d", got, n)
		}
		st, _ = e.Stats(hit)
		if st.Free != peak || st.Playing != 0 {
			t.Fatalf("after completion Stats() = %+v, want all %d free", st, peak)
		}
		if !freeQueueUnique(e, hit) {
			t.Fatal("a handle was queued twice")
		}
	}
}

func TestPlay_LateEndNotificationIgnored(t *testing.T) {
	t.Parallel()

	e, dev, hit := registeredEngine(t)
	playN(t, e, hit, 1)

	v := dev.Voices()[0]
	firstSeq := v.Seq()
	v.Finish()
	v.FinishStale(firstSeq)

	if st, _ := e.Stats(hit); st.Free != 1 {
		t.Fatalf("Stats() = %+v, want exactly 1 free handle", st)
	}

	// replayed under a new sequence, the stale end must not free it
	playN(t, e, hit, 1)
	v.FinishStale(firstSeq)

	if st, _ := e.Stats(hit); st != (PoolStats{Handles: 1, Playing: 1}) {
		t.Errorf("Stats() = %+v, want the handle still playing", st)
	}
	if !freeQueueUnique(e, hit) {
		t.Error("a handle is free while playing")
	}
}

func TestPlay_Offset(t *testing.T) {
	t.Parallel()

	e, dev, hit := registeredEngine(t)
	if err := e.Play(hit, 0.1); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	e.wait()

	v := dev.Voices()[0]
	frameBytes := int64(dev.Format().FrameBytes())
	if want := 800 * frameBytes; v.Offset() != want {
		t.Errorf("voice started at byte %d, want %d", v.Offset(), want)
	}

	data, err := v.Drain()
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	// 0.25s fixture, 0.1s skipped
	if want := 1200 * frameBytes; int64(len(data)) != want {
		t.Errorf("played %d bytes, want %d", len(data), want)
	}
}

func TestPlay_VoiceFailureIsReported(t *testing.T) {
	t.Parallel()

	e, dev, hit := registeredEngine(t)
	id, events := e.Subscribe()
	defer e.Unsubscribe(id)

	dev.FailVoices(errors.New("too many streams"))
	if err := e.Play(hit, 0); err != nil {
		t.Fatalf("Play() returned %v synchronously", err)
	}
	e.wait()

	ev := nextEvent(t, events)
	if !errors.Is(ev, ErrResource) {
		t.Errorf("event error = %v, want ErrResource", ev.Err)
	}
	if st, _ := e.Stats(hit); st != (PoolStats{}) {
		t.Errorf("Stats() = %+v, want no handle kept", st)
	}

	dev.FailVoices(nil)
	playN(t, e, hit, 1)
	if st, _ := e.Stats(hit); st != (PoolStats{Handles: 1, Playing: 1}) {
		t.Errorf("Stats() = %+v after recovery, want 1 playing", st)
	}
}

func TestStopAll(t *testing.T) {
	t.Parallel()

	e, dev, hit := registeredEngine(t)
	song := audiotest.WriteTone(t, t.TempDir(), "song.wav", 8000, 1, 1)

	playN(t, e, hit, 2)
	if err := e.PlayMusic(song, 0, 1); err != nil {
		t.Fatalf("PlayMusic() error = %v", err)
	}
	e.wait()

	effects := dev.Voices()[:2]
	seqs := []uint64{effects[0].Seq(), effects[1].Seq()}

	if err := e.StopAll(); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}

	if n := len(dev.Playing()); n != 0 {
		t.Errorf("%d voices still playing", n)
	}
	if _, ok := e.MusicPosition(); ok {
		t.Error("music still live after StopAll")
	}
	if st, _ := e.Stats(hit); st != (PoolStats{Handles: 2, Free: 2}) {
		t.Errorf("Stats() = %+v, want both handles free", st)
	}
	if e.active.len() != 0 {
		t.Error("active set not cleared")
	}

	// end notifications of the stopped plays must not queue them again
	for i, v := range effects {
		v.FinishStale(seqs[i])
	}
	if st, _ := e.Stats(hit); st.Free != 2 || !freeQueueUnique(e, hit) {
		t.Errorf("Stats() = %+v after late notifications, want 2 distinct free handles", st)
	}

	if err := e.StopAll(); err != nil {
		t.Errorf("second StopAll() error = %v", err)
	}
}

func TestStop_OnlyThatPath(t *testing.T) {
	t.Parallel()

	e, dev, hit := registeredEngine(t)
	clap := audiotest.WriteTone(t, t.TempDir(), "clap.wav", 8000, 1, 0.25)
	if err := e.Register(clap); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	playN(t, e, hit, 2)
	playN(t, e, clap, 1)

	if err := e.Stop(hit); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if st, _ := e.Stats(hit); st.Playing != 0 || st.Free != 2 {
		t.Errorf("hit Stats() = %+v, want all free", st)
	}
	if st, _ := e.Stats(clap); st.Playing != 1 {
		t.Errorf("clap Stats() = %+v, want still playing", st)
	}
	if n := len(dev.Playing()); n != 1 {
		t.Errorf("%d voices playing, want 1", n)
	}
}

func TestPlaySource(t *testing.T) {
	t.Parallel()

	e, dev := newTestEngine(t, testConfig(t))
	dir := t.TempDir()
	hit := audiotest.WriteTone(t, dir, "hit.wav", 8000, 1, 0.25)

	if err := e.PlaySource(NewSoundSource(hit, 0.02), 0); err != nil {
		t.Fatalf("PlaySource() error = %v", err)
	}
	e.wait()

	if len(dev.Playing()) != 1 {
		t.Errorf("%d voices playing, want 1", len(dev.Playing()))
	}
	if dev.Voices()[0].Offset() != 0 {
		t.Error("latency was applied inside the engine")
	}

	aiff := audiotest.WriteGarbage(t, dir, "hit.aiff")
	if err := e.PlaySource(NewSoundSource(aiff, 0), 0); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("PlaySource() error = %v, want ErrUnsupportedFormat", err)
	}
	broken := audiotest.WriteGarbage(t, dir, "broken.ogg")
	if err := e.PlaySource(NewSoundSource(broken, 0), 0); !errors.Is(err, ErrResource) {
		t.Errorf("PlaySource() error = %v, want ErrResource", err)
	}
}
