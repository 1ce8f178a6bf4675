// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ik5/chartaudio/internal/audiotest"
)

func TestGetDuration_Memoized(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, testConfig(t))
	hit := audiotest.WriteTone(t, t.TempDir(), "hit.wav", 8000, 2, 0.5)

	first, err := e.GetDuration(hit)
	if err != nil {
		t.Fatalf("GetDuration() error = %v", err)
	}
	second, err := e.GetDuration(hit)
	if err != nil {
		t.Fatalf("GetDuration() error = %v", err)
	}

	if first != 0.5 || second != first {
		t.Errorf("GetDuration() = %v then %v, want 0.5 twice", first, second)
	}
	if err := e.Register(hit); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if n := e.measured.Load(); n != 1 {
		t.Errorf("registration decoded %d times, want 1", n)
	}
}

func TestRegister_ConcurrentCallsDecodeOnce(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, testConfig(t))
	hit := audiotest.WriteTone(t, t.TempDir(), "hit.wav", 8000, 1, 1)

	var wg sync.WaitGroup
	durations := make([]float64, 16)
	for i := range durations {
		wg.Go(func() {
			d, err := e.GetDuration(hit)
			if err != nil {
				t.Errorf("GetDuration() error = %v", err)
			}
			durations[i] = d
		})
	}
	wg.Wait()

	for i, d := range durations {
		if d != 1 {
			t.Errorf("call %d got %v, want 1", i, d)
		}
	}
	if n := e.measured.Load(); n != 1 {
		t.Errorf("registration decoded %d times, want 1", n)
	}
	if st, ok := e.Stats(hit); !ok || st != (PoolStats{}) {
		t.Errorf("Stats() = %+v, %v, want an empty pool", st, ok)
	}
}

func TestRegister_Errors(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, testConfig(t))
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.wav")},
		{"corrupt file", audiotest.WriteGarbage(t, dir, "corrupt.wav")},
		{"unknown extension", audiotest.WriteGarbage(t, dir, "notes.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Register(tt.path)
			if !errors.Is(err, ErrResource) {
				t.Fatalf("Register() error = %v, want ErrResource", err)
			}
			if _, err := e.GetDuration(tt.path); !errors.Is(err, ErrResource) {
				t.Errorf("GetDuration() error = %v, want ErrResource", err)
			}
			if _, ok := e.Stats(tt.path); ok {
				t.Error("failed registration created a pool")
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("fixture unexpectedly exists")
	}
	if err := e.Register(filepath.Join(dir, "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Register() error = %v, want it to wrap os.ErrNotExist", err)
	}
}

func TestRegister_RetriesAfterFailure(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, testConfig(t))
	dir := t.TempDir()
	path := filepath.Join(dir, "late.wav")

	if err := e.Register(path); err == nil {
		t.Fatal("Register() of a missing file succeeded")
	}

	audiotest.WriteTone(t, dir, "late.wav", 8000, 1, 0.25)
	if err := e.Register(path); err != nil {
		t.Fatalf("Register() after the file appeared error = %v", err)
	}
}
