// SPDX-License-Identifier: EPL-2.0

package diag

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNilSink(t *testing.T) {
	t.Parallel()

	s := NewSink("", 1)
	if s != nil {
		t.Fatal("NewSink(\"\") returned a live sink")
	}

	written, err := s.Write(Report{Op: "play"})
	if written || err != nil {
		t.Errorf("Write() on nil sink = %v, %v, want false, nil", written, err)
	}
	if s.Path() != "" || s.Skipped() != 0 || s.Flush() != nil || s.Close() != nil {
		t.Error("nil sink reported state")
	}
}

func TestSink_Write(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFile)
	s := NewSink(path, 0)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := NewReport("a", "play", "hit.wav", errors.New("device gone"), at)
	second := NewReport("b", "music", "bgm.ogg", errors.New("bad header"), at)

	for _, r := range []Report{first, second} {
		written, err := s.Write(r)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !written {
			t.Fatal("Write() was throttled without a limit")
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got.ID != "b" || got.Op != "music" || got.Path != "bgm.ogg" || got.Message != "bad header" {
		t.Errorf("report = %+v, want the latest one", got)
	}
	if got.Type != "*errors.errorString" {
		t.Errorf("Type = %q, want *errors.errorString", got.Type)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the report", len(entries))
	}
}

func readReport(t *testing.T, path string) Report {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	return r
}

func TestSink_ThrottleKeepsLatest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "r.json")
	s := NewSink(path, 0.001)

	written := 0
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		ok, err := s.Write(Report{ID: id, Op: "play"})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if ok {
			written++
		}
	}

	if written != 3 {
		t.Errorf("wrote %d reports at once, want the burst of 3", written)
	}
	if got := readReport(t, path); got.ID != "3" {
		t.Errorf("file holds report %q before the flush, want 3", got.ID)
	}
	if s.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1 superseded report", s.Skipped())
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := readReport(t, path); got.ID != "5" {
		t.Errorf("file holds report %q, want the latest 5", got.ID)
	}
}

func TestSink_ThrottledReportWrittenLater(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "r.json")
	s := NewSink(path, 50)
	t.Cleanup(func() { s.Close() })

	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		if _, err := s.Write(Report{ID: id}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := readReport(t, path); got.ID == "6" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("latest report never reached the file")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSink_WriteAfterClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "r.json")
	s := NewSink(path, 0.001)

	for _, id := range []string{"1", "2", "3", "4"} {
		s.Write(Report{ID: id})
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := readReport(t, path); got.ID != "4" {
		t.Errorf("Close() left report %q, want 4", got.ID)
	}

	ok, err := s.Write(Report{ID: "5"})
	if !ok || err != nil {
		t.Fatalf("Write() after Close = %v, %v, want a direct write", ok, err)
	}
	if got := readReport(t, path); got.ID != "5" {
		t.Errorf("file holds report %q, want 5", got.ID)
	}
}

func TestSink_MissingDirectory(t *testing.T) {
	t.Parallel()

	s := NewSink(filepath.Join(t.TempDir(), "nope", "r.json"), 0)
	if _, err := s.Write(Report{}); err == nil {
		t.Error("Write() into a missing directory succeeded")
	}
}
