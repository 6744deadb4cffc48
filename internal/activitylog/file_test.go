package activitylog

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestFile_AppendTimestamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	l, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.now = fixedClock

	l.Append("seed transfer")
	l.Printf("promoted %s into %s", "W1", "lineage-1")
	l.Append("multi\nline")
	l.Close()

	lines := readLines(t, path)
	want := []string{
		"[2024-01-02T03:04:05Z] seed transfer",
		"[2024-01-02T03:04:05Z] promoted W1 into lineage-1",
		"[2024-01-02T03:04:05Z] multi line",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %v", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFile_CapDropsSilently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	l, err := Open(path, Options{MaxBytes: 60})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.now = fixedClock

	// Each line is 23 bytes of prefix plus the text.
	for i := 0; i < 10; i++ {
		l.Append("0123456789")
	}
	l.Close()

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected writes to stop once the cap was reached, got %d lines", len(lines))
	}
	if l.Dropped() != 8 {
		t.Errorf("expected 8 dropped, got %d", l.Dropped())
	}
}

func TestFile_TruncateOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	kept, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if kept.Size() != int64(len("old line\n")) {
		t.Errorf("expected existing size to count toward the cap, got %d", kept.Size())
	}
	kept.Close()

	l, err := Open(path, Options{Truncate: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.Append("fresh")
	l.Close()

	lines := readLines(t, path)
	if len(lines) != 1 || !strings.HasSuffix(lines[0], "fresh") {
		t.Errorf("expected only the fresh line, got %v", lines)
	}
}

func TestFile_AsLoggerOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	l, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	logger := log.New(l, "", 0)
	logger.Printf("from logger")
	l.Close()

	lines := readLines(t, path)
	if len(lines) != 1 || !strings.HasSuffix(lines[0], "] from logger") {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestFile_ConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	l, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Append("event")
			}
		}()
	}
	wg.Wait()
	l.Close()

	if n := len(readLines(t, path)); n != 400 {
		t.Errorf("expected 400 lines, got %d", n)
	}
}

func TestFile_NilAndClosed(t *testing.T) {
	var l *File
	l.Append("ignored")

	path := filepath.Join(t.TempDir(), "activity.log")
	f, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.Close()
	f.Append("after close")
	if f.Dropped() != 1 {
		t.Errorf("expected append after close to be dropped")
	}
}
