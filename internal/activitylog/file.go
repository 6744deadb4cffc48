// Package activitylog keeps a capped, append-only, line-oriented record of
// tracker milestones for operators.
package activitylog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultMaxBytes caps the log at 10 MiB.
const DefaultMaxBytes = 10 << 20

// File is an append-only activity log. Once the file reaches maxBytes further
// lines are dropped silently. Safe for concurrent use.
type File struct {
	mu       sync.Mutex
	f        *os.File
	size     int64
	maxBytes int64
	dropped  int64
	now      func() time.Time
}

// Options configure Open.
type Options struct {
	MaxBytes int64 // <= 0 uses DefaultMaxBytes
	Truncate bool  // clear the file on open
}

// Open opens or creates the activity log at path.
func Open(path string, opts Options) (*File, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if opts.Truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat activity log: %w", err)
	}

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &File{
		f:        f,
		size:     info.Size(),
		maxBytes: maxBytes,
		now:      time.Now,
	}, nil
}

// Printf appends one timestamped line.
func (l *File) Printf(format string, args ...interface{}) {
	l.Append(fmt.Sprintf(format, args...))
}

// Append writes "[RFC3339 timestamp] line\n". Embedded newlines are flattened.
func (l *File) Append(line string) {
	if l == nil {
		return
	}
	line = strings.ReplaceAll(line, "\n", " ")
	entry := "[" + l.now().UTC().Format(time.RFC3339) + "] " + line + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil || l.size >= l.maxBytes {
		l.dropped++
		return
	}
	n, err := l.f.WriteString(entry)
	l.size += int64(n)
	if err != nil {
		l.dropped++
	}
}

// Write implements io.Writer so the file can back a log.Logger.
func (l *File) Write(p []byte) (int, error) {
	l.Append(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Size returns the bytes written so far, including pre-existing content.
func (l *File) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Dropped returns how many lines were discarded.
func (l *File) Dropped() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close closes the underlying file. Later appends are dropped.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
