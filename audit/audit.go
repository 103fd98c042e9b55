// Package audit holds the append-only collection log that travels with the
// evidence bundle. Entries are never mutated or removed after append.
package audit

import (
	"fmt"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}

// Log is safe for concurrent use. Global order is append order; entries from
// a single source keep their relative order.
type Log struct {
	mu      sync.Mutex
	entries []Entry

	now func() time.Time
}

func NewLog() *Log {
	return &Log{now: func() time.Time { return time.Now().UTC() }}
}

func (l *Log) Infof(source, format string, args ...any) {
	l.append(LevelInfo, source, fmt.Sprintf(format, args...))
}

func (l *Log) Warnf(source, format string, args ...any) {
	l.append(LevelWarn, source, fmt.Sprintf(format, args...))
}

func (l *Log) Errorf(source, format string, args ...any) {
	l.append(LevelError, source, fmt.Sprintf(format, args...))
}

func (l *Log) append(level Level, source, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		Timestamp: l.now(),
		Level:     level,
		Source:    source,
		Message:   message,
	})
}

// Entries returns a copy of the log in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CountLevel returns the number of entries at the given level.
func (l *Log) CountLevel(level Level) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
