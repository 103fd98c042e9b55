package audit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAppendOrder(t *testing.T) {
	l := NewLog()
	l.Infof("scan", "started")
	l.Warnf("event_logs", "12 entries dropped")
	l.Errorf("running_processes", "enumeration failed")

	entries := l.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, LevelInfo, entries[0].Level)
	require.Equal(t, LevelWarn, entries[1].Level)
	require.Equal(t, LevelError, entries[2].Level)
	require.Equal(t, "event_logs", entries[1].Source)
	require.Equal(t, "12 entries dropped", entries[1].Message)
	for _, e := range entries {
		require.False(t, e.Timestamp.IsZero())
		require.Equal(t, "UTC", e.Timestamp.Location().String())
	}
}

func TestLogConcurrentWritersLoseNothing(t *testing.T) {
	const writers = 16
	const perWriter = 200

	l := NewLog()
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			src := fmt.Sprintf("collector-%d", w)
			for i := 0; i < perWriter; i++ {
				l.Infof(src, "entry %d", i)
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, writers*perWriter, l.Len())

	// Per-source order must survive interleaving.
	next := make(map[string]int)
	for _, e := range l.Entries() {
		require.Equal(t, fmt.Sprintf("entry %d", next[e.Source]), e.Message)
		next[e.Source]++
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Infof("scan", "one")

	got := l.Entries()
	got[0].Message = "mutated"
	require.Equal(t, "one", l.Entries()[0].Message)
}

func TestCountLevel(t *testing.T) {
	l := NewLog()
	l.Infof("a", "x")
	l.Warnf("b", "y")
	l.Warnf("c", "z")
	require.Equal(t, 1, l.CountLevel(LevelInfo))
	require.Equal(t, 2, l.CountLevel(LevelWarn))
	require.Equal(t, 0, l.CountLevel(LevelError))
}
