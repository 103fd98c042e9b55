package collectors

import (
	"fmt"
	"time"
)

// Scope is the user-selected configuration for one scan. It is built once,
// then shared read-only by every collector for the scan's lifetime.
type Scope struct {
	// Kinds are the enabled artifact kinds.
	Kinds []Kind
	// MaxEvents caps event log entries across all source logs combined.
	// Zero means uncapped.
	MaxEvents int
	// SkipHashes disables all file hashing for the scan.
	SkipHashes bool
	// SkipEvents makes the event log collector return an empty set without
	// touching any source log.
	SkipEvents bool
	// ModuleTimeout bounds each collector individually. Zero disables it.
	ModuleTimeout time.Duration
	// ScanTimeout bounds the whole scan; on expiry all unfinished
	// collectors are cancelled and aggregation runs with what exists.
	ScanTimeout time.Duration
}

func (s Scope) Enabled(k Kind) bool {
	for _, enabled := range s.Kinds {
		if enabled == k {
			return true
		}
	}
	return false
}

func (s Scope) Validate() error {
	if len(s.Kinds) == 0 {
		return fmt.Errorf("scope: no artifact kinds enabled")
	}
	seen := make(map[Kind]bool, len(s.Kinds))
	for _, k := range s.Kinds {
		if !ValidKind(k) {
			return fmt.Errorf("scope: unknown artifact kind %q", k)
		}
		if seen[k] {
			return fmt.Errorf("scope: artifact kind %q enabled twice", k)
		}
		seen[k] = true
	}
	if s.MaxEvents < 0 {
		return fmt.Errorf("scope: max events must be non-negative, got %d", s.MaxEvents)
	}
	if s.ModuleTimeout < 0 || s.ScanTimeout < 0 {
		return fmt.Errorf("scope: timeouts must be non-negative")
	}
	return nil
}
