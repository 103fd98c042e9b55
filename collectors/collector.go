// Package collectors defines the collection contract shared by every
// artifact collector and the typed artifact model each one produces.
package collectors

import (
	"context"

	"coldsnap/audit"
	"coldsnap/evidence"
)

// Kind identifies one artifact family. The set is closed; the orchestrator
// iterates it generically.
type Kind string

const (
	KindSystemInfo  Kind = "system_info"
	KindProcesses   Kind = "running_processes"
	KindNetwork     Kind = "network_connections"
	KindPersistence Kind = "persistence_mechanisms"
	KindEventLogs   Kind = "event_logs"
	KindExecution   Kind = "execution_evidence"
)

// AllKinds returns every known kind in canonical order.
func AllKinds() []Kind {
	return []Kind{
		KindSystemInfo,
		KindProcesses,
		KindNetwork,
		KindPersistence,
		KindEventLogs,
		KindExecution,
	}
}

func ValidKind(k Kind) bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Status is the terminal state of one collector run.
type Status string

const (
	StatusComplete  Status = "complete"
	StatusTruncated Status = "truncated"
	StatusFailed    Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case StatusTruncated:
		return 1
	case StatusFailed:
		return 2
	default:
		return 0
	}
}

// WorstStatus folds statuses by severity: complete < truncated < failed.
func WorstStatus(statuses ...Status) Status {
	worst := StatusComplete
	for _, s := range statuses {
		if s.rank() > worst.rank() {
			worst = s
		}
	}
	return worst
}

// ProcessIndex maps pid to process name for the network collector's
// owning-process cross-reference. A nil index leaves those fields null.
type ProcessIndex map[int]string

// RunContext is the shared, read-only view a collector runs against. The
// audit log is the only mutable member and is internally synchronized.
type RunContext struct {
	Scope     Scope
	Log       *audit.Log
	Processes ProcessIndex
}

// FileHash applies the scan-wide hashing policy: nil when hashing is
// disabled, nil plus one WARN entry when a single file cannot be hashed.
// A per-item hash failure never fails the collector.
func (rc RunContext) FileHash(source, path string) *string {
	if rc.Scope.SkipHashes {
		return nil
	}
	h, err := evidence.HashFile(path)
	if err != nil {
		if rc.Log != nil {
			rc.Log.Warnf(source, "hash skipped: %v", err)
		}
		return nil
	}
	return &h
}

// Collector is one independently skippable, independently bounded unit of
// work. A returned error is converted to a Failed result at the
// orchestrator boundary; it never aborts sibling collectors.
type Collector interface {
	Kind() Kind
	Collect(ctx context.Context, rc RunContext) (*PartialResult, error)
}

// PartialResult is the tagged per-kind outcome: a status plus exactly one
// populated payload. Immutable once returned.
type PartialResult struct {
	Kind          Kind   `json:"-"`
	Status        Status `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`

	SystemInfo  *SystemInfo        `json:"system_info,omitempty"`
	Processes   []Process          `json:"processes,omitempty"`
	Connections []Connection       `json:"connections,omitempty"`
	Persistence []PersistenceEntry `json:"persistence,omitempty"`
	Events      *EventLogSet       `json:"events,omitempty"`
	Execution   *ExecutionEvidence `json:"execution,omitempty"`
}

// Failed builds the uniform failure result the orchestrator records when a
// collector errors, panics, or times out.
func Failed(kind Kind, reason string) *PartialResult {
	return &PartialResult{Kind: kind, Status: StatusFailed, FailureReason: reason}
}
