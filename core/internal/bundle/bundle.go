// Package bundle assembles collector outputs, scan metadata and the
// collection log into the single sealed evidence document for a scan.
package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"coldsnap/audit"
	"coldsnap/collectors"
	"coldsnap/evidence"
)

// Metadata describes one scan run.
type Metadata struct {
	ScanID         string    `json:"scan_id"`
	ScanStartUTC   time.Time `json:"scan_start_utc"`
	ScanDurationMS int64     `json:"scan_duration_ms"`
	Hostname       string    `json:"hostname"`
	OSVersion      string    `json:"os_version"`
	ToolVersion    string    `json:"tool_version"`
}

// Result is the frozen evidence bundle. It is assembled exactly once;
// nothing mutates it after Seal.
type Result struct {
	ScanMetadata  Metadata                                      `json:"scan_metadata"`
	Artifacts     map[collectors.Kind]*collectors.PartialResult `json:"artifacts"`
	CollectionLog []audit.Entry                                 `json:"collection_log"`
	Integrity     evidence.Record                               `json:"integrity"`
}

// Assemble merges the per-kind partial results and the shared audit log
// into one Result. Partial evidence is never discarded: a failed collector
// contributes its failure record like any other.
func Assemble(partials map[collectors.Kind]*collectors.PartialResult, log *audit.Log, meta Metadata) *Result {
	artifacts := make(map[collectors.Kind]*collectors.PartialResult, len(partials))
	for kind, pr := range partials {
		artifacts[kind] = pr
	}
	return &Result{
		ScanMetadata:  meta,
		Artifacts:     artifacts,
		CollectionLog: log.Entries(),
	}
}

// OverallStatus folds every collector's terminal state: a single failed
// collector degrades the bundle without suppressing it.
func (r *Result) OverallStatus() collectors.Status {
	statuses := make([]collectors.Status, 0, len(r.Artifacts))
	for _, pr := range r.Artifacts {
		statuses = append(statuses, pr.Status)
	}
	return collectors.WorstStatus(statuses...)
}

// Encode renders the canonical wire form. Map keys sort lexically and
// struct fields keep declaration order, so the same Result always encodes
// to byte-identical output.
func Encode(r *Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("bundle: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Seal computes the integrity record over the canonical encoding of the
// result with a zeroed integrity field, then freezes it into the result.
// An encode failure here is the one fatal error class: nothing usable can
// be emitted without a serializable bundle.
func Seal(r *Result) error {
	r.Integrity = evidence.Record{}
	raw, err := Encode(r)
	if err != nil {
		return err
	}
	r.Integrity = evidence.NewRecord(raw)
	return nil
}

// Verify re-derives the digest from a persisted bundle's frozen bytes and
// compares it against the embedded integrity record. Unknown members are
// rejected up front: the digest covers the canonical re-encoding, and a
// field the schema would silently drop is tampering it cannot see.
func Verify(raw []byte) error {
	var r Result
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return fmt.Errorf("bundle: decode: %w", err)
	}
	rec := r.Integrity
	if rec.Digest == "" {
		return fmt.Errorf("bundle: no integrity record present")
	}
	if rec.Algorithm != evidence.Algorithm {
		return fmt.Errorf("bundle: unsupported digest algorithm %q", rec.Algorithm)
	}

	r.Integrity = evidence.Record{}
	canonical, err := Encode(&r)
	if err != nil {
		return err
	}
	if got := evidence.Digest(canonical); got != rec.Digest {
		return fmt.Errorf("bundle: digest mismatch: recorded %s, computed %s", rec.Digest, got)
	}
	return nil
}
