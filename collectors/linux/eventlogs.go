package linux

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"coldsnap/collectors"
)

// defaultEventSources are the syslog-family files read when no explicit
// source list is configured, relative to the collector root.
var defaultEventSources = []string{
	"var/log/auth.log",
	"var/log/secure",
	"var/log/syslog",
	"var/log/messages",
}

// EventLogsCollector lifts entries from host log files under a scan-wide
// cap. The cap spans all source logs combined, not one cap per log.
type EventLogsCollector struct {
	Root    string
	Sources []string
}

func NewEventLogsCollector() *EventLogsCollector {
	return &EventLogsCollector{Root: "/", Sources: defaultEventSources}
}

func (c *EventLogsCollector) Kind() collectors.Kind { return collectors.KindEventLogs }

func (c *EventLogsCollector) Collect(ctx context.Context, rc collectors.RunContext) (*collectors.PartialResult, error) {
	source := string(c.Kind())
	set := &collectors.EventLogSet{}

	if rc.Scope.SkipEvents {
		rc.Log.Infof(source, "event log collection skipped by scope")
		return &collectors.PartialResult{
			Kind:   c.Kind(),
			Status: collectors.StatusComplete,
			Events: set,
		}, nil
	}

	limit := rc.Scope.MaxEvents
	capHitIn := ""
	interrupted := false
	readFailed := false

	for _, rel := range c.Sources {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		path := filepath.Join(c.Root, rel)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		set.Sources = append(set.Sources, rel)

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		seq := 0
		for sc.Scan() {
			seq++
			if limit > 0 && len(set.Entries) >= limit {
				if capHitIn == "" {
					capHitIn = rel
				}
				set.DroppedCount++
				continue
			}
			set.Entries = append(set.Entries, collectors.EventRecord{
				SourceLog: rel,
				Sequence:  seq,
				Message:   sc.Text(),
			})
		}
		if err := sc.Err(); err != nil {
			readFailed = true
			rc.Log.Warnf(source, "read of %s aborted after %d lines: %v", rel, seq, err)
		}
		f.Close()
	}

	status := collectors.StatusComplete
	if readFailed {
		status = collectors.StatusTruncated
	}
	if set.DroppedCount > 0 {
		status = collectors.WorstStatus(status, collectors.StatusTruncated)
		rc.Log.Warnf(source, "%d entries dropped: event cap %d reached in %s",
			set.DroppedCount, limit, capHitIn)
	}
	if interrupted {
		status = collectors.WorstStatus(status, collectors.StatusTruncated)
		rc.Log.Warnf(source, "log reads interrupted by deadline, %d entries captured", len(set.Entries))
	}
	if len(set.Sources) == 0 {
		rc.Log.Infof(source, "no event sources present on this host")
	}

	return &collectors.PartialResult{
		Kind:   c.Kind(),
		Status: status,
		Events: set,
	}, nil
}
