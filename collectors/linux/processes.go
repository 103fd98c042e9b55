package linux

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"coldsnap/collectors"
)

// ProcessesCollector enumerates running processes from procfs. Individual
// processes that vanish mid-walk are skipped; only a failure to enumerate
// at all fails the collector.
type ProcessesCollector struct {
	ProcRoot string
}

func NewProcessesCollector() *ProcessesCollector { return &ProcessesCollector{ProcRoot: "/proc"} }

func (c *ProcessesCollector) Kind() collectors.Kind { return collectors.KindProcesses }

func (c *ProcessesCollector) Collect(ctx context.Context, rc collectors.RunContext) (*collectors.PartialResult, error) {
	source := string(c.Kind())

	entries, err := os.ReadDir(c.ProcRoot)
	if err != nil {
		return nil, fmt.Errorf("process enumeration: %w", err)
	}

	boot, err := bootTime(c.ProcRoot)
	if err != nil {
		rc.Log.Warnf(source, "boot time unavailable, start times omitted: %v", err)
	}

	var procs []collectors.Process
	seen := make(map[string]bool)
	interrupted := false

	for _, ent := range entries {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		pid, err := strconv.Atoi(ent.Name())
		if err != nil {
			continue
		}

		dir := filepath.Join(c.ProcRoot, ent.Name())
		statRaw, err := os.ReadFile(filepath.Join(dir, "stat"))
		if err != nil {
			continue // process exited mid-walk
		}
		st, err := parseProcStat(string(statRaw))
		if err != nil {
			rc.Log.Warnf(source, "pid %d: %v", pid, err)
			continue
		}

		p := collectors.Process{
			PID:          pid,
			PPID:         st.ppid,
			Name:         st.comm,
			StartTimeUTC: startTimeUTC(boot, st.startTicks),
		}

		if b, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
			p.CommandLine = strings.TrimSpace(strings.ReplaceAll(string(b), "\x00", " "))
		}
		if statusRaw, err := os.ReadFile(filepath.Join(dir, "status")); err == nil {
			if uid, ok := procUID(string(statusRaw)); ok {
				p.User = uid
				if u, err := user.LookupId(uid); err == nil {
					p.User = u.Username
				}
			}
		}
		if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil {
			p.ExecutablePath = exe
			p.SHA256 = rc.FileHash(source, exe)
		}

		if key := p.NaturalKey(); !seen[key] {
			seen[key] = true
			procs = append(procs, p)
		}
	}

	result := &collectors.PartialResult{
		Kind:      c.Kind(),
		Status:    collectors.StatusComplete,
		Processes: procs,
	}
	if interrupted {
		result.Status = collectors.StatusTruncated
		rc.Log.Warnf(source, "enumeration interrupted by deadline, %d processes captured", len(procs))
	}
	return result, nil
}
