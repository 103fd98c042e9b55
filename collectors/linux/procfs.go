// Package linux holds the collectors that read live Linux kernel state.
// Every collector takes an overridable root so tests run against fixtures.
package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// USER_HZ is fixed at 100 on every Linux target this tool builds for.
const clockTicksPerSecond = 100

// bootTime reads the kernel boot time (btime) from proc/stat.
func bootTime(procRoot string) (time.Time, error) {
	b, err := os.ReadFile(filepath.Join(procRoot, "stat"))
	if err != nil {
		return time.Time{}, err
	}
	for _, line := range strings.Split(string(b), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "btime" {
			sec, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return time.Time{}, err
			}
			return time.Unix(sec, 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("btime not present in %s", filepath.Join(procRoot, "stat"))
}

// procStat is the subset of proc/<pid>/stat a process artifact needs.
type procStat struct {
	comm       string
	ppid       int
	startTicks uint64
}

// parseProcStat handles the parenthesized comm field, which may itself
// contain spaces and parentheses.
func parseProcStat(raw string) (procStat, error) {
	lparen := strings.IndexByte(raw, '(')
	rparen := strings.LastIndexByte(raw, ')')
	if lparen < 0 || rparen < lparen {
		return procStat{}, fmt.Errorf("malformed stat line")
	}

	// Fields after comm, 1-based from field 3 (state). ppid is field 4,
	// starttime is field 22.
	rest := strings.Fields(raw[rparen+1:])
	if len(rest) < 20 {
		return procStat{}, fmt.Errorf("stat line too short: %d fields after comm", len(rest))
	}
	ppid, err := strconv.Atoi(rest[1])
	if err != nil {
		return procStat{}, fmt.Errorf("ppid: %w", err)
	}
	start, err := strconv.ParseUint(rest[19], 10, 64)
	if err != nil {
		return procStat{}, fmt.Errorf("starttime: %w", err)
	}
	return procStat{comm: raw[lparen+1 : rparen], ppid: ppid, startTicks: start}, nil
}

// procUID extracts the real uid from a proc/<pid>/status body.
func procUID(status string) (string, bool) {
	for _, line := range strings.Split(status, "\n") {
		if after, ok := strings.CutPrefix(line, "Uid:"); ok {
			fields := strings.Fields(after)
			if len(fields) > 0 {
				return fields[0], true
			}
		}
	}
	return "", false
}

func startTimeUTC(boot time.Time, ticks uint64) string {
	if boot.IsZero() {
		return ""
	}
	offset := time.Duration(ticks) * time.Second / clockTicksPerSecond
	return boot.Add(offset).UTC().Format(time.RFC3339)
}
