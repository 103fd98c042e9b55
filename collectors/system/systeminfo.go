// Package system collects the host identity record.
package system

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"coldsnap/collectors"
)

// InfoCollector produces the system_info artifact. Root is the filesystem
// root it reads under and exists so tests can point it at a fixture tree.
type InfoCollector struct {
	Root string
}

func NewInfoCollector() *InfoCollector { return &InfoCollector{Root: "/"} }

func (c *InfoCollector) Kind() collectors.Kind { return collectors.KindSystemInfo }

func (c *InfoCollector) Collect(ctx context.Context, rc collectors.RunContext) (*collectors.PartialResult, error) {
	_ = ctx

	info := &collectors.SystemInfo{Architecture: runtime.GOARCH}

	if h, err := os.Hostname(); err == nil {
		info.Hostname = h
	}
	if u, err := user.Current(); err == nil {
		info.CurrentUser = u.Username
	}

	release, err := c.readOSRelease()
	if err != nil {
		return nil, fmt.Errorf("system info: %w", err)
	}
	info.OSName = release["NAME"]
	info.OSVersion = release["PRETTY_NAME"]
	if info.OSVersion == "" {
		info.OSVersion = release["VERSION"]
	}

	if b, err := os.ReadFile(filepath.Join(c.Root, "proc", "sys", "kernel", "osrelease")); err == nil {
		info.KernelVersion = strings.TrimSpace(string(b))
	}
	if b, err := os.ReadFile(filepath.Join(c.Root, "proc", "uptime")); err == nil {
		if fields := strings.Fields(string(b)); len(fields) > 0 {
			if up, err := strconv.ParseFloat(fields[0], 64); err == nil {
				info.UptimeSeconds = int64(up)
				info.BootTimeUTC = time.Now().UTC().
					Add(-time.Duration(up * float64(time.Second))).
					Truncate(time.Second).
					Format(time.RFC3339)
			}
		}
	}

	return &collectors.PartialResult{
		Kind:       c.Kind(),
		Status:     collectors.StatusComplete,
		SystemInfo: info,
	}, nil
}

func (c *InfoCollector) readOSRelease() (map[string]string, error) {
	paths := []string{
		filepath.Join(c.Root, "etc", "os-release"),
		filepath.Join(c.Root, "usr", "lib", "os-release"),
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("os-release unavailable: %w", err)
	}

	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || key == "" {
			continue
		}
		out[key] = strings.Trim(value, `"`)
	}
	return out, nil
}
