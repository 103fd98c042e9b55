package linux

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"coldsnap/collectors"
)

// PersistenceCollector inventories autostart mechanisms: system crontabs,
// admin-installed systemd units, rc.local and profile.d hooks. Sources are
// recorded relative to Root so bundles compare across hosts.
type PersistenceCollector struct {
	Root string
}

func NewPersistenceCollector() *PersistenceCollector { return &PersistenceCollector{Root: "/"} }

func (c *PersistenceCollector) Kind() collectors.Kind { return collectors.KindPersistence }

func (c *PersistenceCollector) Collect(ctx context.Context, rc collectors.RunContext) (*collectors.PartialResult, error) {
	source := string(c.Kind())

	if _, err := os.Stat(filepath.Join(c.Root, "etc")); err != nil {
		return nil, fmt.Errorf("persistence sources unavailable: %w", err)
	}

	var entries []collectors.PersistenceEntry
	seen := make(map[string]bool)
	add := func(e collectors.PersistenceEntry) {
		e.IsSuspicious, e.SuspicionReasons = Classify(e.Command, e.Source)
		if key := e.NaturalKey(); !seen[key] {
			seen[key] = true
			entries = append(entries, e)
		}
	}

	c.collectCrontabs(rc, add)
	c.collectSystemdUnits(rc, add)
	c.collectRCLocal(add)
	c.collectProfileHooks(rc, add)

	status := collectors.StatusComplete
	if ctx.Err() != nil {
		status = collectors.StatusTruncated
		rc.Log.Warnf(source, "persistence walk interrupted by deadline, %d entries captured", len(entries))
	}
	return &collectors.PartialResult{
		Kind:        c.Kind(),
		Status:      status,
		Persistence: entries,
	}, nil
}

func (c *PersistenceCollector) collectCrontabs(rc collectors.RunContext, add func(collectors.PersistenceEntry)) {
	rels := []string{"etc/crontab"}
	if dir, err := os.ReadDir(filepath.Join(c.Root, "etc", "cron.d")); err == nil {
		for _, ent := range dir {
			if !ent.IsDir() {
				rels = append(rels, path.Join("etc/cron.d", ent.Name()))
			}
		}
	}

	for _, rel := range rels {
		b, err := os.ReadFile(filepath.Join(c.Root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		for i, line := range strings.Split(string(b), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			cmd, ok := cronCommand(line)
			if !ok {
				continue
			}
			add(collectors.PersistenceEntry{
				Mechanism: "cron",
				Source:    rel,
				Name:      fmt.Sprintf("line %d", i+1),
				Command:   cmd,
			})
		}
	}
}

// cronCommand strips the schedule and user columns of a system crontab line.
func cronCommand(line string) (string, bool) {
	fields := strings.Fields(line)
	if strings.HasPrefix(line, "@") {
		// @reboot user command...
		if len(fields) < 3 {
			return "", false
		}
		return strings.Join(fields[2:], " "), true
	}
	// m h dom mon dow user command...
	if len(fields) < 7 {
		return "", false
	}
	return strings.Join(fields[6:], " "), true
}

func (c *PersistenceCollector) collectSystemdUnits(rc collectors.RunContext, add func(collectors.PersistenceEntry)) {
	const rel = "etc/systemd/system"
	unitDir := filepath.Join(c.Root, filepath.FromSlash(rel))
	dir, err := os.ReadDir(unitDir)
	if err != nil {
		return
	}
	for _, ent := range dir {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".service") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(unitDir, ent.Name()))
		if err != nil {
			continue
		}
		cmd := ""
		for _, line := range strings.Split(string(b), "\n") {
			if after, ok := strings.CutPrefix(strings.TrimSpace(line), "ExecStart="); ok {
				cmd = after
				break
			}
		}
		add(collectors.PersistenceEntry{
			Mechanism: "systemd_unit",
			Source:    rel,
			Name:      ent.Name(),
			Command:   cmd,
			SHA256:    rc.FileHash(string(c.Kind()), filepath.Join(unitDir, ent.Name())),
		})
	}
}

func (c *PersistenceCollector) collectRCLocal(add func(collectors.PersistenceEntry)) {
	const rel = "etc/rc.local"
	b, err := os.ReadFile(filepath.Join(c.Root, filepath.FromSlash(rel)))
	if err != nil {
		return
	}
	for i, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || line == "exit 0" {
			continue
		}
		add(collectors.PersistenceEntry{
			Mechanism: "rc_local",
			Source:    rel,
			Name:      fmt.Sprintf("line %d", i+1),
			Command:   line,
		})
	}
}

func (c *PersistenceCollector) collectProfileHooks(rc collectors.RunContext, add func(collectors.PersistenceEntry)) {
	const rel = "etc/profile.d"
	hookDir := filepath.Join(c.Root, filepath.FromSlash(rel))
	dir, err := os.ReadDir(hookDir)
	if err != nil {
		return
	}
	for _, ent := range dir {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".sh") {
			continue
		}
		add(collectors.PersistenceEntry{
			Mechanism: "shell_profile",
			Source:    rel,
			Name:      ent.Name(),
			SHA256:    rc.FileHash(string(c.Kind()), filepath.Join(hookDir, ent.Name())),
		})
	}
}

// Classify applies the deterministic suspicion rules to one persistence
// entry. Same inputs always yield the same tag and reasons.
func Classify(command, source string) (bool, []string) {
	var reasons []string
	haystack := command + " " + source

	// /var/tmp before /tmp so the reason names the more specific prefix.
	for _, p := range []string{"/var/tmp/", "/dev/shm/", "/tmp/"} {
		if strings.Contains(haystack, p) {
			reasons = append(reasons, "references world-writable path "+strings.TrimSuffix(p, "/"))
			break
		}
	}
	if strings.Contains(haystack, "/.") {
		reasons = append(reasons, "hidden path component")
	}
	if (strings.Contains(command, "curl ") || strings.Contains(command, "wget ")) &&
		(strings.Contains(command, "| sh") || strings.Contains(command, "|sh") ||
			strings.Contains(command, "| bash") || strings.Contains(command, "|bash")) {
		reasons = append(reasons, "downloads and pipes to shell")
	}
	if strings.Contains(command, "base64 -d") || strings.Contains(command, "base64 --decode") {
		reasons = append(reasons, "decodes base64 payload")
	}

	return len(reasons) > 0, reasons
}
