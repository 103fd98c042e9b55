package linux

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"coldsnap/collectors"
)

// tempDirs are the world-writable staging directories scanned for dropped
// executables, relative to the collector root.
var tempDirs = []string{"tmp", "var/tmp", "dev/shm"}

var historyFiles = []string{".bash_history", ".zsh_history", ".sh_history"}

// ExecutionCollector gathers evidence of what has been run on the host:
// per-user shell history plus executables staged in temp directories.
type ExecutionCollector struct {
	Root string
}

func NewExecutionCollector() *ExecutionCollector { return &ExecutionCollector{Root: "/"} }

func (c *ExecutionCollector) Kind() collectors.Kind { return collectors.KindExecution }

func (c *ExecutionCollector) Collect(ctx context.Context, rc collectors.RunContext) (*collectors.PartialResult, error) {
	source := string(c.Kind())
	ev := &collectors.ExecutionEvidence{}
	readFailed := false

	for _, home := range c.homeDirs() {
		if ctx.Err() != nil {
			break
		}
		user := filepath.Base(home)
		for _, hist := range historyFiles {
			path := filepath.Join(home, hist)
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			sc := bufio.NewScanner(f)
			pos := 0
			for sc.Scan() {
				line := sc.Text()
				if line == "" {
					continue
				}
				pos++
				ev.ShellHistory = append(ev.ShellHistory, collectors.HistoryEntry{
					User:        user,
					HistoryFile: path,
					Position:    pos,
					Command:     line,
				})
			}
			if err := sc.Err(); err != nil {
				readFailed = true
				rc.Log.Warnf(source, "read of %s aborted after %d commands: %v", path, pos, err)
			}
			f.Close()
		}
	}

	for _, dir := range tempDirs {
		if ctx.Err() != nil {
			break
		}
		root := filepath.Join(c.Root, dir)
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable subtree, keep walking siblings
			}
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
				return nil
			}
			ev.TempExecutables = append(ev.TempExecutables, collectors.TempExecutable{
				Path:        path,
				SizeBytes:   info.Size(),
				ModifiedUTC: info.ModTime().UTC().Format(time.RFC3339),
				SHA256:      rc.FileHash(source, path),
			})
			return nil
		})
	}

	status := collectors.StatusComplete
	if readFailed {
		status = collectors.StatusTruncated
	}
	if ctx.Err() != nil {
		status = collectors.StatusTruncated
		rc.Log.Warnf(source, "execution evidence walk interrupted by deadline")
	}
	return &collectors.PartialResult{
		Kind:      c.Kind(),
		Status:    status,
		Execution: ev,
	}, nil
}

func (c *ExecutionCollector) homeDirs() []string {
	homes := []string{filepath.Join(c.Root, "root")}
	if entries, err := os.ReadDir(filepath.Join(c.Root, "home")); err == nil {
		for _, ent := range entries {
			if ent.IsDir() {
				homes = append(homes, filepath.Join(c.Root, "home", ent.Name()))
			}
		}
	}
	return homes
}
