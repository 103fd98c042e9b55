package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldsnap/collectors"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadFullProfile(t *testing.T) {
	path := writeProfile(t, `
artifacts = ["running_processes", "network_connections"]
max_events = 500
skip_hashes = true
module_timeout = "45s"
scan_timeout = "5m"
output = "/var/forensics/bundle.json"
`)

	p, err := Load(path)
	require.NoError(t, err)
	assert.True(t, p.SkipHashes)
	assert.Equal(t, "/var/forensics/bundle.json", p.Output)

	scope, err := p.Scope()
	require.NoError(t, err)
	assert.Equal(t, []collectors.Kind{collectors.KindProcesses, collectors.KindNetwork}, scope.Kinds)
	assert.Equal(t, 500, scope.MaxEvents)
	assert.Equal(t, 45*time.Second, scope.ModuleTimeout)
	assert.Equal(t, 5*time.Minute, scope.ScanTimeout)
}

func TestEmptyArtifactsMeansAllKinds(t *testing.T) {
	p, err := Load(writeProfile(t, `max_events = 100`))
	require.NoError(t, err)
	scope, err := p.Scope()
	require.NoError(t, err)
	assert.Equal(t, collectors.AllKinds(), scope.Kinds)
}

func TestUnknownArtifactRejected(t *testing.T) {
	p, err := Load(writeProfile(t, `artifacts = ["registry_hives"]`))
	require.NoError(t, err)
	_, err = p.Scope()
	assert.Error(t, err)
}

func TestUnknownKeyRejected(t *testing.T) {
	_, err := Load(writeProfile(t, `max_event = 100`))
	assert.Error(t, err)
}

func TestBadDurationRejected(t *testing.T) {
	_, err := Load(writeProfile(t, `module_timeout = "soon"`))
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
