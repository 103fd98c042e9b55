// Package config loads TOML scan profiles and turns them into a scope.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"coldsnap/collectors"
)

// Duration accepts Go duration strings ("90s", "2m") in TOML values.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Profile is one named scan configuration on disk. Flag values layered on
// top of a profile win; see the CLI.
type Profile struct {
	Artifacts     []string `toml:"artifacts"`
	MaxEvents     int      `toml:"max_events"`
	SkipHashes    bool     `toml:"skip_hashes"`
	SkipEvents    bool     `toml:"skip_events"`
	ModuleTimeout Duration `toml:"module_timeout"`
	ScanTimeout   Duration `toml:"scan_timeout"`
	Output        string   `toml:"output"`
}

func Load(path string) (Profile, error) {
	var p Profile
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: %w", err)
	}
	md, err := toml.Decode(string(b), &p)
	if err != nil {
		return p, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return p, fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
	}
	return p, nil
}

// Scope converts the profile into a validated collection scope. An empty
// artifacts list means every kind.
func (p Profile) Scope() (collectors.Scope, error) {
	kinds := make([]collectors.Kind, 0, len(p.Artifacts))
	for _, a := range p.Artifacts {
		kinds = append(kinds, collectors.Kind(a))
	}
	if len(kinds) == 0 {
		kinds = collectors.AllKinds()
	}

	scope := collectors.Scope{
		Kinds:         kinds,
		MaxEvents:     p.MaxEvents,
		SkipHashes:    p.SkipHashes,
		SkipEvents:    p.SkipEvents,
		ModuleTimeout: time.Duration(p.ModuleTimeout),
		ScanTimeout:   time.Duration(p.ScanTimeout),
	}
	if err := scope.Validate(); err != nil {
		return collectors.Scope{}, err
	}
	return scope, nil
}
