package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"coldsnap/collectors"
	"coldsnap/core/internal/bundle"
	"coldsnap/core/internal/config"
	"coldsnap/core/internal/scan"
	"coldsnap/core/internal/version"
	"coldsnap/evidence"
)

func NewScanCmd() *cobra.Command {
	var artifacts []string
	var maxEvents int
	var skipHashes bool
	var skipEvents bool
	var moduleTimeout time.Duration
	var scanTimeout time.Duration
	var configPath string
	var output string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Collect volatile artifacts into a sealed evidence bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := config.Profile{
				Artifacts:     artifacts,
				MaxEvents:     maxEvents,
				SkipHashes:    skipHashes,
				SkipEvents:    skipEvents,
				ModuleTimeout: config.Duration(moduleTimeout),
				ScanTimeout:   config.Duration(scanTimeout),
				Output:        output,
			}
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return exitError{code: 2, err: err}
				}
				// Explicit flags override profile values.
				flags := cmd.Flags()
				if !flags.Changed("artifacts") && len(loaded.Artifacts) > 0 {
					profile.Artifacts = loaded.Artifacts
				}
				if !flags.Changed("max-events") {
					profile.MaxEvents = loaded.MaxEvents
				}
				if !flags.Changed("skip-hashes") {
					profile.SkipHashes = loaded.SkipHashes
				}
				if !flags.Changed("skip-events") {
					profile.SkipEvents = loaded.SkipEvents
				}
				if !flags.Changed("module-timeout") && loaded.ModuleTimeout != 0 {
					profile.ModuleTimeout = loaded.ModuleTimeout
				}
				if !flags.Changed("timeout") && loaded.ScanTimeout != 0 {
					profile.ScanTimeout = loaded.ScanTimeout
				}
				if !flags.Changed("output") && loaded.Output != "" {
					profile.Output = loaded.Output
				}
			}

			scope, err := profile.Scope()
			if err != nil {
				return exitError{code: 2, err: err}
			}

			logger := zerolog.Nop()
			if !quiet {
				logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
					With().Timestamp().Logger()
			}

			result, err := scan.Run(context.Background(), scan.Options{
				Scope:       scope,
				ToolVersion: version.Version,
				Logger:      logger,
			})
			if err != nil {
				// Serialization failure: nothing usable can be emitted.
				return exitError{code: 2, err: err}
			}

			raw, err := bundle.Encode(result)
			if err != nil {
				return exitError{code: 2, err: err}
			}
			if profile.Output == "-" {
				if _, err := os.Stdout.Write(raw); err != nil {
					return exitError{code: 2, err: err}
				}
			} else if err := evidence.WriteFileAtomic(profile.Output, raw, 0o600); err != nil {
				return exitError{code: 2, err: err}
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "scan=%s status=%s duration_ms=%d output=%s\n",
				result.ScanMetadata.ScanID, result.OverallStatus(),
				result.ScanMetadata.ScanDurationMS, profile.Output)

			if code := scan.ExitCode(result); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}

	kinds := make([]string, 0, len(collectors.AllKinds()))
	for _, k := range collectors.AllKinds() {
		kinds = append(kinds, string(k))
	}

	cmd.Flags().StringSliceVar(&artifacts, "artifacts", kinds,
		"Artifact kinds to collect")
	cmd.Flags().IntVar(&maxEvents, "max-events", 0,
		"Cap on event log entries across all logs combined (0 = uncapped)")
	cmd.Flags().BoolVar(&skipHashes, "skip-hashes", false,
		"Skip all file hashing")
	cmd.Flags().BoolVar(&skipEvents, "skip-events", false,
		"Skip event log collection entirely")
	cmd.Flags().DurationVar(&moduleTimeout, "module-timeout", 60*time.Second,
		"Per-collector deadline (0 = unbounded)")
	cmd.Flags().DurationVar(&scanTimeout, "timeout", 0,
		"Scan-level deadline, overrides per-collector deadlines (0 = unbounded)")
	cmd.Flags().StringVar(&configPath, "config", "",
		"TOML scan profile; explicit flags override it")
	cmd.Flags().StringVar(&output, "output", "./coldsnap-bundle.json",
		"Bundle destination path, or - for stdout")
	cmd.Flags().BoolVar(&quiet, "quiet", false,
		"Suppress progress diagnostics on stderr")
	return cmd
}
