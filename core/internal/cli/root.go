// Package cli wires the coldsnap commands.
package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"coldsnap/core/internal/version"
)

// exitError carries the automation exit contract through cobra:
// 0 all complete, 1 degraded, 2 failed.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coldsnap",
		Short:         "One-pass volatile evidence collection for live Linux hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewVersionCmd())

	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version.Version

	return cmd
}

// Execute runs the root command and maps its outcome to a process exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err == nil {
		return 0
	}
	var ee exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, err)
	return 2
}
