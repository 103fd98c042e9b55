package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coldsnap/core/internal/bundle"
)

func NewVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify BUNDLE",
		Short: "Recompute a bundle's integrity digest and compare it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return exitError{code: 2, err: err}
			}
			if err := bundle.Verify(raw); err != nil {
				return exitError{code: 1, err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: integrity verified\n", args[0])
			return nil
		},
	}
}
