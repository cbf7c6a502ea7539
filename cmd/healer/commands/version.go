package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeline/healer/internal/version"
)

// NewVersionCommand builds `healer version`.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the healer version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
			return nil
		},
	}
}
