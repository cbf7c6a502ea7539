package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeline/healer/cmd/healer/commands"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "healer",
		Short: "Clone a repo, run its tests, and drive it to green",
		Long: "healer clones a repository, runs its test suite, classifies any\n" +
			"failures, synthesizes fixes, pushes a healing branch, and watches\n" +
			"CI until the repo passes, a budget is exhausted, or the run is\n" +
			"quarantined.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		commands.NewRunCommand(),
		commands.NewServeCommand(),
		commands.NewStatusCommand(),
		commands.NewVersionCommand(),
	)

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
