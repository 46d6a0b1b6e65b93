// Package cmd implements staffctl, the operator CLI for schema migrations and
// manual event injection.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "staffctl",
		Short:         "Operate the employee, project and assignment services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newEventsCommand())
	return root
}

func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
