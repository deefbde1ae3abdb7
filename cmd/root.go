// Package cmd defines and implements the CLI commands for the litcrawler
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "litcrawler",
		Short: "A literature discovery and linking pipeline for drug terms.",
		Long: `litcrawler walks a literature search interface for each configured
drug term, resolves the discovered article links into structured records,
and persists them in Postgres linked to their drug identity. Progress is
checkpointed per term so interrupted runs resume where they left off.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./litcrawler.yaml)")

	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
