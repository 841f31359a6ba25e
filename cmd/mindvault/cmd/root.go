// Package cmd implements the mindvault CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mindvault/mindvault/pkg/version"
)

var (
	flagVault   string
	flagDataDir string
	flagDebug   bool
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mindvault",
		Short: "Personal knowledge assistant over a markdown vault",
		Long: `Mindvault indexes a directory of markdown notes and answers questions
about them with hybrid retrieval (semantic + keyword) and a local model.

Everything runs on your machine: embeddings and generation go through
Ollama, storage is SQLite plus an on-disk vector index.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("mindvault version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagVault, "vault", "", "Vault directory (default: current directory)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default: ~/.mindvault)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newCaptureCmd())
	cmd.AddCommand(newTasksCmd())
	cmd.AddCommand(newFactsCmd())
	cmd.AddCommand(newBriefingCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print full version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
