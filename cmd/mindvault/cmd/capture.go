package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newCaptureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture [text]",
		Short: "File a quick note into the vault inbox",
		Long: `Write a note into the vault's inbox/ directory and index it
immediately. With no arguments the text is read from stdin.

Examples:
  mindvault capture "call the dentist about the invoice"
  pbpaste | mindvault capture`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			a, err := newApp(cmd.Context(), appOptions{exclusive: true, requireEmbedder: true})
			if err != nil {
				return err
			}
			defer a.close()

			relPath, err := a.service.Capture(cmd.Context(), text, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Captured to %s\n", relPath)
			return nil
		},
	}
}
