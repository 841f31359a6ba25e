package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mindvault/mindvault/internal/ui"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			ui.NewRenderer(cmd.OutOrStdout()).Stats(stats)
			return nil
		},
	}
}
