package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mindvault/mindvault/internal/ui"
)

func newBriefingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "briefing",
		Short: "Show today's briefing",
		Long: `Collect tasks due today, reminders that have come due, and a short
generated summary when the model is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			b, err := a.service.Briefing(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			ui.NewRenderer(cmd.OutOrStdout()).Briefing(b)
			return nil
		},
	}
}
