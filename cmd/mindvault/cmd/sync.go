package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mindvault/mindvault/internal/ui"
)

func newSyncCmd() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index new and changed notes",
		Long: `Scan the vault and bring the index up to date: new notes are added,
edited notes re-indexed, deleted notes removed. Unchanged notes are not
touched, so repeated syncs are cheap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), appOptions{exclusive: true, requireEmbedder: true})
			if err != nil {
				return err
			}
			defer a.close()

			run := a.sync.Sync
			if rebuild {
				run = a.sync.Rebuild
			}
			stats, err := run(cmd.Context())
			if err != nil {
				return err
			}
			ui.NewRenderer(cmd.OutOrStdout()).SyncStats(stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Discard the index and re-index everything")
	return cmd
}
