package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mindvault/mindvault/internal/store"
	"github.com/mindvault/mindvault/internal/ui"
)

func newAskCmd() *cobra.Command {
	var pathPrefix string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your notes",
		Long: `Retrieve the most relevant notes, follow wikilinks one hop, and have
the local model answer from that context with cited sources.

Examples:
  mindvault ask "what did I decide about the kitchen renovation"
  mindvault ask "when is the passport appointment" --path life/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{requireEmbedder: true})
			if err != nil {
				return err
			}
			defer a.close()

			question := strings.Join(args, " ")
			result, err := a.service.Query(cmd.Context(), question,
				store.SearchFilter{PathPrefix: pathPrefix})
			if err != nil {
				return err
			}
			ui.NewRenderer(cmd.OutOrStdout()).Answer(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&pathPrefix, "path", "", "Restrict retrieval to notes under this vault subdirectory")
	return cmd
}
