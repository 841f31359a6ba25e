package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mindvault/mindvault/internal/store"
	"github.com/mindvault/mindvault/internal/ui"
)

func newSearchCmd() *cobra.Command {
	var (
		limit      int
		tags       []string
		pathPrefix string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vault",
		Long: `Hybrid search over the vault: semantic similarity and keyword match,
fused into one ranking.

Examples:
  mindvault search "ideas for the garden"
  mindvault search "standing desk" --tag purchases --limit 5
  mindvault search "quarterly goals" --path work/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{requireEmbedder: true})
			if err != nil {
				return err
			}
			defer a.close()

			query := strings.Join(args, " ")
			filter := store.SearchFilter{Tags: tags, PathPrefix: pathPrefix}
			results, err := a.service.Search(cmd.Context(), query, limit, filter)
			if err != nil {
				return err
			}

			if jsonOut {
				type hit struct {
					Path    string  `json:"path"`
					Section string  `json:"section,omitempty"`
					Content string  `json:"content"`
					Score   float64 `json:"score"`
				}
				hits := make([]hit, 0, len(results))
				for _, r := range results {
					hits = append(hits, hit{
						Path:    r.Chunk.DocumentPath,
						Section: r.Chunk.HeaderPath,
						Content: r.Chunk.Content,
						Score:   r.Score,
					})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(hits)
			}

			ui.NewRenderer(cmd.OutOrStdout()).SearchResults(results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Restrict to notes with this tag (repeatable)")
	cmd.Flags().StringVar(&pathPrefix, "path", "", "Restrict to notes under this vault subdirectory")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}
