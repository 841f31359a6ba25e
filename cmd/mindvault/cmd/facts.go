package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/ui"
)

func newFactsCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "facts",
		Short: "List personal facts extracted from captured notes",
		Long: `List the facts (preferences, contacts, decisions, goals) the model
extracted from captured notes.

Examples:
  mindvault facts
  mindvault facts --category decision`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			facts, err := a.service.Facts(cmd.Context(), note.FactCategory(category))
			if err != nil {
				return err
			}
			sort.SliceStable(facts, func(i, j int) bool {
				return facts[i].Category < facts[j].Category
			})
			ui.NewRenderer(cmd.OutOrStdout()).Facts(facts)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by category: preference, contact, decision, goal, other")
	return cmd
}
