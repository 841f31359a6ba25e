package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/ui"
)

func newTasksCmd() *cobra.Command {
	var (
		status    string
		dueWithin string
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks extracted from notes",
		Long: `List checkbox items found in your notes, most urgent first.

Examples:
  mindvault tasks
  mindvault tasks --status pending --due-within 72h
  mindvault tasks done <id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var dueBefore *time.Time
			if dueWithin != "" {
				d, err := time.ParseDuration(dueWithin)
				if err != nil {
					return fmt.Errorf("invalid --due-within %q: %w", dueWithin, err)
				}
				cutoff := time.Now().Add(d)
				dueBefore = &cutoff
			}

			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			tasks, err := a.service.Tasks(cmd.Context(), note.TaskStatus(status), dueBefore)
			if err != nil {
				return err
			}
			ui.NewRenderer(cmd.OutOrStdout()).Tasks(tasks, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending, done, cancelled")
	cmd.Flags().StringVar(&dueWithin, "due-within", "", "Only tasks due within this duration (e.g. 72h)")

	cmd.AddCommand(&cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			a, err := newApp(cmd.Context(), appOptions{exclusive: true})
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.service.CompleteTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task #%d done.\n", id)
			return nil
		},
	})
	return cmd
}
