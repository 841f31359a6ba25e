package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mindvault/mindvault/internal/brain"
	"github.com/mindvault/mindvault/internal/index"
	"github.com/mindvault/mindvault/internal/note"
)

const snippetLength = 200

// Renderer writes formatted assistant output.
type Renderer struct {
	w      io.Writer
	styles Styles
}

// NewRenderer creates a renderer with TTY-appropriate styling for w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, styles: StylesFor(w)}
}

// SearchResults renders a ranked result list with snippets.
func (r *Renderer) SearchResults(results []note.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(r.w, "No matches.")
		return
	}
	for i, res := range results {
		header := r.styles.Path.Render(res.Chunk.DocumentPath)
		if res.Chunk.HeaderPath != "" {
			header += " " + r.styles.Section.Render("› "+res.Chunk.HeaderPath)
		}
		fmt.Fprintf(r.w, "%2d. %s %s\n", i+1, header,
			r.styles.Score.Render(fmt.Sprintf("(%.4f)", res.Score)))
		fmt.Fprintf(r.w, "    %s\n", snippet(res.Chunk.Content))
	}
}

// Answer renders a query result with its cited sources.
func (r *Renderer) Answer(result *note.QueryResult) {
	fmt.Fprintln(r.w, result.Answer)
	if len(result.Sources) == 0 {
		return
	}
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.styles.Dim.Render(strings.Repeat("-", 40)))
	fmt.Fprintf(r.w, "%s\n", r.styles.Header.Render("Sources"))
	for _, src := range result.Sources {
		line := "  " + r.styles.Path.Render(src.Chunk.DocumentPath)
		if src.Chunk.HeaderPath != "" {
			line += " " + r.styles.Section.Render("› "+src.Chunk.HeaderPath)
		}
		fmt.Fprintln(r.w, line)
	}
	fmt.Fprintf(r.w, "%s\n", r.styles.Score.Render(
		fmt.Sprintf("confidence %.0f%%, %s", result.Confidence*100, result.ProcessingTime.Round(time.Millisecond))))
}

// Tasks renders a task list.
func (r *Renderer) Tasks(tasks []note.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(r.w, "No tasks.")
		return
	}
	for _, t := range tasks {
		marker := "[ ]"
		switch t.Status {
		case note.TaskDone:
			marker = r.styles.Success.Render("[x]")
		case note.TaskCancelled:
			marker = r.styles.Dim.Render("[-]")
		}

		line := fmt.Sprintf("%s #%d %s", marker, t.ID, t.Content)
		if t.Priority > 0 {
			line += " " + r.styles.Warning.Render(strings.Repeat("!", t.Priority))
		}
		if t.DueDate != nil {
			due := t.DueDate.Format("2006-01-02")
			if t.Status == note.TaskPending && t.DueDate.Before(now) {
				line += " " + r.styles.Error.Render("overdue "+due)
			} else {
				line += " " + r.styles.Score.Render("due "+due)
			}
		}
		fmt.Fprintln(r.w, line)
	}
}

// Briefing renders the daily briefing.
func (r *Renderer) Briefing(b *note.Briefing) {
	fmt.Fprintln(r.w, r.styles.Header.Render(
		"Briefing for "+b.Date.Format("Monday, 2 January 2006")))

	if len(b.TasksDue) == 0 && len(b.Reminders) == 0 {
		fmt.Fprintln(r.w, "Nothing due today.")
		return
	}
	if b.Summary != "" {
		fmt.Fprintln(r.w, b.Summary)
	}
	if len(b.TasksDue) > 0 {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, r.styles.Header.Render("Tasks due"))
		r.Tasks(b.TasksDue, b.Date)
	}
	if len(b.Reminders) > 0 {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, r.styles.Header.Render("Reminders"))
		for _, rem := range b.Reminders {
			fmt.Fprintf(r.w, "  - %s\n", rem.Content)
		}
	}
}

// Facts renders extracted personal facts grouped by category.
func (r *Renderer) Facts(facts []note.Fact) {
	if len(facts) == 0 {
		fmt.Fprintln(r.w, "No facts recorded.")
		return
	}
	var current note.FactCategory
	for _, f := range facts {
		if f.Category != current {
			current = f.Category
			fmt.Fprintln(r.w, r.styles.Header.Render(string(current)))
		}
		line := "  - " + f.Content
		if f.Subject != "" {
			line = "  - " + r.styles.Path.Render(f.Subject) + ": " + f.Content
		}
		fmt.Fprintln(r.w, line)
	}
}

// SyncStats renders the outcome of a sync pass.
func (r *Renderer) SyncStats(stats index.SyncStats) {
	if !stats.Changed() {
		fmt.Fprintf(r.w, "Vault unchanged (%d documents, %s).\n",
			stats.Unchanged, stats.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(r.w, "%s %d added, %d updated, %d deleted (%s)\n",
		r.styles.Success.Render("Synced:"),
		stats.Added, stats.Updated, stats.Deleted,
		stats.Duration.Round(time.Millisecond))
}

// Stats renders index size counters.
func (r *Renderer) Stats(stats brain.Stats) {
	fmt.Fprintf(r.w, "Documents: %d\n", stats.Documents)
	fmt.Fprintf(r.w, "Chunks:    %d\n", stats.Chunks)
	fmt.Fprintf(r.w, "Vectors:   %d\n", stats.Vectors)
	fmt.Fprintf(r.w, "Tasks:     %d\n", stats.Tasks)
}

// Error renders an error message.
func (r *Renderer) Error(err error) {
	fmt.Fprintf(r.w, "%s %v\n", r.styles.Error.Render("Error:"), err)
}

func snippet(content string) string {
	s := strings.Join(strings.Fields(content), " ")
	if len(s) > snippetLength {
		s = s[:snippetLength] + "..."
	}
	return s
}
