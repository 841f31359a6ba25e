package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mindvault/mindvault/internal/brain"
	"github.com/mindvault/mindvault/internal/index"
	"github.com/mindvault/mindvault/internal/note"
)

func plainRenderer() (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Renderer{w: &buf, styles: PlainStyles()}, &buf
}

func TestSearchResults(t *testing.T) {
	r, buf := plainRenderer()
	r.SearchResults([]note.SearchResult{
		{
			Chunk: &note.Chunk{
				DocumentPath: "projects/alpha.md",
				HeaderPath:   "Alpha > Plan",
				Content:      "The plan   spans\nmultiple lines of prose.",
			},
			Score: 0.0123,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "projects/alpha.md")
	assert.Contains(t, out, "Alpha > Plan")
	assert.Contains(t, out, "(0.0123)")
	// Snippets collapse whitespace.
	assert.Contains(t, out, "The plan spans multiple lines")
}

func TestSearchResultsEmpty(t *testing.T) {
	r, buf := plainRenderer()
	r.SearchResults(nil)
	assert.Contains(t, buf.String(), "No matches.")
}

func TestAnswerWithSources(t *testing.T) {
	r, buf := plainRenderer()
	r.Answer(&note.QueryResult{
		Answer: "Use the inbox.",
		Sources: []note.SearchResult{
			{Chunk: &note.Chunk{DocumentPath: "workflow.md"}, Score: 0.01},
		},
		Confidence:     0.8,
		ProcessingTime: 120 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "Use the inbox.")
	assert.Contains(t, out, "Sources")
	assert.Contains(t, out, "workflow.md")
	assert.Contains(t, out, "confidence 80%")
}

func TestTasksRendering(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	past := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	r, buf := plainRenderer()
	r.Tasks([]note.Task{
		{ID: 1, Content: "pay rent", Status: note.TaskPending, Priority: 2, DueDate: &past},
		{ID: 2, Content: "draft report", Status: note.TaskPending, DueDate: &future},
		{ID: 3, Content: "book flights", Status: note.TaskDone},
	}, now)

	out := buf.String()
	assert.Contains(t, out, "#1 pay rent !!")
	assert.Contains(t, out, "overdue 2026-08-20")
	assert.Contains(t, out, "due 2026-09-01")
	assert.Contains(t, out, "[x] #3 book flights")
}

func TestBriefingRendering(t *testing.T) {
	r, buf := plainRenderer()
	r.Briefing(&note.Briefing{
		Date:      time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
		Summary:   "One task and one reminder.",
		TasksDue:  []note.Task{{ID: 1, Content: "pay rent", Status: note.TaskPending}},
		Reminders: []note.Reminder{{Content: "renew passport"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Tuesday, 25 August 2026")
	assert.Contains(t, out, "One task and one reminder.")
	assert.Contains(t, out, "pay rent")
	assert.Contains(t, out, "renew passport")
}

func TestSyncStatsRendering(t *testing.T) {
	r, buf := plainRenderer()
	r.SyncStats(index.SyncStats{Added: 2, Updated: 1, Duration: 30 * time.Millisecond})
	assert.Contains(t, buf.String(), "2 added, 1 updated, 0 deleted")

	r2, buf2 := plainRenderer()
	r2.SyncStats(index.SyncStats{Unchanged: 5})
	assert.Contains(t, buf2.String(), "Vault unchanged (5 documents")
}

func TestStatsRendering(t *testing.T) {
	r, buf := plainRenderer()
	r.Stats(brain.Stats{Documents: 3, Chunks: 12, Vectors: 12, Tasks: 4})
	out := buf.String()
	for _, want := range []string{"Documents: 3", "Chunks:    12", "Vectors:   12", "Tasks:     4"} {
		assert.Contains(t, out, want)
	}
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	s := snippet(long)
	assert.LessOrEqual(t, len(s), snippetLength+3)
	assert.True(t, strings.HasSuffix(s, "..."))
}

func TestFactsRendering(t *testing.T) {
	r, buf := plainRenderer()
	r.Facts([]note.Fact{
		{Category: note.FactDecision, Subject: "kitchen", Content: "budget capped at 15000"},
		{Category: note.FactDecision, Content: "go with the local builder"},
		{Category: note.FactPreference, Content: "mornings are for deep work"},
	})
	out := buf.String()
	assert.Contains(t, out, "decision")
	assert.Contains(t, out, "kitchen: budget capped at 15000")
	assert.Contains(t, out, "preference")
	assert.Contains(t, out, "mornings are for deep work")
}

func TestFactsEmpty(t *testing.T) {
	r, buf := plainRenderer()
	r.Facts(nil)
	assert.Contains(t, buf.String(), "No facts recorded.")
}
