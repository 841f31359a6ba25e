// Package mcp exposes the assistant over the Model Context Protocol so
// editor and chat clients can search, ask, capture, and list tasks.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mindvault/mindvault/internal/brain"
	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/store"
)

// Server wraps the MCP server around the assistant service.
type Server struct {
	mcp     *mcp.Server
	service *brain.Service
}

// NewServer creates the server and registers the tool set.
func NewServer(service *brain.Service, version string) *Server {
	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "mindvault",
			Version: version,
		}, nil),
		service: service,
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_notes",
		Description: "Hybrid search over the markdown vault. Returns the most relevant note passages with paths and scores.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ask_vault",
		Description: "Answer a question grounded in the vault. Retrieves relevant notes, follows wikilinks, and generates an answer with cited sources.",
	}, s.handleAsk)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "capture_note",
		Description: "File a quick note into the vault inbox and index it immediately.",
	}, s.handleCapture)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks extracted from checkbox items in notes, optionally filtered by status or due window.",
	}, s.handleTasks)

	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	k := input.MaxResults
	if k <= 0 {
		k = 10
	}
	filter := store.SearchFilter{Tags: input.Tags, PathPrefix: input.PathPrefix}

	results, err := s.service.Search(ctx, input.Query, k, filter)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
	}

	out := SearchOutput{Hits: make([]SearchHit, 0, len(results))}
	for _, r := range results {
		out.Hits = append(out.Hits, SearchHit{
			Path:    r.Chunk.DocumentPath,
			Section: r.Chunk.HeaderPath,
			Content: r.Chunk.Content,
			Score:   r.Score,
		})
	}
	out.Count = len(out.Hits)
	return nil, out, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	result, err := s.service.Query(ctx, input.Question, store.SearchFilter{})
	if err != nil {
		return nil, AskOutput{}, fmt.Errorf("query failed: %w", err)
	}

	out := AskOutput{
		Answer:     result.Answer,
		Confidence: result.Confidence,
		Sources:    make([]AskSource, 0, len(result.Sources)),
	}
	for _, src := range result.Sources {
		out.Sources = append(out.Sources, AskSource{
			Path:    src.Chunk.DocumentPath,
			Section: src.Chunk.HeaderPath,
			Score:   src.Score,
		})
	}
	return nil, out, nil
}

func (s *Server) handleCapture(ctx context.Context, _ *mcp.CallToolRequest, input CaptureInput) (*mcp.CallToolResult, CaptureOutput, error) {
	path, err := s.service.Capture(ctx, input.Text, time.Now())
	if err != nil {
		return nil, CaptureOutput{}, fmt.Errorf("capture failed: %w", err)
	}
	return nil, CaptureOutput{Path: path}, nil
}

func (s *Server) handleTasks(ctx context.Context, _ *mcp.CallToolRequest, input TasksInput) (*mcp.CallToolResult, TasksOutput, error) {
	var dueBefore *time.Time
	if input.DueWithin != "" {
		d, err := time.ParseDuration(input.DueWithin)
		if err != nil {
			return nil, TasksOutput{}, fmt.Errorf("invalid due_within %q: %w", input.DueWithin, err)
		}
		cutoff := time.Now().Add(d)
		dueBefore = &cutoff
	}

	tasks, err := s.service.Tasks(ctx, note.TaskStatus(input.Status), dueBefore)
	if err != nil {
		return nil, TasksOutput{}, fmt.Errorf("list tasks failed: %w", err)
	}

	out := TasksOutput{Tasks: make([]TaskItem, 0, len(tasks))}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, TaskItem{
			ID:       t.ID,
			Content:  t.Content,
			Status:   string(t.Status),
			Priority: t.Priority,
			DueDate:  t.DueDate,
		})
	}
	out.Count = len(out.Tasks)
	return nil, out, nil
}
