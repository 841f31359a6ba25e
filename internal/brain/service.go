// Package brain is the assistant service layer: question answering over
// the vault, quick capture, task and briefing queries, and the scheduler
// that drives reminders.
package brain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mindvault/mindvault/internal/index"
	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/search"
	"github.com/mindvault/mindvault/internal/store"
)

// Answerer generates answers from packed context. Satisfied by llm.Client.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question, packedContext string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// FactExtractor pulls structured personal facts out of a note. Optional:
// an Answerer that also implements it gets fact extraction on capture.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, docID, content string) ([]note.Fact, error)
}

// Stats reports index size for the stats command and MCP clients.
type Stats struct {
	Documents int
	Chunks    int
	Vectors   int
	Tasks     int
}

// Service ties retrieval, packing, and generation together.
type Service struct {
	retriever *search.Retriever
	packer    *search.Packer
	metadata  *store.MetadataStore
	vectors   store.VectorStore
	answerer  Answerer
	sync      *index.Synchronizer
	vaultRoot string

	maxResults int
	rrfK       int
	weightSum  float64
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Retriever  *search.Retriever
	Packer     *search.Packer
	Metadata   *store.MetadataStore
	Vectors    store.VectorStore
	Answerer   Answerer
	Sync       *index.Synchronizer
	VaultRoot  string
	MaxResults int
	RRFK       int
	WeightSum  float64
}

// NewService creates the assistant service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = search.DefaultRRFConstant
	}
	if cfg.WeightSum <= 0 {
		cfg.WeightSum = 1.0
	}
	return &Service{
		retriever:  cfg.Retriever,
		packer:     cfg.Packer,
		metadata:   cfg.Metadata,
		vectors:    cfg.Vectors,
		answerer:   cfg.Answerer,
		sync:       cfg.Sync,
		vaultRoot:  cfg.VaultRoot,
		maxResults: cfg.MaxResults,
		rrfK:       cfg.RRFK,
		weightSum:  cfg.WeightSum,
	}
}

// Search runs hybrid retrieval without generation.
func (s *Service) Search(ctx context.Context, query string, k int, filter store.SearchFilter) ([]note.SearchResult, error) {
	if k <= 0 || k > s.maxResults {
		k = s.maxResults
	}
	return s.retriever.Retrieve(ctx, query, k, filter)
}

// Query answers a question grounded in the vault: retrieve, expand links,
// pack under the token budget, generate.
func (s *Service) Query(ctx context.Context, question string, filter store.SearchFilter) (*note.QueryResult, error) {
	start := time.Now()

	results, err := s.retriever.Retrieve(ctx, question, s.maxResults, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	packed := s.packer.BuildWithLinks(ctx, results, s.metadata)
	answer, err := s.answerer.AnswerQuestion(ctx, question, packed.Text)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &note.QueryResult{
		Query:          question,
		Answer:         answer,
		Sources:        results,
		Confidence:     s.confidence(results),
		ProcessingTime: time.Since(start),
	}, nil
}

// confidence maps the top fused score into [0,1]. The ceiling is the score
// of a chunk ranked first in both lists, so a double first-place hit
// reports full confidence.
func (s *Service) confidence(results []note.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	ceiling := s.weightSum / float64(s.rrfK+1)
	c := results[0].Score / ceiling
	if c > 1 {
		c = 1
	}
	return c
}

// Capture writes a quick note into the vault inbox and syncs it so it is
// immediately searchable. Returns the vault-relative path.
func (s *Service) Capture(ctx context.Context, text string, now time.Time) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("nothing to capture")
	}

	relPath := fmt.Sprintf("inbox/%s.md", now.Format("2006-01-02-150405"))
	absPath := filepath.Join(s.vaultRoot, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create inbox: %w", err)
	}

	content := fmt.Sprintf("---\ncreated: %s\ntags: inbox\n---\n\n%s\n",
		now.Format("2006-01-02"), strings.TrimSpace(text))
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}

	if _, err := s.sync.Sync(ctx); err != nil {
		// The note is on disk; the next sync will pick it up.
		slog.Warn("capture written but sync failed", "path", relPath, "error", err)
	}
	s.extractFacts(ctx, note.DocumentID(relPath), text)
	return relPath, nil
}

// extractFacts runs best-effort fact extraction on a captured note. A
// failure never fails the capture.
func (s *Service) extractFacts(ctx context.Context, docID, content string) {
	extractor, ok := s.answerer.(FactExtractor)
	if !ok {
		return
	}
	facts, err := extractor.ExtractFacts(ctx, docID, content)
	if err != nil {
		slog.Warn("fact extraction failed", "doc_id", docID, "error", err)
		return
	}
	for _, f := range facts {
		if err := s.metadata.InsertFact(ctx, f); err != nil {
			slog.Warn("store fact failed", "doc_id", docID, "error", err)
		}
	}
}

// Facts lists stored facts, optionally filtered by category.
func (s *Service) Facts(ctx context.Context, category note.FactCategory) ([]note.Fact, error) {
	return s.metadata.ListFacts(ctx, category)
}

// Sync runs one incremental vault sync.
func (s *Service) Sync(ctx context.Context) (index.SyncStats, error) {
	return s.sync.Sync(ctx)
}

// Rebuild reindexes the vault from scratch.
func (s *Service) Rebuild(ctx context.Context) (index.SyncStats, error) {
	return s.sync.Rebuild(ctx)
}

// Tasks lists extracted tasks, optionally by status and due cutoff.
func (s *Service) Tasks(ctx context.Context, status note.TaskStatus, dueBefore *time.Time) ([]note.Task, error) {
	return s.metadata.ListTasks(ctx, status, dueBefore)
}

// CompleteTask marks a task done by id.
func (s *Service) CompleteTask(ctx context.Context, id int64) error {
	return s.metadata.CompleteTask(ctx, id)
}

// Briefing assembles the daily summary for the given date: pending tasks
// due by end of day, untriggered reminders that have come due, and a short
// generated digest when a model is reachable.
func (s *Service) Briefing(ctx context.Context, date time.Time) (*note.Briefing, error) {
	endOfDay := time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, 0, date.Location())

	tasks, err := s.metadata.ListTasks(ctx, note.TaskPending, &endOfDay)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	reminders, err := s.metadata.DueReminders(ctx, endOfDay)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}

	b := &note.Briefing{Date: date, TasksDue: tasks, Reminders: reminders}
	if len(tasks) == 0 && len(reminders) == 0 {
		return b, nil
	}

	var sb strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&sb, "- task: %s\n", t.Content)
	}
	for _, r := range reminders {
		fmt.Fprintf(&sb, "- reminder: %s\n", r.Content)
	}
	summary, err := s.answerer.Summarize(ctx, sb.String())
	if err != nil {
		// Briefings degrade to the raw lists when the model is down.
		slog.Warn("briefing summary unavailable", "error", err)
		return b, nil
	}
	b.Summary = summary
	return b, nil
}

// Stats reports store sizes.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	docs, err := s.metadata.DocumentCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	chunks, err := s.metadata.ChunkCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	tasks, err := s.metadata.ListTasks(ctx, "", nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents: docs,
		Chunks:    chunks,
		Vectors:   s.vectors.Count(),
		Tasks:     len(tasks),
	}, nil
}
