// Package note defines the core data model for the knowledge vault:
// documents, chunks, extracted items, and search results.
package note

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ChunkKind classifies the markdown construct a chunk was produced from.
type ChunkKind string

const (
	KindHeader     ChunkKind = "header"
	KindParagraph  ChunkKind = "paragraph"
	KindList       ChunkKind = "list"
	KindCode       ChunkKind = "code"
	KindBlockquote ChunkKind = "blockquote"
)

// TaskStatus is the lifecycle state of an extracted task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskDone      TaskStatus = "done"
	TaskCancelled TaskStatus = "cancelled"
)

// FactCategory classifies a personal fact extracted from notes.
type FactCategory string

const (
	FactPreference FactCategory = "preference"
	FactContact    FactCategory = "contact"
	FactDecision   FactCategory = "decision"
	FactGoal       FactCategory = "goal"
	FactOther      FactCategory = "other"
)

// ResultSource tags which search produced a result.
type ResultSource string

const (
	SourceVector ResultSource = "vector"
	SourceBM25   ResultSource = "bm25"
	SourceHybrid ResultSource = "hybrid"
)

// Document is a parsed markdown file from the vault.
type Document struct {
	ID          string            // DocumentID(relative path)
	Path        string            // Relative to vault root, forward slashes
	Title       string
	Content     string            // Raw markdown
	Checksum    string            // Checksum(content), change detection only
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Tags        []string
	Links       []string          // [[wikilink]] targets
	Frontmatter map[string]string
}

// Chunk is the atomic retrieval unit. Chunks are immutable once parsed;
// re-indexing a document replaces all of its chunks wholesale.
type Chunk struct {
	ID           string    // "<docID>:<index>"
	DocumentID   string
	DocumentPath string
	Index        int       // Zero-based position within the document
	Kind         ChunkKind
	Content      string
	HeaderPath   string    // Enclosing headers, e.g. "Projects > Mindvault"
	CharStart    int
	CharEnd      int
	Tags         []string
	Links        []string
	CreatedDate  string    // ISO date from frontmatter, if any
}

// Task is an action item extracted from a note.
type Task struct {
	ID          int64
	DocumentID  string
	Content     string
	Status      TaskStatus
	DueDate     *time.Time
	Priority    int
	CreatedAt   time.Time
	CompletedAt *time.Time
	SourceLine  int
}

// Reminder is a time-triggered note extracted from a document.
type Reminder struct {
	ID          int64
	DocumentID  string
	Content     string
	TriggerDate *time.Time
	Triggered   bool
	CreatedAt   time.Time
}

// Fact is a personal fact (preference, contact, decision, goal).
type Fact struct {
	ID          int64
	DocumentID  string
	Category    FactCategory
	Subject     string
	Content     string
	Confidence  float64
	ExtractedAt time.Time
}

// SearchResult pairs a chunk with a relevance score. Scores from the vector
// and lexical searches lie in [0,1]; fused scores are unbounded RRF sums.
// Results are transient and never persisted.
type SearchResult struct {
	Chunk  *Chunk
	Score  float64
	Source ResultSource
}

// QueryResult is the answer to a natural-language question.
type QueryResult struct {
	Query          string
	Answer         string
	Sources        []SearchResult
	Confidence     float64
	ProcessingTime time.Duration
}

// Briefing is the daily summary of due tasks and reminders.
type Briefing struct {
	Date      time.Time
	TasksDue  []Task
	Reminders []Reminder
	Summary   string
}

// DocumentID derives the stable document identifier from a vault-relative
// path. The truncation length is fixed; changing it invalidates every
// existing manifest and chunk ID.
func DocumentID(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(sum[:])[:16]
}

// Checksum computes the MD5 content hash compared against the manifest
// for change detection.
func Checksum(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// ChunkID builds the chunk identifier from its document and position.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s:%d", docID, index)
}
