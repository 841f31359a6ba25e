package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mindvault/mindvault/internal/note"
)

// MetadataStore persists the document manifest, chunk texts, extracted
// items, and the embedding cache in a single SQLite database.
type MetadataStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL,
	modified_at TIMESTAMP,
	indexed_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL,
	idx          INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	content      TEXT NOT NULL,
	header_path  TEXT NOT NULL DEFAULT '',
	char_start   INTEGER NOT NULL,
	char_end     INTEGER NOT NULL,
	tags         TEXT NOT NULL DEFAULT '',
	links        TEXT NOT NULL DEFAULT '',
	created_date TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

CREATE TABLE IF NOT EXISTS tasks (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id  TEXT NOT NULL,
	content      TEXT NOT NULL,
	status       TEXT NOT NULL,
	due_date     TIMESTAMP,
	priority     INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	source_line  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_document ON tasks(document_id);

CREATE TABLE IF NOT EXISTS reminders (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id  TEXT NOT NULL,
	content      TEXT NOT NULL,
	trigger_date TIMESTAMP,
	triggered    INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_document ON reminders(document_id);

CREATE TABLE IF NOT EXISTS facts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id  TEXT NOT NULL,
	category     TEXT NOT NULL,
	subject      TEXT NOT NULL,
	content      TEXT NOT NULL,
	confidence   REAL NOT NULL DEFAULT 0,
	extracted_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS embedding_cache (
	model        TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	vector       BLOB NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (model, content_hash)
);
`

// NewMetadataStore opens (creating if needed) the SQLite database at path.
func NewMetadataStore(path string) (*MetadataStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite serializes access; one connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -20000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &MetadataStore{db: db}, nil
}

// Close closes the database.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}

// GetAllDocumentChecksums returns the manifest: document ID to content
// checksum for every indexed document.
func (s *MetadataStore) GetAllDocumentChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("query manifest: %w", err)
	}
	defer rows.Close()

	manifest := make(map[string]string)
	for rows.Next() {
		var id, checksum string
		if err := rows.Scan(&id, &checksum); err != nil {
			return nil, err
		}
		manifest[id] = checksum
	}
	return manifest, rows.Err()
}

// UpsertDocument stores a document and replaces its chunks wholesale.
func (s *MetadataStore) UpsertDocument(ctx context.Context, doc *note.Document, chunks []note.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, path, title, checksum, modified_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			checksum = excluded.checksum,
			modified_at = excluded.modified_at,
			indexed_at = excluded.indexed_at`,
		doc.ID, doc.Path, doc.Title, doc.Checksum, doc.ModifiedAt, time.Now())
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.Path, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", doc.Path, err)
	}
	for _, c := range chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, idx, kind, content, header_path,
				char_start, char_end, tags, links, created_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.Index, string(c.Kind), c.Content, c.HeaderPath,
			c.CharStart, c.CharEnd, strings.Join(c.Tags, ","), strings.Join(c.Links, ","), c.CreatedDate)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteDocument removes a document and everything extracted from it.
func (s *MetadataStore) DeleteDocument(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"chunks", "tasks", "reminders", "facts", "documents"} {
		col := "document_id"
		if table == "documents" {
			col = "id"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, col), docID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// GetChunksByDocument returns a document's chunks in index order.
func (s *MetadataStore) GetChunksByDocument(ctx context.Context, docID string) ([]note.Chunk, error) {
	return s.queryChunks(ctx, `WHERE document_id = ? ORDER BY idx`, docID)
}

// AllChunks returns every chunk, ordered by document then index. This is
// the corpus handed to the lexical index on rebuild.
func (s *MetadataStore) AllChunks(ctx context.Context) ([]note.Chunk, error) {
	return s.queryChunks(ctx, `ORDER BY document_id, idx`)
}

func (s *MetadataStore) queryChunks(ctx context.Context, clause string, args ...any) ([]note.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, idx, kind, content, header_path,
			char_start, char_end, tags, links, created_date
		FROM chunks `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []note.Chunk
	for rows.Next() {
		var c note.Chunk
		var kind, tags, links string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &kind, &c.Content, &c.HeaderPath,
			&c.CharStart, &c.CharEnd, &tags, &links, &c.CreatedDate); err != nil {
			return nil, err
		}
		c.Kind = note.ChunkKind(kind)
		c.Tags = splitList(tags)
		c.Links = splitList(links)
		// Backfill the path from the documents table lazily would cost a
		// join per row; do it in one pass below.
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.fillDocumentPaths(ctx, chunks)
}

func (s *MetadataStore) fillDocumentPaths(ctx context.Context, chunks []note.Chunk) ([]note.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, path FROM documents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]string)
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, err
		}
		paths[id] = path
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].DocumentPath = paths[chunks[i].DocumentID]
	}
	return chunks, nil
}

// FindDocumentByTitleOrPath resolves a wikilink target to a document. The
// target may be a title, a path, or a path without extension.
func (s *MetadataStore) FindDocumentByTitleOrPath(ctx context.Context, target string) (*note.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, title, checksum FROM documents
		WHERE title = ? OR path = ? OR path = ? OR path LIKE ?
		LIMIT 1`,
		target, target, target+".md", "%/"+target+".md")

	var doc note.Document
	if err := row.Scan(&doc.ID, &doc.Path, &doc.Title, &doc.Checksum); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve link %q: %w", target, err)
	}
	return &doc, nil
}

// ChunksForLink resolves a wikilink target and returns up to limit leading
// chunks of the linked document. An unresolvable target is an error so
// callers can distinguish it from an empty document.
func (s *MetadataStore) ChunksForLink(ctx context.Context, target string, limit int) ([]note.Chunk, error) {
	doc, err := s.FindDocumentByTitleOrPath(ctx, target)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("link target %q not found", target)
	}
	return s.queryChunks(ctx, `WHERE document_id = ? ORDER BY idx LIMIT ?`, doc.ID, limit)
}

// DocumentCount returns the number of indexed documents.
func (s *MetadataStore) DocumentCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// ChunkCount returns the number of stored chunks.
func (s *MetadataStore) ChunkCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// ReplaceTasks replaces a document's tasks wholesale. Completed-at stamps
// survive for tasks whose content and status are unchanged.
func (s *MetadataStore) ReplaceTasks(ctx context.Context, docID string, tasks []note.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin task replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	now := time.Now()
	for _, task := range tasks {
		var completed *time.Time
		if task.Status == note.TaskDone {
			if task.CompletedAt != nil {
				completed = task.CompletedAt
			} else {
				completed = &now
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (document_id, content, status, due_date, priority, created_at, completed_at, source_line)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			docID, task.Content, string(task.Status), task.DueDate, task.Priority, now, completed, task.SourceLine)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
	}
	return tx.Commit()
}

// ListTasks returns tasks filtered by status ("" for all) and optional due
// cutoff, most urgent first.
func (s *MetadataStore) ListTasks(ctx context.Context, status note.TaskStatus, dueBefore *time.Time) ([]note.Task, error) {
	query := `
		SELECT id, document_id, content, status, due_date, priority, created_at, completed_at, source_line
		FROM tasks WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	if dueBefore != nil {
		query += ` AND due_date IS NOT NULL AND due_date <= ?`
		args = append(args, *dueBefore)
	}
	query += ` ORDER BY priority DESC, due_date IS NULL, due_date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []note.Task
	for rows.Next() {
		var t note.Task
		var st string
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.Content, &st, &t.DueDate,
			&t.Priority, &t.CreatedAt, &t.CompletedAt, &t.SourceLine); err != nil {
			return nil, err
		}
		t.Status = note.TaskStatus(st)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteTask marks a task done.
func (s *MetadataStore) CompleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?`,
		string(note.TaskDone), time.Now(), id)
	if err != nil {
		return fmt.Errorf("complete task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d not found", id)
	}
	return nil
}

// ReplaceReminders replaces a document's reminders wholesale.
func (s *MetadataStore) ReplaceReminders(ctx context.Context, docID string, reminders []note.Reminder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reminder replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("clear reminders: %w", err)
	}
	now := time.Now()
	for _, r := range reminders {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reminders (document_id, content, trigger_date, triggered, created_at)
			VALUES (?, ?, ?, 0, ?)`,
			docID, r.Content, r.TriggerDate, now)
		if err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
	}
	return tx.Commit()
}

// DueReminders returns untriggered reminders whose trigger date has passed.
func (s *MetadataStore) DueReminders(ctx context.Context, now time.Time) ([]note.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, trigger_date, triggered, created_at
		FROM reminders
		WHERE triggered = 0 AND trigger_date IS NOT NULL AND trigger_date <= ?
		ORDER BY trigger_date ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []note.Reminder
	for rows.Next() {
		var r note.Reminder
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Content, &r.TriggerDate, &r.Triggered, &r.CreatedAt); err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// MarkReminderTriggered records that a reminder fired.
func (s *MetadataStore) MarkReminderTriggered(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET triggered = 1 WHERE id = ?`, id)
	return err
}

// InsertFact stores an extracted personal fact.
func (s *MetadataStore) InsertFact(ctx context.Context, fact note.Fact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (document_id, category, subject, content, confidence, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fact.DocumentID, string(fact.Category), fact.Subject, fact.Content, fact.Confidence, time.Now())
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	return nil
}

// ListFacts returns facts, optionally filtered by category.
func (s *MetadataStore) ListFacts(ctx context.Context, category note.FactCategory) ([]note.Fact, error) {
	query := `SELECT id, document_id, category, subject, content, confidence, extracted_at FROM facts`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY extracted_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []note.Fact
	for rows.Next() {
		var f note.Fact
		var cat string
		if err := rows.Scan(&f.ID, &f.DocumentID, &cat, &f.Subject, &f.Content, &f.Confidence, &f.ExtractedAt); err != nil {
			return nil, err
		}
		f.Category = note.FactCategory(cat)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// GetEmbedding looks up a cached embedding by model and content hash.
func (s *MetadataStore) GetEmbedding(ctx context.Context, model, contentHash string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM embedding_cache WHERE model = ? AND content_hash = ?`,
		model, contentHash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query embedding cache: %w", err)
	}
	return decodeVector(blob), true, nil
}

// PutEmbedding stores an embedding. Last write wins; concurrent writers
// storing the same content produce identical vectors.
func (s *MetadataStore) PutEmbedding(ctx context.Context, model, contentHash string, vector []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (model, content_hash, vector, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(model, content_hash) DO UPDATE SET
			vector = excluded.vector, created_at = excluded.created_at`,
		model, contentHash, encodeVector(vector), time.Now())
	if err != nil {
		return fmt.Errorf("cache embedding: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
