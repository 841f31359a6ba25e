package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mindvault/mindvault/internal/note"
)

const (
	// truncationReserve is the tail kept free when a chunk is cut, so the
	// ellipsis always fits under the budget.
	truncationReserve = 10

	// minPackChars is the threshold below which a partial chunk is not
	// worth emitting at all.
	minPackChars = 100

	packEllipsis = "..."
)

// PackedContext is the prompt-ready context assembled from search results.
type PackedContext struct {
	Text      string
	ChunkIDs  []string
	Truncated bool
}

// LinkResolver resolves a wikilink target to chunks of the linked
// document. Satisfied by store.MetadataStore.
type LinkResolver interface {
	ChunksForLink(ctx context.Context, target string, limit int) ([]note.Chunk, error)
}

// Packer assembles retrieval results into a model context under a token
// budget. The budget is enforced in characters using a fixed
// chars-per-token estimate; only chunk content counts against it, the
// per-document headers and separators are overhead on top.
type Packer struct {
	tokenBudget    int
	charsPerToken  float64
	includeHeaders bool
}

// PackerOption adjusts packer behavior.
type PackerOption func(*Packer)

// WithoutHeaderBreadcrumbs omits the [section] breadcrumb line above each
// chunk, leaving only document headers and raw content.
func WithoutHeaderBreadcrumbs() PackerOption {
	return func(p *Packer) { p.includeHeaders = false }
}

// NewPacker creates a packer. tokenBudget is the model context slice
// reserved for notes; charsPerToken converts it to characters (around 4
// for English prose).
func NewPacker(tokenBudget int, charsPerToken float64, opts ...PackerOption) *Packer {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	p := &Packer{tokenBudget: tokenBudget, charsPerToken: charsPerToken, includeHeaders: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Packer) charBudget() int {
	return int(float64(p.tokenBudget) * p.charsPerToken)
}

type docGroup struct {
	path   string
	chunks []note.SearchResult
}

// Build packs results into a single context string. Chunks are grouped by
// document in the order each document first appears in the result list,
// and within a document they follow note order rather than score, so the
// model sees coherent passages instead of shuffled fragments.
//
// When a chunk does not fit the remaining budget, packing stops: the chunk
// is truncated with an ellipsis if enough room remains to be useful,
// skipped otherwise, and nothing after it is emitted. Empty input yields
// an empty context.
func (p *Packer) Build(results []note.SearchResult) PackedContext {
	if len(results) == 0 {
		return PackedContext{Text: "", ChunkIDs: []string{}}
	}

	groups := make([]*docGroup, 0, len(results))
	byDoc := make(map[string]*docGroup, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		g, ok := byDoc[r.Chunk.DocumentID]
		if !ok {
			g = &docGroup{path: r.Chunk.DocumentPath}
			groups = append(groups, g)
			byDoc[r.Chunk.DocumentID] = g
		}
		g.chunks = append(g.chunks, r)
	}
	for _, g := range groups {
		sort.SliceStable(g.chunks, func(i, j int) bool {
			return g.chunks[i].Chunk.Index < g.chunks[j].Chunk.Index
		})
	}

	var (
		b         strings.Builder
		remaining = p.charBudget()
		chunkIDs  []string
		truncated bool
	)

pack:
	for _, g := range groups {
		wroteHeader := false
		for _, r := range g.chunks {
			content := r.Chunk.Content
			if len(content) > remaining {
				if remaining > minPackChars {
					cut := remaining - truncationReserve
					// Back up to a rune boundary so the cut never splits a
					// multi-byte character.
					for cut > 0 && !utf8.RuneStart(content[cut]) {
						cut--
					}
					if !wroteHeader {
						p.writeDocHeader(&b, g.path)
					}
					p.writeChunk(&b, r.Chunk, content[:cut]+packEllipsis)
					chunkIDs = append(chunkIDs, r.Chunk.ID)
					remaining = 0
				}
				truncated = true
				break pack
			}
			if !wroteHeader {
				p.writeDocHeader(&b, g.path)
				wroteHeader = true
			}
			p.writeChunk(&b, r.Chunk, content)
			chunkIDs = append(chunkIDs, r.Chunk.ID)
			remaining -= len(content)
		}
	}

	if chunkIDs == nil {
		chunkIDs = []string{}
	}
	return PackedContext{
		Text:      strings.TrimRight(b.String(), "\n"),
		ChunkIDs:  chunkIDs,
		Truncated: truncated,
	}
}

// BuildWithLinks expands the result pool one hop along outbound wikilinks
// before packing. Each link target not already represented contributes up
// to two chunks, scored below the chunk that linked them so direct hits
// keep priority, then the whole pool is re-sorted by score and packed.
func (p *Packer) BuildWithLinks(ctx context.Context, results []note.SearchResult, resolver LinkResolver) PackedContext {
	if resolver == nil || len(results) == 0 {
		return p.Build(results)
	}

	present := make(map[string]bool, len(results))
	presentDocs := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		present[r.Chunk.ID] = true
		presentDocs[r.Chunk.DocumentID] = true
	}

	pool := append([]note.SearchResult(nil), results...)
	seenTargets := make(map[string]bool)
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		for _, target := range r.Chunk.Links {
			key := strings.ToLower(target)
			if seenTargets[key] {
				continue
			}
			seenTargets[key] = true

			linked, err := resolver.ChunksForLink(ctx, target, 2)
			if err != nil {
				// Unresolvable links are normal; the note may not exist yet.
				continue
			}
			for i := range linked {
				c := linked[i]
				if present[c.ID] || presentDocs[c.DocumentID] {
					continue
				}
				present[c.ID] = true
				pool = append(pool, note.SearchResult{
					Chunk:  &c,
					Score:  r.Score / 2,
					Source: note.SourceHybrid,
				})
			}
		}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score > pool[j].Score
	})
	return p.Build(pool)
}

func (p *Packer) writeDocHeader(b *strings.Builder, path string) {
	fmt.Fprintf(b, "=== %s ===\n", path)
}

func (p *Packer) writeChunk(b *strings.Builder, c *note.Chunk, content string) {
	if p.includeHeaders && c.HeaderPath != "" {
		fmt.Fprintf(b, "[%s]\n", c.HeaderPath)
	}
	b.WriteString(content)
	b.WriteString("\n\n")
}
