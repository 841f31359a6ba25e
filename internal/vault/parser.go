package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/mindvault/mindvault/internal/note"
)

var (
	tagPattern      = regexp.MustCompile(`(?:^|\s)#([a-zA-Z][\w/-]*)`)
	wikilinkPattern = regexp.MustCompile(`\[\[([^\[\]|#]+)(?:#[^\[\]|]*)?(?:\|[^\[\]]*)?\]\]`)
)

// Parser turns markdown files into documents and retrieval chunks.
type Parser struct {
	md            goldmark.Markdown
	maxChunkChars int
	minChunkChars int
}

// NewParser creates a parser. maxChunkChars bounds chunk size (long blocks
// are split at paragraph or sentence boundaries); minChunkChars drops
// fragments too small to retrieve, headers excepted.
func NewParser(maxChunkChars, minChunkChars int) *Parser {
	return &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
		maxChunkChars: maxChunkChars,
		minChunkChars: minChunkChars,
	}
}

// Parse reads and parses one note file. relPath is vault-relative with
// forward slashes; it determines the stable document ID.
func (p *Parser) Parse(absPath, relPath string) (*note.Document, error) {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read note %s: %w", relPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat note %s: %w", relPath, err)
	}

	content := string(raw)
	frontmatter, _ := splitFrontmatter(content)

	doc := &note.Document{
		ID:          note.DocumentID(relPath),
		Path:        relPath,
		Content:     content,
		Checksum:    note.Checksum(raw),
		ModifiedAt:  info.ModTime(),
		Frontmatter: frontmatter,
	}

	doc.Title = p.title(content, relPath, frontmatter)
	doc.Tags = extractTags(content, frontmatter)
	doc.Links = extractWikilinks(content)
	if created, ok := frontmatter["created"]; ok {
		if t, err := time.Parse("2006-01-02", created); err == nil {
			doc.CreatedAt = t
		}
	}
	return doc, nil
}

// Chunk splits a parsed document into retrieval chunks by walking the
// goldmark AST. Each top-level block becomes one chunk tagged with its kind
// and the enclosing header breadcrumb; oversized blocks are split.
func (p *Parser) Chunk(doc *note.Document) []note.Chunk {
	_, bodyOffset := splitFrontmatter(doc.Content)
	body := doc.Content[bodyOffset:]
	source := []byte(body)

	root := p.md.Parser().Parse(text.NewReader(source))

	type piece struct {
		kind       note.ChunkKind
		content    string
		headerPath string
		start, end int
	}
	var pieces []piece

	// headerStack[level-1] holds the most recent heading at that level.
	var headerStack [6]string

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch v := n.(type) {
		case *ast.Heading:
			level := v.Level
			title := nodeText(v, source)
			if level >= 1 && level <= 6 {
				headerStack[level-1] = title
				for i := level; i < 6; i++ {
					headerStack[i] = ""
				}
			}
			start, end, ok := nodeSpan(v, source)
			if !ok {
				continue
			}
			pieces = append(pieces, piece{
				kind:       note.KindHeader,
				content:    title,
				headerPath: breadcrumb(headerStack[:]),
				start:      start + bodyOffset,
				end:        end + bodyOffset,
			})
		default:
			kind := blockKind(n)
			if kind == "" {
				continue
			}
			start, end, ok := nodeSpan(n, source)
			if !ok {
				continue
			}
			pieces = append(pieces, piece{
				kind:       kind,
				content:    strings.TrimRight(body[start:end], "\n"),
				headerPath: breadcrumb(headerStack[:]),
				start:      start + bodyOffset,
				end:        end + bodyOffset,
			})
		}
	}

	createdDate := doc.Frontmatter["created"]
	var chunks []note.Chunk
	for _, pc := range pieces {
		if pc.kind != note.KindHeader && len(pc.content) < p.minChunkChars {
			continue
		}
		for _, part := range splitLong(pc.content, p.maxChunkChars) {
			idx := len(chunks)
			chunks = append(chunks, note.Chunk{
				ID:           note.ChunkID(doc.ID, idx),
				DocumentID:   doc.ID,
				DocumentPath: doc.Path,
				Index:        idx,
				Kind:         pc.kind,
				Content:      part,
				HeaderPath:   pc.headerPath,
				CharStart:    pc.start,
				CharEnd:      pc.end,
				Tags:         extractTags(part, nil),
				Links:        extractWikilinks(part),
				CreatedDate:  createdDate,
			})
		}
	}
	return chunks
}

// title picks the document title: frontmatter, then first H1, then filename.
func (p *Parser) title(content, relPath string, frontmatter map[string]string) string {
	if t, ok := frontmatter["title"]; ok && t != "" {
		return t
	}
	_, offset := splitFrontmatter(content)
	source := []byte(content[offset:])
	root := p.md.Parser().Parse(text.NewReader(source))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			return nodeText(h, source)
		}
	}
	name := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	words := strings.Fields(strings.ReplaceAll(name, "-", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func blockKind(n ast.Node) note.ChunkKind {
	switch n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return note.KindParagraph
	case *ast.List:
		return note.KindList
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return note.KindCode
	case *ast.Blockquote:
		return note.KindBlockquote
	default:
		if strings.Contains(n.Kind().String(), "Table") {
			return note.KindParagraph
		}
		return ""
	}
}

// nodeSpan computes the source byte range covered by a node and its
// descendants. Lines() is only valid on block nodes; inline text carries
// its own segment.
func nodeSpan(n ast.Node, source []byte) (int, int, bool) {
	start, end := -1, -1
	update := func(s, e int) {
		if start == -1 || s < start {
			start = s
		}
		if e > end {
			end = e
		}
	}
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			update(t.Segment.Start, t.Segment.Stop)
			return ast.WalkContinue, nil
		}
		if c.Type() == ast.TypeBlock {
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				update(seg.Start, seg.Stop)
			}
		}
		return ast.WalkContinue, nil
	})
	if start == -1 {
		return 0, 0, false
	}
	return start, end, true
}

func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// breadcrumb joins the active headers, e.g. "Projects > Mindvault > Ideas".
func breadcrumb(stack []string) string {
	var parts []string
	for _, h := range stack {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}

// splitLong splits text exceeding max chars, preferring paragraph, then
// line, then sentence boundaries.
func splitLong(s string, max int) []string {
	if max <= 0 || len(s) <= max {
		return []string{s}
	}
	var out []string
	for len(s) > max {
		window := s[:max]
		cut := max
		if i := strings.LastIndex(window, "\n\n"); i > 0 {
			cut = i + 2
		} else if i := strings.LastIndex(window, "\n"); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndex(window, ". "); i > 0 {
			cut = i + 2
		}
		out = append(out, strings.TrimRight(s[:cut], "\n"))
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// splitFrontmatter returns the parsed YAML frontmatter and the byte offset
// where the markdown body begins. Documents without frontmatter return an
// empty map and offset 0.
func splitFrontmatter(content string) (map[string]string, int) {
	out := map[string]string{}
	if !strings.HasPrefix(content, "---\n") {
		return out, 0
	}
	end := strings.Index(content[4:], "\n---")
	if end < 0 {
		return out, 0
	}
	block := content[4 : 4+end]
	offset := 4 + end + len("\n---")
	if offset < len(content) && content[offset] == '\n' {
		offset++
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return out, offset
	}
	for k, v := range raw {
		switch t := v.(type) {
		case []any:
			var items []string
			for _, it := range t {
				items = append(items, fmt.Sprintf("%v", it))
			}
			out[k] = strings.Join(items, ",")
		default:
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out, offset
}

// extractTags collects #tags from content plus any frontmatter tags field.
func extractTags(content string, frontmatter map[string]string) []string {
	seen := map[string]struct{}{}
	var tags []string
	add := func(tag string) {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	for _, m := range tagPattern.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}
	if fm, ok := frontmatter["tags"]; ok {
		for _, t := range strings.Split(fm, ",") {
			add(t)
		}
	}
	sort.Strings(tags)
	return tags
}

// extractWikilinks collects [[wikilink]] targets, dropping aliases and
// heading anchors.
func extractWikilinks(content string) []string {
	seen := map[string]struct{}{}
	var links []string
	for _, m := range wikilinkPattern.FindAllStringSubmatch(content, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		links = append(links, target)
	}
	return links
}
