// Package vault reads the markdown vault: walking it for note files and
// parsing notes into documents and retrieval chunks.
package vault

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ScanResult is one discovered note file.
type ScanResult struct {
	// RelPath is relative to the vault root, forward slashes.
	RelPath string
	AbsPath string
	Err     error
}

// Scanner walks a vault directory for markdown files.
type Scanner struct {
	root           string
	ignorePatterns []string
}

// NewScanner creates a scanner rooted at the vault directory.
// Ignore patterns use filepath.Match syntax against vault-relative paths;
// a pattern ending in "/*" excludes the whole directory subtree.
func NewScanner(root string, ignorePatterns []string) *Scanner {
	return &Scanner{root: root, ignorePatterns: ignorePatterns}
}

// Scan walks the vault and streams markdown files over the returned channel.
// The channel is closed when the walk finishes or ctx is cancelled. Hidden
// directories are always skipped.
func (s *Scanner) Scan(ctx context.Context) (<-chan ScanResult, error) {
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absRoot); err != nil {
		return nil, err
	}

	results := make(chan ScanResult)
	go func() {
		defer close(results)
		_ = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return filepath.SkipAll
			default:
			}
			if err != nil {
				results <- ScanResult{AbsPath: path, Err: err}
				return nil
			}

			rel, relErr := filepath.Rel(absRoot, path)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if rel == "." {
					return nil
				}
				if strings.HasPrefix(d.Name(), ".") || s.ignoredDir(rel) {
					return filepath.SkipDir
				}
				return nil
			}

			if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || s.ignored(rel) {
				return nil
			}

			select {
			case results <- ScanResult{RelPath: rel, AbsPath: path}:
			case <-ctx.Done():
				return filepath.SkipAll
			}
			return nil
		})
	}()
	return results, nil
}

// ScanAll collects every note path from a full walk, sorted by the walk order.
func (s *Scanner) ScanAll(ctx context.Context) ([]ScanResult, error) {
	ch, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	var out []ScanResult
	for r := range ch {
		if r.Err == nil {
			out = append(out, r)
		}
	}
	return out, ctx.Err()
}

func (s *Scanner) ignored(rel string) bool {
	base := filepath.Base(rel)
	for _, pat := range s.ignorePatterns {
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
		// Directory patterns like ".trash/*" also match deeper paths.
		if dir, ok := strings.CutSuffix(pat, "/*"); ok {
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
		}
	}
	return false
}

func (s *Scanner) ignoredDir(rel string) bool {
	for _, pat := range s.ignorePatterns {
		if dir, ok := strings.CutSuffix(pat, "/*"); ok {
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
		}
	}
	return false
}
