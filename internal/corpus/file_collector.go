package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileCollector reads corpus sections from a local directory tree:
// <root>/<competition_id>/<section>.md, one passage per blank-line
// separated paragraph.
//
// It is the reference Collector implementation for the binary; scraping
// backends plug in behind the same interface.
type FileCollector struct {
	root string
}

// NewFileCollector creates a collector rooted at dir.
func NewFileCollector(dir string) *FileCollector {
	return &FileCollector{root: dir}
}

// Collect reads and splits one section file. A missing file is an error;
// the manager reports the section unavailable and retries next request.
func (f *FileCollector) Collect(ctx context.Context, competitionID, section string) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.root, filepath.Clean(competitionID), section+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading section file: %w", err)
	}

	var passages []Passage
	for i, para := range splitParagraphs(string(data)) {
		passages = append(passages, Passage{
			ID:   fmt.Sprintf("%s_%s_%d", sanitize(competitionID), section, i),
			Text: para,
		})
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("section file %s is empty", path)
	}
	return passages, nil
}

// splitParagraphs splits text on blank lines, trimming whitespace and
// dropping empty chunks.
func splitParagraphs(text string) []string {
	var out []string
	for _, chunk := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

var _ Collector = (*FileCollector)(nil)
