package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// DocumentWriter saves research reports as markdown into the exports
// directory.
type DocumentWriter struct {
	dir string
}

// NewDocumentWriter creates the exports directory if needed.
func NewDocumentWriter(dir string) (*DocumentWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &DocumentWriter{dir: dir}, nil
}

// Save writes a titled markdown document and returns its path. Filenames are
// slugged from the title with a timestamp so repeated topics never collide.
func (d *DocumentWriter) Save(title, body string) (string, error) {
	slug := slugRegexp.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "document"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	name := fmt.Sprintf("%s-%s.md", slug, time.Now().Format("20060102-150405"))
	path := filepath.Join(d.dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "_Generated %s_\n\n", time.Now().Format("2006-01-02 15:04"))
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

// DocumentTool exposes report export to the agent.
type DocumentTool struct {
	writer *DocumentWriter
}

// NewDocumentTool wraps a document writer as an agent tool.
func NewDocumentTool(writer *DocumentWriter) *DocumentTool {
	return &DocumentTool{writer: writer}
}

func (t *DocumentTool) Name() string { return "write_research_document" }

func (t *DocumentTool) Description() string {
	return "Save a research report to the exports folder. Parameters: {\"title\": \"...\", \"content\": \"markdown body\"}"
}

func (t *DocumentTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	title, err := stringParam(params, "title")
	if err != nil {
		return "", err
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return "", err
	}
	path, err := t.writer.Save(title, content)
	if err != nil {
		return "", err
	}
	return "saved " + path, nil
}
