package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const maxReadLines = 500

// blockedExtensions are never written through the workspace, no matter what
// the agent asks for.
var blockedExtensions = map[string]bool{
	".exe": true,
	".dll": true,
	".sys": true,
	".bat": true,
	".cmd": true,
}

// Entry describes one item in a directory listing.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Workspace provides filesystem access confined to a root directory. All
// paths are resolved relative to the root; escapes are rejected.
type Workspace struct {
	root string
}

// NewWorkspace creates the root directory if needed and returns a workspace.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// resolve maps a request path into the workspace, rejecting escapes.
func (w *Workspace) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + strings.TrimSpace(path))
	full := filepath.Join(w.root, cleaned)
	if full != w.root && !strings.HasPrefix(full, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return full, nil
}

// List returns the entries of a directory, directories first.
func (w *Workspace) List(path string) ([]Entry, error) {
	full, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		info, err := it.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:  it.Name(),
			IsDir: it.IsDir(),
			Size:  info.Size(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Read returns file content, truncated to maxReadLines lines.
func (w *Workspace) Read(path string) (string, error) {
	full, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(full)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lines := 0
	for scanner.Scan() {
		if lines >= maxReadLines {
			b.WriteString("... [truncated]\n")
			break
		}
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
		lines++
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return b.String(), nil
}

// Write stores file content, creating parent directories. Executable binary
// extensions are refused.
func (w *Workspace) Write(path, content string) error {
	if blockedExtensions[strings.ToLower(filepath.Ext(path))] {
		return fmt.Errorf("refusing to write %s file", filepath.Ext(path))
	}
	full, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Delete removes a single file. Directories are refused so one bad tool call
// cannot erase the workspace.
func (w *Workspace) Delete(path string) error {
	full, err := w.resolve(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("refusing to delete directory: %s", path)
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// FSTool exposes workspace access to the agent.
type FSTool struct {
	ws *Workspace
}

// NewFSTool wraps a workspace as an agent tool.
func NewFSTool(ws *Workspace) *FSTool {
	return &FSTool{ws: ws}
}

func (t *FSTool) Name() string { return "file" }

func (t *FSTool) Description() string {
	return "Read, write, list, or delete workspace files. Parameters: {\"action\": \"read|write|list|delete\", \"path\": \"notes.txt\", \"content\": \"...\"}"
}

func (t *FSTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	action, err := stringParam(params, "action")
	if err != nil {
		return "", err
	}
	path, err := stringParam(params, "path")
	if err != nil {
		return "", err
	}

	switch action {
	case "list":
		entries, err := t.ws.List(path)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, e := range entries {
			if e.IsDir {
				fmt.Fprintf(&b, "%s/\n", e.Name)
			} else {
				fmt.Fprintf(&b, "%s (%d bytes)\n", e.Name, e.Size)
			}
		}
		return b.String(), nil
	case "read":
		return t.ws.Read(path)
	case "write":
		content, err := stringParam(params, "content")
		if err != nil {
			return "", err
		}
		if err := t.ws.Write(path, content); err != nil {
			return "", err
		}
		return "wrote " + path, nil
	case "delete":
		if err := t.ws.Delete(path); err != nil {
			return "", err
		}
		return "deleted " + path, nil
	default:
		return "", fmt.Errorf("unknown file action: %s", action)
	}
}
