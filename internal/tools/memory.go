package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/neurosurf/neurosurf/internal/memory"
)

const memorySearchLimit = 5

// MemoryStoreTool lets the agent save a fact for later sessions.
type MemoryStoreTool struct {
	mem memory.Repository
}

// NewMemoryStoreTool wraps a repository as a tool.
func NewMemoryStoreTool(mem memory.Repository) *MemoryStoreTool {
	return &MemoryStoreTool{mem: mem}
}

func (t *MemoryStoreTool) Name() string { return "memory_store" }

func (t *MemoryStoreTool) Description() string {
	return "Save a fact to long-term memory. Parameters: {\"text\": \"the fact to remember\"}"
}

func (t *MemoryStoreTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	text, err := stringParam(params, "text")
	if err != nil {
		return "", err
	}
	err = t.mem.AddConversation(ctx, &memory.Conversation{
		ThreadID: "memory",
		Role:     "note",
		Text:     text,
	})
	if err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	return "remembered", nil
}

// MemorySearchTool lets the agent recall stored facts and past conversations.
type MemorySearchTool struct {
	mem memory.Repository
}

// NewMemorySearchTool wraps a repository as a tool.
func NewMemorySearchTool(mem memory.Repository) *MemorySearchTool {
	return &MemorySearchTool{mem: mem}
}

func (t *MemorySearchTool) Name() string { return "memory_search" }

func (t *MemorySearchTool) Description() string {
	return "Search long-term memory for past conversations and visited pages. Parameters: {\"query\": \"keyword\"}"
}

func (t *MemorySearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, err := stringParam(params, "query")
	if err != nil {
		return "", err
	}

	var b strings.Builder

	turns, err := t.mem.SearchConversations(ctx, query, memorySearchLimit)
	if err != nil {
		return "", fmt.Errorf("search memory: %w", err)
	}
	for _, c := range turns {
		fmt.Fprintf(&b, "[%s] %s\n", c.Role, c.Text)
	}

	pages, err := t.mem.SearchPages(ctx, query, memorySearchLimit)
	if err != nil {
		return "", fmt.Errorf("search pages: %w", err)
	}
	for _, p := range pages {
		fmt.Fprintf(&b, "[page] %s: %s\n", p.URL, p.Summary)
	}

	if b.Len() == 0 {
		return "no matching memories", nil
	}
	return b.String(), nil
}
