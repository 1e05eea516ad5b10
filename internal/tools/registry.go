// Package tools implements the agent's executable tool surface: shell
// commands, workspace filesystem access, arithmetic, web search and scrape,
// and research document export.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Tool executes one named capability with loosely-typed parameters.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// Registry holds the available tools by name.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Later registrations replace earlier ones.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the named tool, or nil if not registered.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool and returns its textual result.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	t := r.tools[name]
	if t == nil {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	slog.Debug("executing tool", "tool", name)
	out, err := t.Execute(ctx, params)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return out, nil
}

// Describe returns a prompt-ready listing of all tools.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, name := range r.Names() {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.tools[name].Description())
	}
	return b.String()
}

// stringParam extracts a required string parameter.
func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", key)
	}
	return s, nil
}
