// Package agent implements the reasoning loop: it routes user commands to an
// Ollama-hosted model, extracts tool calls from the reply, executes them
// through the tool registry, and streams progress to the session.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// LLM is the model surface the agent loop depends on. Chat streams the reply
// through onChunk and returns the full text.
type LLM interface {
	Chat(ctx context.Context, messages []api.Message, onChunk func(string)) (string, error)
	Generate(ctx context.Context, system, prompt string) (string, error)
	Healthcheck(ctx context.Context) error
}

// OllamaClient implements LLM against a local or remote Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient builds a client for the given host and model.
func NewOllamaClient(host, model string) (*OllamaClient, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}
	return &OllamaClient{
		client: api.NewClient(base, httpClient),
		model:  model,
	}, nil
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string { return c.model }

// Chat runs one streaming chat turn.
func (c *OllamaClient) Chat(ctx context.Context, messages []api.Message, onChunk func(string)) (string, error) {
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   ptr(true),
	}

	var b strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			b.WriteString(resp.Message.Content)
			if onChunk != nil {
				onChunk(resp.Message.Content)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat request: %w", wrapOllamaError(err, c.model))
	}
	return b.String(), nil
}

// Generate runs one non-streaming completion, used for summaries.
func (c *OllamaClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := &api.GenerateRequest{
		Model:  c.model,
		System: system,
		Prompt: prompt,
		Stream: ptr(false),
	}

	var out string
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out += resp.Response
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate request: %w", wrapOllamaError(err, c.model))
	}
	return out, nil
}

// Healthcheck verifies the Ollama server is reachable. The SDK has no
// explicit ping, so List serves as one.
func (c *OllamaClient) Healthcheck(ctx context.Context) error {
	if _, err := c.client.List(ctx); err != nil {
		return wrapOllamaError(err, c.model)
	}
	return nil
}

// wrapOllamaError attaches actionable hints to common failure modes.
func wrapOllamaError(err error, model string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") {
		return fmt.Errorf("ollama server is not running (try: ollama serve): %w", err)
	}
	if strings.Contains(msg, "model") && strings.Contains(msg, "not found") {
		return fmt.Errorf("model %q is not installed (try: ollama pull %s): %w", model, model, err)
	}
	return err
}

func ptr[T any](v T) *T { return &v }
