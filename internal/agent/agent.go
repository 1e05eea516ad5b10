package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/neurosurf/neurosurf/internal/memory"
	"github.com/neurosurf/neurosurf/internal/tools"
)

const (
	maxIterations   = 15
	historyLimit    = 6
	toolResultLimit = 500
)

// Emitter receives agent progress and relays it to connected sessions.
type Emitter interface {
	Thought(id, text, typ, threadID string)
	ThoughtChunk(id, chunk, typ, threadID string)
	State(state string)
	Actions(threadID string, calls []ToolCall)
	ToolResult(tool, result, errMsg string)
}

// Agent drives the reasoning loop for one backend process.
type Agent struct {
	llm   LLM
	tools *tools.Registry
	mem   memory.Repository
	emit  Emitter

	halted atomic.Bool
}

// New wires an agent. mem may be nil to disable persistence.
func New(llm LLM, registry *tools.Registry, mem memory.Repository, emit Emitter) *Agent {
	return &Agent{llm: llm, tools: registry, mem: mem, emit: emit}
}

// Halt aborts the current task loop at the next iteration boundary.
func (a *Agent) Halt() {
	a.halted.Store(true)
}

// Halted reports whether a halt was requested.
func (a *Agent) Halted() bool {
	return a.halted.Load()
}

func responseID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Chat answers a short command conversationally, streaming chunks as they
// arrive. No tools are involved.
func (a *Agent) Chat(ctx context.Context, threadID, command string) error {
	a.emit.State("planning")
	defer a.emit.State("idle")

	id := responseID()
	messages := a.historyMessages(ctx, threadID)
	messages = append([]api.Message{{
		Role:    "system",
		Content: "You are NeuroSurf, a concise browser copilot. Answer briefly.",
	}}, messages...)
	messages = append(messages, api.Message{Role: "user", Content: command})

	full, err := a.llm.Chat(ctx, messages, func(chunk string) {
		a.emit.ThoughtChunk(id, chunk, "system", threadID)
	})
	if err != nil {
		a.emit.Thought(responseID(), "Agent error: "+err.Error(), "error", threadID)
		return err
	}
	// Final sync carries the complete text under the same id as the chunks.
	a.emit.Thought(id, full, "system", threadID)

	a.remember(ctx, threadID, "user", command)
	a.remember(ctx, threadID, "agent", full)
	return nil
}

// RunTask executes the agentic loop: plan, call tools, observe, repeat.
func (a *Agent) RunTask(ctx context.Context, threadID, task string) error {
	a.halted.Store(false)
	a.emit.State("planning")
	defer a.emit.State("idle")

	a.remember(ctx, threadID, "user", task)

	messages := []api.Message{
		{Role: "system", Content: a.systemPrompt()},
		{Role: "user", Content: task},
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		if a.halted.Load() {
			a.emit.Thought(responseID(), "Task halted", "system", threadID)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		id := responseID()
		reply, err := a.llm.Chat(ctx, trimHistory(messages), func(chunk string) {
			a.emit.ThoughtChunk(id, chunk, "planning", threadID)
		})
		if err != nil {
			a.emit.Thought(responseID(), "Agent error: "+err.Error(), "error", threadID)
			return err
		}
		messages = append(messages, api.Message{Role: "assistant", Content: reply})

		calls, narrative := ExtractToolCalls(reply)
		if narrative != "" {
			a.emit.Thought(id, narrative, "planning", threadID)
		}

		if len(calls) == 0 {
			// No tool call means the model considers the task done.
			a.saveTaskResult(ctx, task, narrative, true)
			a.remember(ctx, threadID, "agent", narrative)
			return nil
		}

		a.emit.State("acting")
		a.emit.Actions(threadID, calls)

		for _, call := range calls {
			if a.halted.Load() {
				a.emit.Thought(responseID(), "Task halted", "system", threadID)
				return nil
			}
			result, err := a.tools.Execute(ctx, call.Tool, call.Parameters)
			if err != nil {
				slog.Warn("tool failed", "tool", call.Tool, "error", err)
				a.emit.ToolResult(call.Tool, "", err.Error())
				messages = append(messages, api.Message{
					Role:    "user",
					Content: fmt.Sprintf("Tool %s failed: %s", call.Tool, err),
				})
				continue
			}
			a.emit.ToolResult(call.Tool, truncate(result, toolResultLimit), "")
			messages = append(messages, api.Message{
				Role:    "user",
				Content: fmt.Sprintf("Tool %s result:\n%s", call.Tool, truncate(result, toolResultLimit)),
			})
		}
		a.emit.State("planning")
	}

	a.emit.Thought(responseID(), "Task stopped after reaching the iteration limit", "error", threadID)
	a.saveTaskResult(ctx, task, "iteration limit reached", false)
	return nil
}

// AnalyzePage summarizes page text and streams the summary.
func (a *Agent) AnalyzePage(ctx context.Context, text string) error {
	a.emit.State("planning")
	defer a.emit.State("idle")

	id := responseID()
	summary, err := a.llm.Generate(ctx,
		"Summarize the given web page text in a few short sentences.",
		truncate(text, 6000))
	if err != nil {
		a.emit.Thought(responseID(), "Page analysis failed: "+err.Error(), "error", "")
		return err
	}
	a.emit.Thought(id, "Page summary: "+summary, "system", "")
	return nil
}

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are NeuroSurf, an autonomous browser agent. ")
	b.WriteString("To use a tool, reply with a JSON object: ")
	b.WriteString(`{"tool": "<name>", "parameters": {...}}` + "\n")
	b.WriteString("Available tools:\n")
	b.WriteString(a.tools.Describe())
	b.WriteString("When the task is complete, reply with the answer in plain text without any JSON.")
	return b.String()
}

// historyMessages loads recent turns from memory, oldest first.
func (a *Agent) historyMessages(ctx context.Context, threadID string) []api.Message {
	if a.mem == nil {
		return nil
	}
	turns, err := a.mem.RecentConversations(ctx, threadID, historyLimit)
	if err != nil {
		slog.Debug("history load failed", "thread", threadID, "error", err)
		return nil
	}
	messages := make([]api.Message, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		role := "user"
		if turns[i].Role == "agent" {
			role = "assistant"
		}
		messages = append(messages, api.Message{Role: role, Content: turns[i].Text})
	}
	return messages
}

func (a *Agent) remember(ctx context.Context, threadID, role, text string) {
	if a.mem == nil || text == "" {
		return
	}
	err := a.mem.AddConversation(ctx, &memory.Conversation{
		ThreadID: threadID,
		Role:     role,
		Text:     text,
	})
	if err != nil {
		slog.Debug("conversation persist failed", "error", err)
	}
}

func (a *Agent) saveTaskResult(ctx context.Context, task, result string, success bool) {
	if a.mem == nil {
		return
	}
	err := a.mem.SaveTaskResult(ctx, &memory.TaskResult{
		Task:    task,
		Result:  truncate(result, toolResultLimit),
		Success: success,
	})
	if err != nil {
		slog.Debug("task result persist failed", "error", err)
	}
}

// trimHistory keeps the system prompt, the original task, and the newest
// exchange turns so the context never grows unbounded.
func trimHistory(messages []api.Message) []api.Message {
	const keepHead = 2
	if len(messages) <= keepHead+historyLimit {
		return messages
	}
	trimmed := make([]api.Message, 0, keepHead+historyLimit)
	trimmed = append(trimmed, messages[:keepHead]...)
	trimmed = append(trimmed, messages[len(messages)-historyLimit:]...)
	return trimmed
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
