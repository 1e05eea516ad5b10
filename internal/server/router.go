package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/neurosurf/neurosurf/internal/agent"
	"github.com/neurosurf/neurosurf/internal/protocol"
	"github.com/neurosurf/neurosurf/internal/tools"
)

// Commands shorter than this skip the tool loop and get a conversational
// streamed reply.
const simpleChatLimit = 150

var quickNavRegexp = regexp.MustCompile(`(?i)^(open|browse|go to|show me)\s+(.+)$`)

var researchKeywords = []string{
	"research",
	"deep study",
	"investigate",
	"search the web",
	"browse for",
}

var haltWords = map[string]bool{
	"stop":   true,
	"halt":   true,
	"cancel": true,
	"abort":  true,
}

// Router decides what each inbound command means: quick navigation, a halt,
// a research task, small talk, or a full agent task.
type Router struct {
	agent      *agent.Agent
	researcher *agent.Researcher
	hub        *Hub
	registry   *tools.Registry
	executor   tools.Executor
	workspace  *tools.Workspace
	convlog    *ConversationLogger
}

// NewRouter wires the command router.
func NewRouter(a *agent.Agent, r *agent.Researcher, hub *Hub, registry *tools.Registry, executor tools.Executor, ws *tools.Workspace, convlog *ConversationLogger) *Router {
	return &Router{
		agent:      a,
		researcher: r,
		hub:        hub,
		registry:   registry,
		executor:   executor,
		workspace:  ws,
		convlog:    convlog,
	}
}

// ExtractURL recognizes quick navigation phrasing and returns a full URL.
// Targets without a dot become a search query.
func ExtractURL(command string) (string, bool) {
	m := quickNavRegexp.FindStringSubmatch(strings.TrimSpace(command))
	if m == nil {
		return "", false
	}
	target := strings.TrimSpace(m[2])
	target = strings.TrimRight(target, ".!?")
	if target == "" {
		return "", false
	}
	if !strings.Contains(target, ".") || strings.Contains(target, " ") {
		return "https://www.google.com/search?q=" + strings.ReplaceAll(target, " ", "+"), true
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}
	return target, true
}

// IsResearchTask reports whether the command asks for the deep-research
// pipeline.
func IsResearchTask(command string) bool {
	if strings.HasPrefix(command, "RESEARCH TASK:") {
		return true
	}
	lower := strings.ToLower(command)
	for _, kw := range researchKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isHalt matches bare halt words.
func isHalt(command string) bool {
	return haltWords[strings.ToLower(strings.TrimSpace(command))]
}

// researchTopic strips the task prefix and polite framing from a research
// command.
func researchTopic(command string) string {
	topic := strings.TrimPrefix(command, "RESEARCH TASK:")
	lower := strings.ToLower(topic)
	for _, kw := range researchKeywords {
		if i := strings.Index(lower, kw); i >= 0 {
			topic = topic[:i] + topic[i+len(kw):]
			break
		}
	}
	topic = strings.Trim(topic, " :,")
	return strings.Join(strings.Fields(topic), " ")
}

// HandleCommand routes one agent_command from a session.
func (rt *Router) HandleCommand(ctx context.Context, sessionID string, cmd protocol.Command) {
	command := strings.TrimSpace(cmd.Command)
	if command == "" {
		return
	}
	threadID := cmd.ThreadID
	if threadID == "" {
		threadID = "main"
	}

	rt.logEvent(sessionID, "inbound", protocol.EventAgentCommand, command)

	switch {
	case isHalt(command):
		slog.Info("halt requested", "session_id", sessionID)
		rt.agent.Halt()
		rt.hub.Thought("", "Stopping current task", "system", threadID)
		rt.hub.State("idle")

	case rt.quickNavigate(command):
		// handled inside quickNavigate

	case IsResearchTask(command):
		topic := researchTopic(command)
		if topic == "" {
			topic = command
		}
		go func() {
			if err := rt.researcher.Run(context.WithoutCancel(ctx), threadID, topic); err != nil {
				slog.Warn("research task failed", "topic", topic, "error", err)
			}
		}()

	case len(command) < simpleChatLimit:
		go func() {
			if err := rt.agent.Chat(context.WithoutCancel(ctx), threadID, command); err != nil {
				slog.Warn("chat failed", "error", err)
			}
		}()

	default:
		go func() {
			if err := rt.agent.RunTask(context.WithoutCancel(ctx), threadID, command); err != nil {
				slog.Warn("agent task failed", "error", err)
			}
		}()
	}
}

// quickNavigate handles "open/go to/show me X" without waking the model.
func (rt *Router) quickNavigate(command string) bool {
	url, ok := ExtractURL(command)
	if !ok {
		return false
	}
	slog.Info("quick navigation", "url", url)
	rt.hub.Broadcast(protocol.EventBrowserNavigate, protocol.Navigate{URL: url})
	rt.hub.Thought("", "Navigating to "+url, "action", "")
	return true
}

// HandleTool executes a directly requested tool and reports the result.
func (rt *Router) HandleTool(ctx context.Context, sessionID string, req protocol.ToolRequest) {
	rt.logEvent(sessionID, "inbound", protocol.EventAgentTool, req.Tool)
	out, err := rt.registry.Execute(ctx, req.Tool, req.Parameters)
	if err != nil {
		rt.hub.ToolResult(req.Tool, "", err.Error())
		return
	}
	rt.hub.ToolResult(req.Tool, out, "")
}

// HandleTerminal runs a raw shell command and broadcasts the output.
func (rt *Router) HandleTerminal(ctx context.Context, sessionID string, cmd protocol.TerminalCommand) {
	rt.logEvent(sessionID, "inbound", protocol.EventTerminalCommand, cmd.Command)
	res, err := rt.executor.Exec(ctx, cmd.Command)
	if err != nil {
		rt.hub.Broadcast(protocol.EventTerminalOutput, protocol.TerminalOutput{
			Output:     "error: " + err.Error(),
			ReturnCode: -1,
		})
		return
	}
	rt.logEvent(sessionID, "outbound", protocol.EventTerminalOutput, res.Output)
	rt.hub.Broadcast(protocol.EventTerminalOutput, protocol.TerminalOutput{
		Output:     res.Output,
		ReturnCode: res.ExitCode,
	})
}

// HandleFSList answers an fs_list request.
func (rt *Router) HandleFSList(sessionID string, req protocol.FSPath) {
	entries, err := rt.workspace.List(req.Path)
	if err != nil {
		rt.hub.SendTo(sessionID, protocol.EventFSError, protocol.FSError{Message: err.Error()})
		return
	}
	items := make([]protocol.FileInfo, 0, len(entries))
	for _, e := range entries {
		items = append(items, protocol.FileInfo{Name: e.Name, IsDir: e.IsDir, Size: e.Size})
	}
	rt.hub.SendTo(sessionID, protocol.EventFSListResult, protocol.FSListResult{Path: req.Path, Items: items})
}

// HandleFSRead answers an fs_read request.
func (rt *Router) HandleFSRead(sessionID string, req protocol.FSPath) {
	content, err := rt.workspace.Read(req.Path)
	if err != nil {
		rt.hub.SendTo(sessionID, protocol.EventFSError, protocol.FSError{Message: err.Error()})
		return
	}
	rt.hub.SendTo(sessionID, protocol.EventFSReadResult, protocol.FSReadResult{Path: req.Path, Content: content})
}

// HandleFSWrite answers an fs_write request.
func (rt *Router) HandleFSWrite(sessionID string, req protocol.FSWriteRequest) {
	if err := rt.workspace.Write(req.Path, req.Content); err != nil {
		rt.hub.SendTo(sessionID, protocol.EventFSError, protocol.FSError{Message: err.Error()})
		return
	}
	rt.hub.SendTo(sessionID, protocol.EventFSWriteResult, protocol.FSWriteResult{Path: req.Path, Status: "ok"})
}

// HandleAnalyzePage summarizes submitted page text.
func (rt *Router) HandleAnalyzePage(ctx context.Context, sessionID string, req protocol.PageText) {
	rt.logEvent(sessionID, "inbound", protocol.EventAnalyzePage, "")
	go func() {
		if err := rt.agent.AnalyzePage(context.WithoutCancel(ctx), req.Text); err != nil {
			slog.Warn("page analysis failed", "error", err)
		}
	}()
}

// HandleVoiceStart marks the agent as listening.
func (rt *Router) HandleVoiceStart(sessionID string) {
	rt.logEvent(sessionID, "inbound", protocol.EventVoiceStart, "")
	rt.hub.State("listening")
}

// HandleVoiceStop ends voice capture for all sessions.
func (rt *Router) HandleVoiceStop(sessionID string) {
	rt.logEvent(sessionID, "inbound", protocol.EventVoiceStopCmd, "")
	rt.hub.Broadcast(protocol.EventVoiceStop, nil)
	rt.hub.State("idle")
}

// HandleImage persists a webcam frame or screenshot under the workspace
// captures directory so vision-capable models can pick it up later.
func (rt *Router) HandleImage(sessionID, kind string, img protocol.ImageData) {
	rt.logEvent(sessionID, "inbound", kind, "")
	data, ext, err := decodeDataURL(img.Image)
	if err != nil {
		slog.Debug("dropping image frame", "kind", kind, "error", err)
		return
	}
	name := fmt.Sprintf("captures/%s-%d.%s", strings.ReplaceAll(kind, ":", "_"), time.Now().UnixMilli(), ext)
	if err := rt.workspace.Write(name, string(data)); err != nil {
		slog.Warn("failed to persist image frame", "path", name, "error", err)
		return
	}
	slog.Debug("image frame stored", "path", name, "bytes", len(data))
}

// decodeDataURL unpacks "data:image/png;base64,..." into raw bytes and a file
// extension. Bare base64 without a header is treated as png.
func decodeDataURL(s string) ([]byte, string, error) {
	ext := "png"
	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data url")
		}
		if mime, _, ok := strings.Cut(strings.TrimPrefix(header, "data:"), ";"); ok {
			if _, sub, ok := strings.Cut(mime, "/"); ok && sub != "" {
				ext = sub
			}
		}
		s = rest
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}
	return data, ext, nil
}

// HandleGesture reacts to a fired gesture action from the client.
func (rt *Router) HandleGesture(sessionID string, ev protocol.GestureEvent) {
	rt.logEvent(sessionID, "inbound", protocol.EventGestureEvent, ev.Type)
	switch ev.Type {
	case "palm":
		rt.agent.Halt()
		rt.hub.Thought("", "Gesture: palm, halting", "system", "")
		rt.hub.State("idle")
	case "thumbs_up":
		rt.hub.Thought("", "Gesture acknowledged", "system", "")
	}
}

func (rt *Router) logEvent(sessionID, direction, eventType, content string) {
	if rt.convlog == nil {
		return
	}
	rt.convlog.Log(ConversationLogEvent{
		SessionID:  sessionID,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
	})
}
