// Package protocol defines the named-event contract spoken on the realtime
// channel between the shell client and the neurod backend. Every frame is a
// JSON envelope carrying an event name and an event-specific payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound events (backend -> client).
const (
	EventAgentThought      = "agent:thought"
	EventAgentThoughtChunk = "agent:thought_chunk"
	EventAgentState        = "agent:state"
	EventAgentActions      = "agent:actions"
	EventAgentToolResult   = "agent:tool_result"
	EventBrowserNavigate   = "browser_navigate"
	EventBrowserNewTab     = "browser:new_tab"
	EventVoiceStop         = "voice:stop"
	EventTerminalOutput    = "terminal:output"
	EventFSListResult      = "fs:list_result"
	EventFSReadResult      = "fs:read_result"
	EventFSWriteResult     = "fs:write_result"
	EventFSError           = "fs:error"
	EventScreenshotRequest = "screenshot:request"
	EventGestureLandmarks  = "gesture:landmarks"
)

// Outbound events (client -> backend).
const (
	EventAgentCommand    = "agent_command"
	EventGestureEvent    = "gesture_event"
	EventAgentTool       = "agent_tool"
	EventTerminalCommand = "terminal_command"
	EventFSList          = "fs_list"
	EventFSRead          = "fs_read"
	EventFSWrite         = "fs_write"
	EventWebcamFrame     = "webcam:frame"
	EventScreenshotData  = "screenshot_data"
	EventVoiceStart      = "voice_start"
	EventVoiceStopCmd    = "voice_stop"
	EventAnalyzePage     = "analyze_page"
)

// Envelope is the wire frame for every message on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an envelope around a payload.
func Encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		data = raw
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Thought is a single chat-log entry attributed to the user, the agent, or
// the system.
type Thought struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ThoughtChunk appends streamed text to an existing thought matched by ID.
type ThoughtChunk struct {
	ID       string `json:"id"`
	Chunk    string `json:"chunk"`
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
}

// AgentState announces a state transition of the agent.
type AgentState struct {
	State    string `json:"state"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ToolAction describes one executed tool invocation.
type ToolAction struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
}

// AgentActions reports the tool actions taken while completing a task.
type AgentActions struct {
	Actions  []ToolAction `json:"actions"`
	ThreadID string       `json:"thread_id,omitempty"`
}

// ToolResult is the outcome of a directly requested tool execution.
type ToolResult struct {
	Tool   string         `json:"tool,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Navigate instructs the client to point the active tab at a URL.
type Navigate struct {
	URL string `json:"url"`
}

// NewTab instructs the client to open a fresh tab.
type NewTab struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// TerminalOutput carries the result of a shell command.
type TerminalOutput struct {
	Output     string `json:"output"`
	ReturnCode int    `json:"returnCode"`
}

// FileInfo describes one directory entry.
type FileInfo struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}

// FSListResult carries a directory listing.
type FSListResult struct {
	Path  string     `json:"path"`
	Items []FileInfo `json:"items"`
}

// FSReadResult carries file content.
type FSReadResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// FSWriteResult acknowledges a completed write.
type FSWriteResult struct {
	Path   string `json:"path"`
	Status string `json:"status"`
}

// FSError reports a failed filesystem operation.
type FSError struct {
	Message string `json:"message"`
}

// Landmarks is one camera frame of hand landmarks relayed from a capture
// companion. Coordinates are normalized [0,1] image space, 21 points in
// MediaPipe order.
type Landmarks struct {
	Landmarks [][3]float64 `json:"landmarks"`
}

// Command is a user instruction for the agent.
type Command struct {
	Command  string `json:"command"`
	ThreadID string `json:"thread_id,omitempty"`
}

// GestureEvent reports a recognized hand gesture.
type GestureEvent struct {
	Type string `json:"type"`
}

// ToolRequest asks the backend to execute a named tool directly.
type ToolRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// TerminalCommand asks the backend to run a shell command.
type TerminalCommand struct {
	Command string `json:"command"`
}

// FSPath addresses a filesystem operation.
type FSPath struct {
	Path string `json:"path"`
}

// FSWriteRequest writes content to a path.
type FSWriteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ImageData carries a captured frame or screenshot as a data URL.
type ImageData struct {
	Image string `json:"image"`
}

// PageText carries visible page text for summarization.
type PageText struct {
	Text string `json:"text"`
}

// Decode unmarshals the envelope payload into the typed struct for its event
// name. Unknown events return an error so callers can log and skip them;
// events without a payload (voice:stop, screenshot:request, voice_start)
// decode to nil.
func Decode(env Envelope) (any, error) {
	switch env.Event {
	case EventAgentThought:
		return decodeAs[Thought](env)
	case EventAgentThoughtChunk:
		return decodeAs[ThoughtChunk](env)
	case EventAgentState:
		return decodeAs[AgentState](env)
	case EventAgentActions:
		return decodeAs[AgentActions](env)
	case EventAgentToolResult:
		return decodeAs[ToolResult](env)
	case EventBrowserNavigate:
		return decodeAs[Navigate](env)
	case EventBrowserNewTab:
		return decodeAs[NewTab](env)
	case EventTerminalOutput:
		return decodeAs[TerminalOutput](env)
	case EventFSListResult:
		return decodeAs[FSListResult](env)
	case EventFSReadResult:
		return decodeAs[FSReadResult](env)
	case EventFSWriteResult:
		return decodeAs[FSWriteResult](env)
	case EventFSError:
		return decodeAs[FSError](env)
	case EventGestureLandmarks:
		return decodeAs[Landmarks](env)
	case EventAgentCommand:
		return decodeAs[Command](env)
	case EventGestureEvent:
		return decodeAs[GestureEvent](env)
	case EventAgentTool:
		return decodeAs[ToolRequest](env)
	case EventTerminalCommand:
		return decodeAs[TerminalCommand](env)
	case EventFSList, EventFSRead:
		return decodeAs[FSPath](env)
	case EventFSWrite:
		return decodeAs[FSWriteRequest](env)
	case EventWebcamFrame, EventScreenshotData:
		return decodeAs[ImageData](env)
	case EventAnalyzePage:
		return decodeAs[PageText](env)
	case EventVoiceStop, EventScreenshotRequest, EventVoiceStart, EventVoiceStopCmd:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}

func decodeAs[T any](env Envelope) (any, error) {
	var payload T
	if len(env.Data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	return payload, nil
}
