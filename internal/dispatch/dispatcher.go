// Package dispatch owns the client side of the realtime channel: one
// reconnecting websocket connection to the neurod backend. Inbound named
// events are translated into store mutations; user intents go out as named
// events. Every outbound operation is a guarded no-op while disconnected.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/neurosurf/neurosurf/internal/gesture"
	"github.com/neurosurf/neurosurf/internal/protocol"
	"github.com/neurosurf/neurosurf/internal/state"
)

// Greeting is spoken and logged when the neural link comes up.
const Greeting = "Neural link established"

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Speaker voices short status phrases. Nil disables voice output.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// CaptureFunc grabs a screenshot and returns it as a data URL. Nil disables
// screen capture.
type CaptureFunc func(ctx context.Context) (string, error)

// Config wires a dispatcher.
type Config struct {
	URL        string
	Store      *state.Store
	Speaker    Speaker
	Capture    CaptureFunc
	HoldFrames int
}

// Dispatcher owns the connection and the inbound event fan-out.
type Dispatcher struct {
	url     string
	store   *state.Store
	speaker Speaker
	capture CaptureFunc
	hold    *gesture.Hold

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a dispatcher. Run must be called to establish the channel.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		url:     cfg.URL,
		store:   cfg.Store,
		speaker: cfg.Speaker,
		capture: cfg.Capture,
		hold:    gesture.NewHold(cfg.HoldFrames),
	}
}

// Run dials the backend and pumps inbound events until ctx is cancelled,
// reconnecting with capped exponential backoff. The transport owns all retry
// behavior; the UI only ever sees the connected flag and log entries.
func (d *Dispatcher) Run(ctx context.Context) {
	delay := reconnectBaseDelay
	for {
		conn, _, err := websocket.Dial(ctx, d.url, nil)
		if err != nil {
			slog.Debug("backend dial failed", "url", d.url, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		delay = reconnectBaseDelay

		d.setConn(conn)
		d.onConnect(ctx)

		readErr := d.readLoop(ctx, conn)
		d.setConn(nil)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		d.onDisconnect(readErr)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (d *Dispatcher) setConn(conn *websocket.Conn) {
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
}

func (d *Dispatcher) onConnect(ctx context.Context) {
	slog.Info("backend connected", "url", d.url)
	d.store.SetConnected(true)
	d.store.AppendThought(state.Thought{
		Text: Greeting,
		Type: state.ThoughtSystem,
	})
	if d.speaker != nil {
		go func() {
			if err := d.speaker.Say(ctx, Greeting); err != nil {
				slog.Debug("greeting speech failed", "error", err)
			}
		}()
	}
}

func (d *Dispatcher) onDisconnect(err error) {
	slog.Warn("backend disconnected", "error", err)
	d.store.SetConnected(false)
	d.store.SetAgentState(state.StateError)
	d.store.AppendThought(state.Thought{
		Text: "Connection to backend lost",
		Type: state.ThoughtError,
	})
}

func (d *Dispatcher) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("malformed frame", "error", err)
			continue
		}
		d.Handle(ctx, env)
	}
}

// Handle applies one inbound envelope to the store. Exported so the event
// mapping is testable without a live connection.
func (d *Dispatcher) Handle(ctx context.Context, env protocol.Envelope) {
	msg, err := protocol.Decode(env)
	if err != nil {
		slog.Debug("dropping event", "event", env.Event, "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Thought:
		d.store.FinalizeThought(state.Thought{
			ID:       m.ID,
			Text:     m.Text,
			Type:     thoughtType(m.Type),
			ThreadID: m.ThreadID,
		})
	case protocol.ThoughtChunk:
		d.store.AppendThoughtChunk(m.ID, m.Chunk, thoughtType(m.Type), m.ThreadID)
	case protocol.AgentState:
		d.store.SetAgentState(agentState(m.State))
	case protocol.AgentActions:
		if len(m.Actions) == 0 {
			return
		}
		names := make([]string, 0, len(m.Actions))
		for _, a := range m.Actions {
			names = append(names, a.Tool)
		}
		d.store.AppendThought(state.Thought{
			Text:     "Tools used: " + strings.Join(names, ", "),
			Type:     state.ThoughtAction,
			ThreadID: m.ThreadID,
		})
	case protocol.ToolResult:
		if m.Error != "" {
			d.store.AppendThought(state.Thought{
				Text: "Tool " + m.Tool + " failed: " + m.Error,
				Type: state.ThoughtError,
			})
			return
		}
		d.store.AppendThought(state.Thought{
			Text: "Tool " + m.Tool + " completed",
			Type: state.ThoughtAction,
		})
	case protocol.Navigate:
		d.store.NavigateActiveTab(m.URL)
	case protocol.NewTab:
		d.store.AddTab(m.URL, m.Title)
		d.store.AppendThought(state.Thought{
			Text: "Opened new tab: " + m.URL,
			Type: state.ThoughtSystem,
		})
	case protocol.TerminalOutput:
		d.store.SetTerminalOutput(splitLines(m.Output))
	case protocol.FSListResult:
		entries := make([]state.FileEntry, 0, len(m.Items))
		for _, it := range m.Items {
			entries = append(entries, state.FileEntry{Name: it.Name, IsDir: it.IsDir, Size: it.Size})
		}
		d.store.SetFileListing(state.FileListing{Path: m.Path, Entries: entries})
	case protocol.FSReadResult:
		d.store.SetFileContent(state.FileContent{Path: m.Path, Content: m.Content})
	case protocol.FSWriteResult:
		d.store.AppendThought(state.Thought{
			Text: "Saved " + m.Path,
			Type: state.ThoughtSystem,
		})
	case protocol.FSError:
		d.store.AppendThought(state.Thought{
			Text: "Filesystem error: " + m.Message,
			Type: state.ThoughtError,
		})
	case protocol.Landmarks:
		d.handleLandmarks(m)
	default:
		switch env.Event {
		case protocol.EventVoiceStop:
			d.store.SetVoice(false)
		case protocol.EventScreenshotRequest:
			go d.sendScreenshot(ctx)
		}
	}
}

// handleLandmarks runs one classifier tick and fires the debounced gesture
// action at most once per held pose.
func (d *Dispatcher) handleLandmarks(m protocol.Landmarks) {
	kind := gesture.Classify(gesture.FromSlices(m.Landmarks))
	d.store.SetGesture(string(kind))
	if d.hold.Observe(kind) {
		d.SendGesture(string(kind))
	}
}

// sendScreenshot is best-effort: capture failure is logged and swallowed,
// never surfaced to the user.
func (d *Dispatcher) sendScreenshot(ctx context.Context) {
	if d.capture == nil {
		return
	}
	img, err := d.capture(ctx)
	if err != nil {
		slog.Warn("screen capture failed", "error", err)
		return
	}
	d.send(protocol.EventScreenshotData, protocol.ImageData{Image: img})
}

// --- Outbound operations ---

// send serializes one named payload onto the stream. Returns false without
// emitting anything when the channel is down.
func (d *Dispatcher) send(event string, payload any) bool {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return false
	}
	data, err := protocol.Encode(event, payload)
	if err != nil {
		slog.Warn("encode outbound event", "event", event, "error", err)
		return false
	}
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("outbound write failed", "event", event, "error", err)
		return false
	}
	return true
}

// SendCommand submits a user instruction to the agent. Unless silent, a
// user-type thought is appended locally; silent sends are used for
// programmatically generated instructions.
func (d *Dispatcher) SendCommand(command, threadID string, silent bool) bool {
	if !d.send(protocol.EventAgentCommand, protocol.Command{Command: command, ThreadID: threadID}) {
		return false
	}
	if !silent {
		d.store.AppendThought(state.Thought{
			Text:     command,
			Type:     state.ThoughtUser,
			ThreadID: threadID,
		})
	}
	return true
}

// SendGesture reports a fired gesture action.
func (d *Dispatcher) SendGesture(kind string) bool {
	return d.send(protocol.EventGestureEvent, protocol.GestureEvent{Type: kind})
}

// SendTool asks the backend to execute a named tool directly.
func (d *Dispatcher) SendTool(tool string, parameters map[string]any) bool {
	return d.send(protocol.EventAgentTool, protocol.ToolRequest{Tool: tool, Parameters: parameters})
}

// SendTerminalCommand runs a raw shell command on the backend.
func (d *Dispatcher) SendTerminalCommand(command string) bool {
	return d.send(protocol.EventTerminalCommand, protocol.TerminalCommand{Command: command})
}

// SendFSList requests a directory listing.
func (d *Dispatcher) SendFSList(path string) bool {
	return d.send(protocol.EventFSList, protocol.FSPath{Path: path})
}

// SendFSRead requests file content.
func (d *Dispatcher) SendFSRead(path string) bool {
	return d.send(protocol.EventFSRead, protocol.FSPath{Path: path})
}

// SendFSWrite writes file content on the backend.
func (d *Dispatcher) SendFSWrite(path, content string) bool {
	return d.send(protocol.EventFSWrite, protocol.FSWriteRequest{Path: path, Content: content})
}

// SendAnalyzePage submits page text for summarization.
func (d *Dispatcher) SendAnalyzePage(text string) bool {
	return d.send(protocol.EventAnalyzePage, protocol.PageText{Text: text})
}

// SendVoiceStart tells the backend voice capture began.
func (d *Dispatcher) SendVoiceStart() bool {
	return d.send(protocol.EventVoiceStart, nil)
}

// SendVoiceStop tells the backend voice capture ended.
func (d *Dispatcher) SendVoiceStop() bool {
	return d.send(protocol.EventVoiceStopCmd, nil)
}

// SendWebcamFrame relays a camera frame for vision tools.
func (d *Dispatcher) SendWebcamFrame(image string) bool {
	return d.send(protocol.EventWebcamFrame, protocol.ImageData{Image: image})
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func thoughtType(s string) state.ThoughtType {
	switch state.ThoughtType(s) {
	case state.ThoughtUser, state.ThoughtSystem, state.ThoughtAction,
		state.ThoughtError, state.ThoughtPlanning, state.ThoughtVoice:
		return state.ThoughtType(s)
	default:
		return state.ThoughtSystem
	}
}

func agentState(s string) state.AgentState {
	switch state.AgentState(s) {
	case state.StateIdle, state.StatePlanning, state.StateActing,
		state.StateListening, state.StateError:
		return state.AgentState(s)
	default:
		return state.StateIdle
	}
}
