// Package server hosts the neurod realtime endpoint: it accepts shell client
// connections, routes their commands to the agent, and fans agent progress
// back out over the channel.
package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/neurosurf/neurosurf/internal/agent"
	"github.com/neurosurf/neurosurf/internal/protocol"
)

// client is one connected shell with its own write lock, since coder/websocket
// allows only one concurrent writer per connection.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		slog.Warn("encode event", "event", event, "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("client write failed", "session_id", c.id, "error", err)
	}
}

// Hub manages active client connections and implements agent.Emitter by
// broadcasting progress events to every session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Register adds a connection under a session ID, replacing any prior
// connection with the same ID.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[sessionID]; ok && existing.conn != conn {
		_ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced")
	}
	h.clients[sessionID] = &client{id: sessionID, conn: conn}
	slog.Info("session registered", "session_id", sessionID)
}

// Unregister removes a connection. A newer connection under the same ID is
// left alone.
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[sessionID]; ok && current.conn == conn {
		delete(h.clients, sessionID)
		slog.Info("session unregistered", "session_id", sessionID)
	}
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends one event to every connected session.
func (h *Hub) Broadcast(event string, payload any) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(event, payload)
	}
}

// SendTo sends one event to a single session, if connected.
func (h *Hub) SendTo(sessionID, event string, payload any) {
	h.mu.RLock()
	c := h.clients[sessionID]
	h.mu.RUnlock()
	if c != nil {
		c.send(event, payload)
	}
}

// --- agent.Emitter ---

func (h *Hub) Thought(id, text, typ, threadID string) {
	h.Broadcast(protocol.EventAgentThought, protocol.Thought{
		ID: id, Text: text, Type: typ, ThreadID: threadID,
	})
}

func (h *Hub) ThoughtChunk(id, chunk, typ, threadID string) {
	h.Broadcast(protocol.EventAgentThoughtChunk, protocol.ThoughtChunk{
		ID: id, Chunk: chunk, Type: typ, ThreadID: threadID,
	})
}

func (h *Hub) State(state string) {
	h.Broadcast(protocol.EventAgentState, protocol.AgentState{State: state})
}

func (h *Hub) Actions(threadID string, calls []agent.ToolCall) {
	actions := make([]protocol.ToolAction, 0, len(calls))
	for _, c := range calls {
		actions = append(actions, protocol.ToolAction{Tool: c.Tool, Parameters: c.Parameters})
	}
	h.Broadcast(protocol.EventAgentActions, protocol.AgentActions{
		Actions: actions, ThreadID: threadID,
	})
}

func (h *Hub) ToolResult(tool, result, errMsg string) {
	payload := protocol.ToolResult{Tool: tool, Error: errMsg}
	if result != "" {
		payload.Result = map[string]any{"output": result}
	}
	h.Broadcast(protocol.EventAgentToolResult, payload)
}
