package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/neurosurf/neurosurf/internal/protocol"
)

// WSHandler upgrades shell client connections and pumps their events into
// the router.
type WSHandler struct {
	hub           *Hub
	router        *Router
	allowedOrigin string
	isDev         bool
}

// NewWSHandler creates the realtime endpoint handler.
func NewWSHandler(hub *Hub, router *Router, allowedOrigin string, isDev bool) *WSHandler {
	return &WSHandler{
		hub:           hub,
		router:        router,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "ip", r.RemoteAddr)
		return
	}

	sessionID := uuid.NewString()
	slog.Info("client connected", "session_id", sessionID, "ip", r.RemoteAddr)

	h.hub.Register(sessionID, ws)
	defer h.hub.Unregister(sessionID, ws)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	// Seed the fresh session with the current agent state and a greeting.
	h.hub.SendTo(sessionID, protocol.EventAgentState, protocol.AgentState{State: "idle"})
	h.hub.SendTo(sessionID, protocol.EventAgentThought, protocol.Thought{
		Text: "Neural link established",
		Type: "system",
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, sessionID, ws)
	slog.Info("client disconnected", "session_id", sessionID)
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WSHandler) readLoop(ctx context.Context, sessionID string, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("websocket closed by client", "session_id", sessionID)
			} else {
				slog.Debug("websocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("malformed frame", "session_id", sessionID, "error", err)
			continue
		}
		h.dispatch(ctx, sessionID, env)
	}
}

// dispatch maps one client event to a router operation.
func (h *WSHandler) dispatch(ctx context.Context, sessionID string, env protocol.Envelope) {
	msg, err := protocol.Decode(env)
	if err != nil {
		slog.Debug("dropping event", "event", env.Event, "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Command:
		h.router.HandleCommand(ctx, sessionID, m)
	case protocol.ToolRequest:
		h.router.HandleTool(ctx, sessionID, m)
	case protocol.TerminalCommand:
		h.router.HandleTerminal(ctx, sessionID, m)
	case protocol.FSPath:
		switch env.Event {
		case protocol.EventFSList:
			h.router.HandleFSList(sessionID, m)
		case protocol.EventFSRead:
			h.router.HandleFSRead(sessionID, m)
		}
	case protocol.FSWriteRequest:
		h.router.HandleFSWrite(sessionID, m)
	case protocol.PageText:
		h.router.HandleAnalyzePage(ctx, sessionID, m)
	case protocol.GestureEvent:
		h.router.HandleGesture(sessionID, m)
	case protocol.ImageData:
		h.router.HandleImage(sessionID, env.Event, m)
	default:
		switch env.Event {
		case protocol.EventVoiceStart:
			h.router.HandleVoiceStart(sessionID)
		case protocol.EventVoiceStopCmd:
			h.router.HandleVoiceStop(sessionID)
		default:
			slog.Debug("unhandled event", "event", env.Event, "session_id", sessionID)
		}
	}
}
