package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/neurosurf/neurosurf/internal/protocol"
)

// dialTestHub spins up a bare websocket endpoint that registers connections
// in the hub, and returns a connected client conn.
func dialTestHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		hub.Register(sessionID, conn)
		// Hold the connection open until the server shuts down.
		ctx := r.Context()
		<-ctx.Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

func TestHubBroadcastReachesAllSessions(t *testing.T) {
	hub := NewHub()
	c1 := dialTestHub(t, hub, "s1")
	c2 := dialTestHub(t, hub, "s2")

	waitForCount(t, hub, 2)

	hub.Thought("t1", "hello", "system", "main")

	for _, conn := range []*websocket.Conn{c1, c2} {
		env := readEnvelope(t, conn)
		if env.Event != protocol.EventAgentThought {
			t.Fatalf("event = %q", env.Event)
		}
		var th protocol.Thought
		if err := json.Unmarshal(env.Data, &th); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if th.Text != "hello" || th.ID != "t1" {
			t.Fatalf("thought = %+v", th)
		}
	}
}

func TestHubSendToTargetsOneSession(t *testing.T) {
	hub := NewHub()
	c1 := dialTestHub(t, hub, "s1")
	dialTestHub(t, hub, "s2")

	waitForCount(t, hub, 2)

	hub.SendTo("s1", protocol.EventFSError, protocol.FSError{Message: "denied"})

	env := readEnvelope(t, c1)
	if env.Event != protocol.EventFSError {
		t.Fatalf("event = %q", env.Event)
	}
}

func TestHubUnregisterIgnoresStaleConn(t *testing.T) {
	hub := NewHub()
	c1 := dialTestHub(t, hub, "dup")
	_ = c1
	dialTestHub(t, hub, "dup") // replaces the first registration

	waitForCount(t, hub, 1)

	// Unregistering with a conn that is no longer current must not evict the
	// replacement; simulate with a foreign conn value.
	hub.mu.RLock()
	current := hub.clients["dup"].conn
	hub.mu.RUnlock()

	hub.Unregister("dup", nil)
	if hub.Count() != 1 {
		t.Fatal("stale unregister evicted the live session")
	}

	hub.Unregister("dup", current)
	if hub.Count() != 0 {
		t.Fatal("live unregister did not evict")
	}
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub count = %d, want %d", hub.Count(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
