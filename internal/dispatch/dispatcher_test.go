package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/neurosurf/neurosurf/internal/gesture"
	"github.com/neurosurf/neurosurf/internal/protocol"
	"github.com/neurosurf/neurosurf/internal/state"
)

func newTestDispatcher() (*Dispatcher, *state.Store) {
	st := state.New("https://www.google.com")
	d := New(Config{URL: "ws://unused", Store: st, HoldFrames: 3})
	return d, st
}

func envelope(t *testing.T, event string, payload any) protocol.Envelope {
	t.Helper()
	data, err := protocol.Encode(event, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestSendWhileDisconnected(t *testing.T) {
	d, st := newTestDispatcher()

	if d.SendCommand("hello", state.MainThreadID, false) {
		t.Fatal("SendCommand must fail while disconnected")
	}
	if got := st.Thoughts(state.MainThreadID); len(got) != 0 {
		t.Fatalf("failed send mutated the store: %+v", got)
	}
	if d.SendGesture("palm") || d.SendTerminalCommand("ls") || d.SendFSList("/") {
		t.Fatal("outbound ops must be guarded no-ops while disconnected")
	}
}

func TestInboundThoughtAndChunkMutations(t *testing.T) {
	d, st := newTestDispatcher()
	ctx := context.Background()

	// Chunk before its opening thought event creates the entry.
	d.Handle(ctx, envelope(t, protocol.EventAgentThoughtChunk, protocol.ThoughtChunk{
		ID: "r1", Chunk: "Think", Type: "system",
	}))
	d.Handle(ctx, envelope(t, protocol.EventAgentThoughtChunk, protocol.ThoughtChunk{
		ID: "r1", Chunk: "ing...", Type: "system",
	}))
	got := st.Thoughts(state.MainThreadID)
	if len(got) != 1 || got[0].Text != "Thinking..." {
		t.Fatalf("unexpected log after chunks: %+v", got)
	}

	// Final sync replaces the streamed entry rather than duplicating it.
	d.Handle(ctx, envelope(t, protocol.EventAgentThought, protocol.Thought{
		ID: "r1", Text: "Thinking complete", Type: "system",
	}))
	got = st.Thoughts(state.MainThreadID)
	if len(got) != 1 || got[0].Text != "Thinking complete" {
		t.Fatalf("final sync did not replace entry: %+v", got)
	}
}

func TestInboundStateAndNavigation(t *testing.T) {
	d, st := newTestDispatcher()
	ctx := context.Background()

	d.Handle(ctx, envelope(t, protocol.EventAgentState, protocol.AgentState{State: "acting"}))
	if st.AgentStateNow() != state.StateActing {
		t.Fatalf("agent state = %q", st.AgentStateNow())
	}

	d.Handle(ctx, envelope(t, protocol.EventBrowserNavigate, protocol.Navigate{URL: "https://go.dev"}))
	if st.CurrentURL() != "https://go.dev" {
		t.Fatalf("current URL = %q", st.CurrentURL())
	}

	d.Handle(ctx, envelope(t, protocol.EventBrowserNewTab, protocol.NewTab{URL: "https://pkg.go.dev"}))
	tabs := st.Tabs()
	if len(tabs) != 2 {
		t.Fatalf("tab count = %d, want 2", len(tabs))
	}
	if st.ActiveTab().URL != "https://pkg.go.dev" {
		t.Fatalf("new tab should be active, got %q", st.ActiveTab().URL)
	}
}

func TestInboundTerminalAndFSReplaceViewState(t *testing.T) {
	d, st := newTestDispatcher()
	ctx := context.Background()

	d.Handle(ctx, envelope(t, protocol.EventTerminalOutput, protocol.TerminalOutput{Output: "one\ntwo\n"}))
	if got := st.TerminalOutput(); len(got) != 2 || got[1] != "two" {
		t.Fatalf("terminal buffer = %+v", got)
	}
	// The next output replaces, never merges.
	d.Handle(ctx, envelope(t, protocol.EventTerminalOutput, protocol.TerminalOutput{Output: "three"}))
	if got := st.TerminalOutput(); len(got) != 1 || got[0] != "three" {
		t.Fatalf("terminal buffer not replaced: %+v", got)
	}

	d.Handle(ctx, envelope(t, protocol.EventFSListResult, protocol.FSListResult{
		Path:  "/tmp",
		Items: []protocol.FileInfo{{Name: "a.txt", Size: 12}},
	}))
	if got := st.FileListingNow(); got.Path != "/tmp" || len(got.Entries) != 1 {
		t.Fatalf("file listing = %+v", got)
	}

	d.Handle(ctx, envelope(t, protocol.EventFSError, protocol.FSError{Message: "denied"}))
	log := st.Thoughts(state.MainThreadID)
	last := log[len(log)-1]
	if last.Type != state.ThoughtError || !strings.Contains(last.Text, "denied") {
		t.Fatalf("fs error not surfaced as error thought: %+v", last)
	}
}

func TestInboundVoiceStop(t *testing.T) {
	d, st := newTestDispatcher()
	st.SetVoice(true)
	d.Handle(context.Background(), protocol.Envelope{Event: protocol.EventVoiceStop})
	if st.VoiceOn() {
		t.Fatal("voice:stop must clear the voice flag")
	}
}

func TestLandmarkFramesDebounceGestureAction(t *testing.T) {
	d, st := newTestDispatcher() // HoldFrames: 3
	ctx := context.Background()

	palm := make([][3]float64, gesture.LandmarkCount)
	for i := range palm {
		palm[i] = [3]float64{0.5, 0.5, 0}
	}
	// Extended fingers: tips above PIP joints, thumb spread from its IP
	// joint, thumb tip far from index tip.
	palm[8] = [3]float64{0.45, 0.30, 0}  // index tip
	palm[6] = [3]float64{0.45, 0.45, 0}  // index pip
	palm[12] = [3]float64{0.50, 0.30, 0} // middle tip
	palm[10] = [3]float64{0.50, 0.45, 0}
	palm[16] = [3]float64{0.55, 0.30, 0} // ring tip
	palm[14] = [3]float64{0.55, 0.45, 0}
	palm[20] = [3]float64{0.60, 0.30, 0} // pinky tip
	palm[18] = [3]float64{0.60, 0.45, 0}
	palm[3] = [3]float64{0.40, 0.55, 0} // thumb ip
	palm[4] = [3]float64{0.25, 0.55, 0} // thumb tip

	for i := 0; i < 5; i++ {
		d.Handle(ctx, envelope(t, protocol.EventGestureLandmarks, protocol.Landmarks{Landmarks: palm}))
	}
	if st.LastGesture().Type != string(gesture.Palm) {
		t.Fatalf("last gesture = %q, want palm", st.LastGesture().Type)
	}
}

// TestLiveChannel exercises the dispatcher against a real websocket server:
// connect greeting, inbound event application, and outbound emission.
func TestLiveChannel(t *testing.T) {
	received := make(chan protocol.Envelope, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		// Push one state event to the client.
		frame, _ := protocol.Encode(protocol.EventAgentState, protocol.AgentState{State: "planning"})
		if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
			return
		}
		// Then read whatever the client sends.
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			received <- env
		}
	}))
	defer srv.Close()

	st := state.New("https://www.google.com")
	d := New(Config{
		URL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		Store: st,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	waitFor(t, func() bool { return st.Connected() }, "connect")
	waitFor(t, func() bool { return st.AgentStateNow() == state.StatePlanning }, "inbound state event")

	if !d.SendCommand("open golang.org", state.MainThreadID, false) {
		t.Fatal("SendCommand failed while connected")
	}
	select {
	case env := <-received:
		if env.Event != protocol.EventAgentCommand {
			t.Fatalf("server received %q, want agent_command", env.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the command")
	}

	// Local user thought was appended on successful send.
	found := false
	for _, th := range st.Thoughts(state.MainThreadID) {
		if th.Type == state.ThoughtUser && th.Text == "open golang.org" {
			found = true
		}
	}
	if !found {
		t.Fatal("user thought missing after successful send")
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
