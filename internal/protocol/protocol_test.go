package protocol

import (
	"encoding/json"
	"testing"
)

func roundTrip(t *testing.T, event string, payload any) any {
	t.Helper()
	raw, err := Encode(event, payload)
	if err != nil {
		t.Fatalf("Encode(%s): %v", event, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Event != event {
		t.Fatalf("event = %q, want %q", env.Event, event)
	}
	decoded, err := Decode(env)
	if err != nil {
		t.Fatalf("Decode(%s): %v", event, err)
	}
	return decoded
}

func TestDecodeRoundTrips(t *testing.T) {
	got := roundTrip(t, EventAgentThought, Thought{ID: "7", Text: "navigating", Type: "action", ThreadID: "main"})
	if th, ok := got.(Thought); !ok || th.Text != "navigating" || th.ThreadID != "main" {
		t.Fatalf("thought = %#v", got)
	}

	got = roundTrip(t, EventAgentCommand, Command{Command: "open golang.org", ThreadID: "main"})
	if c, ok := got.(Command); !ok || c.Command != "open golang.org" {
		t.Fatalf("command = %#v", got)
	}

	got = roundTrip(t, EventTerminalOutput, TerminalOutput{Output: "ok", ReturnCode: 2})
	if out, ok := got.(TerminalOutput); !ok || out.ReturnCode != 2 {
		t.Fatalf("terminal output = %#v", got)
	}

	got = roundTrip(t, EventGestureLandmarks, Landmarks{Landmarks: [][3]float64{{0.1, 0.2, 0}}})
	if lm, ok := got.(Landmarks); !ok || len(lm.Landmarks) != 1 {
		t.Fatalf("landmarks = %#v", got)
	}

	got = roundTrip(t, EventAgentActions, AgentActions{
		Actions: []ToolAction{{Tool: "terminal", Parameters: map[string]any{"command": "ls"}}},
	})
	if acts, ok := got.(AgentActions); !ok || acts.Actions[0].Tool != "terminal" {
		t.Fatalf("actions = %#v", got)
	}
}

func TestDecodeSharedPayloadEvents(t *testing.T) {
	// fs_list and fs_read share the FSPath payload; the event name carries
	// the operation.
	for _, event := range []string{EventFSList, EventFSRead} {
		got := roundTrip(t, event, FSPath{Path: "docs"})
		if p, ok := got.(FSPath); !ok || p.Path != "docs" {
			t.Fatalf("%s payload = %#v", event, got)
		}
	}
}

func TestDecodePayloadlessEvents(t *testing.T) {
	for _, event := range []string{EventVoiceStop, EventScreenshotRequest, EventVoiceStart, EventVoiceStopCmd} {
		got, err := Decode(Envelope{Event: event})
		if err != nil {
			t.Fatalf("Decode(%s): %v", event, err)
		}
		if got != nil {
			t.Fatalf("Decode(%s) = %#v, want nil", event, got)
		}
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	if _, err := Decode(Envelope{Event: "nope"}); err == nil {
		t.Fatal("expected error for unknown event")
	}
}

func TestDecodeMissingDataYieldsZeroPayload(t *testing.T) {
	got, err := Decode(Envelope{Event: EventAgentState})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st, ok := got.(AgentState); !ok || st.State != "" {
		t.Fatalf("state = %#v", got)
	}
}

func TestDecodeMalformedData(t *testing.T) {
	env := Envelope{Event: EventAgentThought, Data: json.RawMessage(`{"text": 42`)}
	if _, err := Decode(env); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
