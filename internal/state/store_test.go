package state

import (
	"fmt"
	"testing"
	"time"
)

const testFallback = "https://www.google.com"

func activeCount(tabs []Tab) int {
	n := 0
	for _, t := range tabs {
		if t.Active {
			n++
		}
	}
	return n
}

func TestTabInvariantHoldsAcrossRandomOps(t *testing.T) {
	s := New(testFallback)

	// Interleave adds, closes, and activations; after every operation exactly
	// one tab must be active and at least one tab must exist.
	var ids []string
	check := func(step string) {
		t.Helper()
		tabs := s.Tabs()
		if len(tabs) == 0 {
			t.Fatalf("%s: no tabs remain", step)
		}
		if got := activeCount(tabs); got != 1 {
			t.Fatalf("%s: expected exactly 1 active tab, got %d", step, got)
		}
	}

	for i := 0; i < 10; i++ {
		tab := s.AddTab(fmt.Sprintf("https://example.com/%d", i), "")
		ids = append(ids, tab.ID)
		check("add")
	}
	for i, id := range ids {
		if i%2 == 0 {
			s.ActivateTab(id)
			check("activate")
		}
		s.CloseTab(id)
		check("close")
	}
}

func TestCloseLastTabRefused(t *testing.T) {
	s := New(testFallback)
	tabs := s.Tabs()
	if len(tabs) != 1 {
		t.Fatalf("expected 1 seeded tab, got %d", len(tabs))
	}
	if s.CloseTab(tabs[0].ID) {
		t.Fatal("closing the last tab must be refused")
	}
	if len(s.Tabs()) != 1 {
		t.Fatal("tab list changed after refused close")
	}
}

func TestCloseActiveTabReassignsActivityAndURL(t *testing.T) {
	s := New(testFallback)
	first := s.Tabs()[0]
	second := s.AddTab("https://second.example", "Second")

	if got := s.CurrentURL(); got != "https://second.example" {
		t.Fatalf("current URL = %q, want the new tab's URL", got)
	}

	if !s.CloseTab(second.ID) {
		t.Fatal("closing the active tab should succeed")
	}
	active := s.ActiveTab()
	if active.ID != first.ID {
		t.Fatalf("activity fell to tab %q, want first remaining %q", active.ID, first.ID)
	}
	if got := s.CurrentURL(); got != active.URL {
		t.Fatalf("current URL %q is stale, want %q", got, active.URL)
	}
}

func TestActivateTabIsExclusive(t *testing.T) {
	s := New(testFallback)
	a := s.Tabs()[0]
	b := s.AddTab("https://b.example", "B")
	c := s.AddTab("https://c.example", "C")

	s.ActivateTab(a.ID)
	for _, tab := range s.Tabs() {
		want := tab.ID == a.ID
		if tab.Active != want {
			t.Fatalf("tab %q active=%v, want %v", tab.ID, tab.Active, want)
		}
	}
	_ = b
	_ = c
}

func TestRemoveMainThreadRejected(t *testing.T) {
	s := New(testFallback)
	s.AddThread("research")
	before := s.Threads()
	activeBefore := s.ActiveThread()

	if s.RemoveThread(MainThreadID) {
		t.Fatal("removing the main thread must report failure")
	}
	after := s.Threads()
	if len(after) != len(before) {
		t.Fatalf("thread count changed: %d -> %d", len(before), len(after))
	}
	if s.ActiveThread() != activeBefore {
		t.Fatal("active thread changed after rejected removal")
	}
}

func TestRemoveThreadFallsBackToMain(t *testing.T) {
	s := New(testFallback)
	th := s.AddThread("scratch")
	if s.ActiveThread() != th.ID {
		t.Fatal("new thread should become active")
	}
	if !s.RemoveThread(th.ID) {
		t.Fatal("removing a regular thread should succeed")
	}
	if s.ActiveThread() != MainThreadID {
		t.Fatalf("active thread = %q, want main", s.ActiveThread())
	}
	if got := s.Thoughts(th.ID); len(got) != 0 {
		t.Fatal("removed thread kept its thought log")
	}
}

func TestThoughtEvictionKeepsNewest50(t *testing.T) {
	s := New(testFallback)
	for i := 0; i < 60; i++ {
		s.AppendThought(Thought{
			ID:   fmt.Sprintf("t%d", i),
			Text: fmt.Sprintf("thought %d", i),
			Type: ThoughtSystem,
		})
	}
	got := s.Thoughts(MainThreadID)
	if len(got) != 50 {
		t.Fatalf("thought count = %d, want 50", len(got))
	}
	// FIFO eviction: the oldest ten are gone, order preserved.
	if got[0].ID != "t10" {
		t.Fatalf("oldest retained = %q, want t10", got[0].ID)
	}
	if got[len(got)-1].ID != "t59" {
		t.Fatalf("newest retained = %q, want t59", got[len(got)-1].ID)
	}
}

func TestThoughtChunkCreatesThenConcatenates(t *testing.T) {
	s := New(testFallback)

	// Chunk for an unknown id creates the entry (out-of-order delivery).
	s.AppendThoughtChunk("resp-1", "Hello", ThoughtSystem, MainThreadID)
	got := s.Thoughts(MainThreadID)
	if len(got) != 1 || got[0].Text != "Hello" {
		t.Fatalf("unexpected log after first chunk: %+v", got)
	}

	s.AppendThoughtChunk("resp-1", ", world", ThoughtSystem, MainThreadID)
	got = s.Thoughts(MainThreadID)
	if len(got) != 1 {
		t.Fatalf("chunk with known id must not add entries, got %d", len(got))
	}
	if got[0].Text != "Hello, world" {
		t.Fatalf("concatenated text = %q", got[0].Text)
	}
}

func TestThoughtChunkMatchesWithinThreadOnly(t *testing.T) {
	s := New(testFallback)
	th := s.AddThread("side")

	s.AppendThought(Thought{ID: "x", Text: "main copy", Type: ThoughtSystem, ThreadID: MainThreadID})
	s.AppendThoughtChunk("x", " extra", ThoughtSystem, th.ID)

	if got := s.Thoughts(MainThreadID)[0].Text; got != "main copy" {
		t.Fatalf("main thread thought mutated across threads: %q", got)
	}
	side := s.Thoughts(th.ID)
	if len(side) != 1 || side[0].Text != " extra" {
		t.Fatalf("chunk should create an entry in its own thread, got %+v", side)
	}
}

func TestHistoryRingCap(t *testing.T) {
	s := New(testFallback)
	for i := 0; i < 75; i++ {
		s.NavigateActiveTab(fmt.Sprintf("https://site%d.example", i))
	}
	h := s.History()
	if len(h) != 50 {
		t.Fatalf("history length = %d, want 50", len(h))
	}
	if h[0].URL != "https://site74.example" {
		t.Fatalf("newest-first violated, head = %q", h[0].URL)
	}
}

func TestGlitchSelfClears(t *testing.T) {
	s := New(testFallback)
	s.TriggerGlitch(20 * time.Millisecond)
	if !s.Glitching() {
		t.Fatal("glitch flag should be raised immediately")
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Glitching() {
		if time.Now().After(deadline) {
			t.Fatal("glitch flag never cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestVoiceToggleDrivesAgentState(t *testing.T) {
	s := New(testFallback)
	s.SetVoice(true)
	if s.AgentStateNow() != StateListening {
		t.Fatalf("state = %q, want listening", s.AgentStateNow())
	}
	s.SetVoice(false)
	if s.AgentStateNow() != StateIdle {
		t.Fatalf("state = %q, want idle", s.AgentStateNow())
	}
}

func TestChangeHandlerFiresOutsideLock(t *testing.T) {
	s := New(testFallback)
	fired := 0
	s.SetChangeHandler(func() {
		// Reading from inside the handler must not deadlock.
		_ = s.Tabs()
		fired++
	})
	s.SetAgentState(StateActing)
	s.AppendThought(Thought{Text: "hi", Type: ThoughtUser})
	if fired != 2 {
		t.Fatalf("change handler fired %d times, want 2", fired)
	}
}
