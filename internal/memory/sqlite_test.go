package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestConversationSearchAndRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	turns := []*Conversation{
		{ThreadID: "main", Role: "user", Text: "open the golang blog", CreatedAt: base},
		{ThreadID: "main", Role: "agent", Text: "navigating to go.dev/blog", CreatedAt: base.Add(time.Minute)},
		{ThreadID: "research-1", Role: "user", Text: "research quantum computing", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, c := range turns {
		if err := store.AddConversation(ctx, c); err != nil {
			t.Fatalf("AddConversation: %v", err)
		}
		if c.ID == 0 {
			t.Fatal("insert did not populate ID")
		}
	}

	got, err := store.SearchConversations(ctx, "golang", 10)
	if err != nil {
		t.Fatalf("SearchConversations: %v", err)
	}
	if len(got) != 1 || got[0].Text != "open the golang blog" {
		t.Fatalf("keyword search = %+v", got)
	}

	recent, err := store.RecentConversations(ctx, "main", 10)
	if err != nil {
		t.Fatalf("RecentConversations: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent count = %d, want 2", len(recent))
	}
	if recent[0].Text != "navigating to go.dev/blog" {
		t.Fatalf("recent not newest-first: %+v", recent[0])
	}
}

func TestPageUpsertReplacesByURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddPage(ctx, &Page{URL: "https://go.dev", Title: "Go", Summary: "old"}); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if err := store.AddPage(ctx, &Page{URL: "https://go.dev", Title: "The Go Programming Language", Summary: "new summary"}); err != nil {
		t.Fatalf("AddPage upsert: %v", err)
	}

	got, err := store.SearchPages(ctx, "go.dev", 10)
	if err != nil {
		t.Fatalf("SearchPages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert duplicated row: %d entries", len(got))
	}
	if got[0].Summary != "new summary" {
		t.Fatalf("summary = %q", got[0].Summary)
	}
}

func TestTaskResultSimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	results := []*TaskResult{
		{Task: "research solar panels", Result: "report written", Success: true},
		{Task: "research wind turbines", Result: "timed out", Success: false},
		{Task: "open weather site", Result: "navigated", Success: true},
	}
	for _, r := range results {
		if err := store.SaveTaskResult(ctx, r); err != nil {
			t.Fatalf("SaveTaskResult: %v", err)
		}
	}

	got, err := store.SimilarTasks(ctx, "research", 10)
	if err != nil {
		t.Fatalf("SimilarTasks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("similar count = %d, want 2", len(got))
	}
	for _, r := range got {
		if r.Task == "research solar panels" && !r.Success {
			t.Fatal("success flag did not round-trip")
		}
	}
}

func TestSearchLimitDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := store.AddConversation(ctx, &Conversation{
			ThreadID: "main", Role: "user", Text: "repeat entry",
		}); err != nil {
			t.Fatalf("AddConversation: %v", err)
		}
	}
	got, err := store.SearchConversations(ctx, "repeat", 0)
	if err != nil {
		t.Fatalf("SearchConversations: %v", err)
	}
	if len(got) != defaultSearchLimit {
		t.Fatalf("default limit = %d, want %d", len(got), defaultSearchLimit)
	}
}
