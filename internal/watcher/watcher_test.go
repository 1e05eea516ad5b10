package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherCoalescesBursts(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int32
	w, err := New(dir, 50*time.Millisecond, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// A burst of writes lands as a single notification.
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, "f"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	waitForFired(t, &fired, 1)
	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("burst fired %d times, want 1", got)
	}

	// A later change fires again.
	if err := os.WriteFile(filepath.Join(dir, "later.txt"), []byte("y"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForFired(t, &fired, 2)
}

func TestWatcherPicksUpNewSubdirectories(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int32
	w, err := New(dir, 50*time.Millisecond, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	waitForFired(t, &fired, 1)

	// Writes inside the new directory are observed too.
	if err := os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("z"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForFired(t, &fired, 2)
}

func waitForFired(t *testing.T, fired *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for fired.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("fired = %d, want at least %d", fired.Load(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
