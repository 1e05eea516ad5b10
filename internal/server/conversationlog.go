package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/neurosurf/neurosurf/internal/config"
	"github.com/neurosurf/neurosurf/internal/tools"
)

// ConversationLogEvent is one line in a session's NDJSON conversation log.
type ConversationLogEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id"`
	Direction  string    `json:"direction"` // inbound | outbound
	EventType  string    `json:"event_type"`
	ContentRaw string    `json:"content_raw,omitempty"`
	Content    string    `json:"content,omitempty"`
}

// ConversationLogger appends conversation events to per-session NDJSON files
// asynchronously, so logging never blocks the realtime channel. When the
// queue is full, events are dropped.
type ConversationLogger struct {
	cfg    config.ConversationLogConfig
	queue  chan ConversationLogEvent
	done   chan struct{}
	closed sync.Once
}

// NewConversationLogger starts the writer goroutine. A disabled config
// returns a logger whose Log is a no-op.
func NewConversationLogger(cfg config.ConversationLogConfig) (*ConversationLogger, error) {
	l := &ConversationLogger{cfg: cfg, done: make(chan struct{})}
	if !cfg.Enabled {
		close(l.done)
		return l, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 1000
	}
	l.queue = make(chan ConversationLogEvent, size)
	go l.run()
	return l, nil
}

// Log enqueues one event. Never blocks.
func (l *ConversationLogger) Log(ev ConversationLogEvent) {
	if !l.cfg.Enabled {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Content == "" {
		ev.Content = cleanForReadability(ev.ContentRaw)
	}
	select {
	case l.queue <- ev:
	default:
		slog.Debug("conversation log queue full, dropping event", "session_id", ev.SessionID)
	}
}

// Close drains the queue and stops the writer.
func (l *ConversationLogger) Close() error {
	if !l.cfg.Enabled {
		return nil
	}
	l.closed.Do(func() { close(l.queue) })
	<-l.done
	return nil
}

func (l *ConversationLogger) run() {
	defer close(l.done)
	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			slog.Warn("conversation log write failed", "session_id", ev.SessionID, "error", err)
		}
	}
}

func (l *ConversationLogger) write(ev ConversationLogEvent) error {
	path := filepath.Join(l.cfg.Dir, sanitizeSegment(ev.SessionID)+".ndjson")
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}

// cleanForReadability strips escape sequences and control characters so the
// logged content is greppable.
func cleanForReadability(raw string) string {
	s := tools.StripANSI(raw)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// sanitizeSegment keeps session IDs filesystem-safe.
func sanitizeSegment(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
