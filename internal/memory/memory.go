// Package memory provides persistent agent memory: conversation turns,
// visited page summaries, and completed task outcomes.
package memory

import (
	"context"
	"time"
)

// Conversation is one stored user/agent exchange.
type Conversation struct {
	ID        int64
	ThreadID  string
	Role      string
	Text      string
	CreatedAt time.Time
}

// Page is a stored summary of a visited or scraped page.
type Page struct {
	ID        int64
	URL       string
	Title     string
	Summary   string
	CreatedAt time.Time
}

// TaskResult records the outcome of a completed agent task.
type TaskResult struct {
	ID        int64
	Task      string
	Result    string
	Success   bool
	CreatedAt time.Time
}

// Repository defines the interface for persisting agent memory.
type Repository interface {
	// AddConversation stores one exchange turn.
	AddConversation(ctx context.Context, c *Conversation) error

	// SearchConversations returns recent turns matching the keyword,
	// newest first, up to limit.
	SearchConversations(ctx context.Context, keyword string, limit int) ([]*Conversation, error)

	// RecentConversations returns the newest turns for a thread, up to limit.
	RecentConversations(ctx context.Context, threadID string, limit int) ([]*Conversation, error)

	// AddPage stores a page summary, replacing any prior record for the URL.
	AddPage(ctx context.Context, p *Page) error

	// SearchPages returns stored pages matching the keyword, newest first.
	SearchPages(ctx context.Context, keyword string, limit int) ([]*Page, error)

	// SaveTaskResult records a completed task outcome.
	SaveTaskResult(ctx context.Context, r *TaskResult) error

	// SimilarTasks returns past task results matching the keyword, newest first.
	SimilarTasks(ctx context.Context, keyword string, limit int) ([]*TaskResult, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
