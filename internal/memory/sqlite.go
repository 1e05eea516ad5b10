package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const defaultSearchLimit = 10

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed memory repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_thread ON conversations(thread_id, created_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task TEXT NOT NULL,
		result TEXT NOT NULL,
		success INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_task_results_created ON task_results(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddConversation stores one exchange turn.
func (s *SQLiteStore) AddConversation(ctx context.Context, c *Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	query := `INSERT INTO conversations (thread_id, role, text, created_at) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, c.ThreadID, c.Role, c.Text, c.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("conversation insert id: %w", err)
	}
	return nil
}

// SearchConversations matches stored turns by keyword substring.
func (s *SQLiteStore) SearchConversations(ctx context.Context, keyword string, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query := `
		SELECT id, thread_id, role, text, created_at
		FROM conversations WHERE text LIKE ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, "%"+keyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	return scanConversations(rows)
}

// RecentConversations returns the newest turns for a thread.
func (s *SQLiteStore) RecentConversations(ctx context.Context, threadID string, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query := `
		SELECT id, thread_id, role, text, created_at
		FROM conversations WHERE thread_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent conversations: %w", err)
	}
	return scanConversations(rows)
}

func scanConversations(rows *sql.Rows) ([]*Conversation, error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close conversation rows", "error", closeErr)
		}
	}()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.ThreadID, &c.Role, &c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}

// AddPage stores a page summary, replacing any prior record for the URL.
func (s *SQLiteStore) AddPage(ctx context.Context, p *Page) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO pages (url, title, summary, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			created_at = excluded.created_at`

	if _, err := s.db.ExecContext(ctx, query, p.URL, p.Title, p.Summary, p.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	return nil
}

// SearchPages matches stored pages by keyword in URL, title, or summary.
func (s *SQLiteStore) SearchPages(ctx context.Context, keyword string, limit int) ([]*Page, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query := `
		SELECT id, url, title, summary, created_at
		FROM pages WHERE url LIKE ? OR title LIKE ? OR summary LIKE ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	pattern := "%" + keyword + "%"
	rows, err := s.db.QueryContext(ctx, query, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search pages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close page rows", "error", closeErr)
		}
	}()

	var out []*Page
	for rows.Next() {
		var p Page
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.URL, &p.Title, &p.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}

// SaveTaskResult records a completed task outcome.
func (s *SQLiteStore) SaveTaskResult(ctx context.Context, r *TaskResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	query := `INSERT INTO task_results (task, result, success, created_at) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, r.Task, r.Result, r.Success, r.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert task result: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("task result insert id: %w", err)
	}
	return nil
}

// SimilarTasks returns past task results matching the keyword.
func (s *SQLiteStore) SimilarTasks(ctx context.Context, keyword string, limit int) ([]*TaskResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query := `
		SELECT id, task, result, success, created_at
		FROM task_results WHERE task LIKE ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, "%"+keyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("query similar tasks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close task result rows", "error", closeErr)
		}
	}()

	var out []*TaskResult
	for rows.Next() {
		var r TaskResult
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Task, &r.Result, &r.Success, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task result row: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task results: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
