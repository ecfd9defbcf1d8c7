// Package postgres provides the PostgreSQL storage backend.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/sito-labs/chatmem-go/pkg/storage"
)

// Client implements storage.Store using PostgreSQL as the backend.
type Client struct {
	db *sql.DB
}

// Config contains configuration for the PostgreSQL store.
type Config struct {
	// DSN is the lib/pq connection string, e.g.
	// "host=localhost user=chatmem dbname=chatmem sslmode=disable".
	DSN string
}

// NewClient connects to the database, creates the schema if needed and
// records the schema version.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	client := &Client{db: db}
	if err := client.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_messages (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('question', 'answer')),
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_messages_user_created
			ON user_messages(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS detected_entities (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			salience DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detected_entities_user_salience
			ON detected_entities(user_id, salience)`,
		`CREATE TABLE IF NOT EXISTS user_profile (
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE(user_id, category)
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			thread TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_summaries (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_summaries_user_created
			ON user_summaries(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initSchema: %w", err)
		}
	}

	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("initSchema: %w", err)
	}
	if count == 0 {
		if _, err := c.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES ($1)", storage.SchemaVersion); err != nil {
			return fmt.Errorf("initSchema: %w", err)
		}
	}

	return nil
}

// AppendMessage persists one message.
func (c *Client) AppendMessage(ctx context.Context, msg *storage.Message) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO user_messages (id, user_id, session_id, kind, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.UserID, msg.SessionID, msg.Kind, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("AppendMessage: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages for a user, newest first.
func (c *Client) RecentMessages(ctx context.Context, userID string, limit int) ([]*storage.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, kind, content, created_at
		FROM user_messages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentMessages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*storage.Message
	for rows.Next() {
		var m storage.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.Kind, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("RecentMessages: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentMessages: %w", err)
	}

	return messages, nil
}

// RecordEntities appends all supplied entities in one transaction.
func (c *Client) RecordEntities(ctx context.Context, entities []*storage.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("RecordEntities: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detected_entities (id, user_id, name, type, salience, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("RecordEntities: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entities {
		if _, err := stmt.ExecContext(ctx, e.ID, e.UserID, e.Name, e.Type, e.Salience, e.CreatedAt); err != nil {
			return fmt.Errorf("RecordEntities: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("RecordEntities: %w", err)
	}
	return nil
}

// TopEntities returns the limit highest-salience entities for a user.
func (c *Client) TopEntities(ctx context.Context, userID string, limit int) ([]*storage.Entity, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, salience, created_at
		FROM detected_entities
		WHERE user_id = $1
		ORDER BY salience DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("TopEntities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []*storage.Entity
	for rows.Next() {
		var e storage.Entity
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.Type, &e.Salience, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("TopEntities: %w", err)
		}
		entities = append(entities, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TopEntities: %w", err)
	}

	return entities, nil
}

// ProfileEntries returns all current profile rows for a user.
func (c *Client) ProfileEntries(ctx context.Context, userID string) ([]*storage.ProfileEntry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT user_id, category, content, created_at
		FROM user_profile
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ProfileEntries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*storage.ProfileEntry
	for rows.Next() {
		var p storage.ProfileEntry
		if err := rows.Scan(&p.UserID, &p.Category, &p.Content, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ProfileEntries: %w", err)
		}
		entries = append(entries, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ProfileEntries: %w", err)
	}

	return entries, nil
}

// UpsertProfileEntry writes a profile value atomically via ON CONFLICT.
func (c *Client) UpsertProfileEntry(ctx context.Context, entry *storage.ProfileEntry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO user_profile (user_id, category, content, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, category)
		DO UPDATE SET content = EXCLUDED.content, created_at = EXCLUDED.created_at
	`, entry.UserID, entry.Category, entry.Content, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("UpsertProfileEntry: %w", err)
	}
	return nil
}

// AppendThreadSegment persists one flattened-thread segment.
func (c *Client) AppendThreadSegment(ctx context.Context, seg *storage.ThreadSegment) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, thread, created_at)
		VALUES ($1, $2, $3, $4)
	`, seg.ID, seg.UserID, seg.Segment, seg.CreatedAt)
	if err != nil {
		return fmt.Errorf("AppendThreadSegment: %w", err)
	}
	return nil
}

// RecentThreadSegments returns up to limit segments, newest first.
func (c *Client) RecentThreadSegments(ctx context.Context, userID string, limit int) ([]*storage.ThreadSegment, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, thread, created_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentThreadSegments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var segments []*storage.ThreadSegment
	for rows.Next() {
		var s storage.ThreadSegment
		if err := rows.Scan(&s.ID, &s.UserID, &s.Segment, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("RecentThreadSegments: %w", err)
		}
		segments = append(segments, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentThreadSegments: %w", err)
	}

	return segments, nil
}

// AppendSummary persists one behavioral summary.
func (c *Client) AppendSummary(ctx context.Context, summary *storage.Summary) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO user_summaries (id, user_id, session_id, summary, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, summary.ID, summary.UserID, summary.SessionID, summary.Text, summary.CreatedAt)
	if err != nil {
		return fmt.Errorf("AppendSummary: %w", err)
	}
	return nil
}

// RecentSummaries returns up to limit summaries, newest first.
func (c *Client) RecentSummaries(ctx context.Context, userID string, limit int) ([]*storage.Summary, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, summary, created_at
		FROM user_summaries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentSummaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*storage.Summary
	for rows.Next() {
		var s storage.Summary
		if err := rows.Scan(&s.ID, &s.UserID, &s.SessionID, &s.Text, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("RecentSummaries: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentSummaries: %w", err)
	}

	return summaries, nil
}

// HasRecentSummary reports whether the user received a summary within the
// trailing window.
func (c *Client) HasRecentSummary(ctx context.Context, userID string, window time.Duration) (bool, error) {
	cutoff := time.Now().Add(-window)

	var count int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_summaries
		WHERE user_id = $1 AND created_at >= $2
	`, userID, cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("HasRecentSummary: %w", err)
	}

	return count > 0, nil
}

// UsersDueForSummary returns users with at least minMessages messages and
// no summary within the trailing window.
func (c *Client) UsersDueForSummary(ctx context.Context, minMessages int, window time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-window)

	rows, err := c.db.QueryContext(ctx, `
		SELECT user_id FROM user_messages
		WHERE user_id NOT IN (
			SELECT user_id FROM user_summaries
			WHERE created_at >= $1
		)
		GROUP BY user_id
		HAVING COUNT(*) >= $2
	`, cutoff, minMessages)
	if err != nil {
		return nil, fmt.Errorf("UsersDueForSummary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("UsersDueForSummary: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("UsersDueForSummary: %w", err)
	}

	return users, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
