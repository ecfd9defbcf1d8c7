// Package storage defines the persistence contract for the memory engine.
//
// Implementations exist for SQLite (local/default), PostgreSQL and MySQL.
// All five logical tables (messages, entities, profile, threads, summaries)
// are owned exclusively by the engine; no other actor mutates them.
package storage

import (
	"context"
	"time"
)

// Message is a persisted conversation turn.
type Message struct {
	ID        int64
	UserID    string
	SessionID string
	Kind      string
	Content   string
	CreatedAt time.Time
}

// Entity is a persisted detected-entity ledger row.
type Entity struct {
	ID        int64
	UserID    string
	Name      string
	Type      string
	Salience  float64
	CreatedAt time.Time
}

// ProfileEntry is a persisted profile value, unique per (user, category).
type ProfileEntry struct {
	UserID    string
	Category  string
	Content   string
	CreatedAt time.Time
}

// ThreadSegment is a persisted flattened-thread segment.
type ThreadSegment struct {
	ID        int64
	UserID    string
	Segment   string
	CreatedAt time.Time
}

// Summary is a persisted behavioral summary.
type Summary struct {
	ID        int64
	UserID    string
	SessionID string
	Text      string
	CreatedAt time.Time
}

// Store is the persistence contract shared by all backends.
//
// Reads that page history (RecentMessages, RecentThreadSegments,
// RecentSummaries) return rows newest-first; callers reverse when they need
// chronological order.
type Store interface {
	// AppendMessage persists one message.
	AppendMessage(ctx context.Context, msg *Message) error

	// RecentMessages returns up to limit messages for a user, newest first.
	RecentMessages(ctx context.Context, userID string, limit int) ([]*Message, error)

	// RecordEntities appends all supplied entities unconditionally. The
	// ledger is never deduplicated.
	RecordEntities(ctx context.Context, entities []*Entity) error

	// TopEntities returns up to limit entities for a user, descending by
	// salience across all history.
	TopEntities(ctx context.Context, userID string, limit int) ([]*Entity, error)

	// ProfileEntries returns all current profile rows for a user.
	ProfileEntries(ctx context.Context, userID string) ([]*ProfileEntry, error)

	// UpsertProfileEntry writes a profile value atomically: insert when the
	// (user, category) pair is absent, overwrite otherwise. Last write wins.
	UpsertProfileEntry(ctx context.Context, entry *ProfileEntry) error

	// AppendThreadSegment persists one flattened-thread segment.
	AppendThreadSegment(ctx context.Context, seg *ThreadSegment) error

	// RecentThreadSegments returns up to limit segments, newest first.
	RecentThreadSegments(ctx context.Context, userID string, limit int) ([]*ThreadSegment, error)

	// AppendSummary persists one behavioral summary.
	AppendSummary(ctx context.Context, summary *Summary) error

	// RecentSummaries returns up to limit summaries, newest first.
	RecentSummaries(ctx context.Context, userID string, limit int) ([]*Summary, error)

	// HasRecentSummary reports whether the user received a summary within
	// the trailing window.
	HasRecentSummary(ctx context.Context, userID string, window time.Duration) (bool, error)

	// UsersDueForSummary returns users with at least minMessages messages
	// and no summary within the trailing window, in one set-difference
	// query.
	UsersDueForSummary(ctx context.Context, minMessages int, window time.Duration) ([]string, error)

	// Close closes the store and releases resources.
	Close() error
}

// SchemaVersion is the current persisted-layout version, written to the
// schema_version table at initialization.
const SchemaVersion = 1
