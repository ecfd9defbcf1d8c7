// Package core provides the conversational memory engine: message and
// profile persistence, signal folding, context assembly, and the periodic
// summary scheduler.
package core

import "time"

// MessageKind distinguishes the two directions of a conversation turn.
type MessageKind string

const (
	// KindQuestion is an inbound user message.
	KindQuestion MessageKind = "question"

	// KindAnswer is a generated reply.
	KindAnswer MessageKind = "answer"
)

// Message is a single conversation turn. Messages are immutable once
// written and ordered by CreatedAt within a user.
type Message struct {
	// ID is the unique identifier of the message.
	ID int64 `json:"id"`

	// UserID identifies the user the message belongs to.
	UserID string `json:"user_id"`

	// SessionID groups messages belonging to one conversation session.
	SessionID string `json:"session_id"`

	// Kind is the message direction: question or answer.
	Kind MessageKind `json:"kind"`

	// Content is the message text.
	Content string `json:"content"`

	// CreatedAt is when the message was written.
	CreatedAt time.Time `json:"created_at"`
}

// DetectedEntity is one entity extracted from a user message by the
// understanding collaborator. The ledger is append-only: the same name may
// appear many times across a user's history.
type DetectedEntity struct {
	// ID is the unique identifier of the ledger row.
	ID int64 `json:"id"`

	// UserID identifies the user the entity was detected for.
	UserID string `json:"user_id"`

	// Name is the entity text as returned by the collaborator.
	Name string `json:"name"`

	// Type is the collaborator-supplied entity type (PERSON, LOCATION, ...).
	Type string `json:"type"`

	// Salience is the collaborator-supplied importance score (0.0-1.0).
	Salience float64 `json:"salience"`

	// CreatedAt is when the entity was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// ProfileEntry is one current value of a user's profile. There is at most
// one row per (user, category); writes are upserts.
type ProfileEntry struct {
	// UserID identifies the user the entry belongs to.
	UserID string `json:"user_id"`

	// Category is an open-ended profile dimension ("role", "tone", ...).
	Category string `json:"category"`

	// Content is the current value for the category.
	Content string `json:"content"`

	// CreatedAt is when the current value was written.
	CreatedAt time.Time `json:"created_at"`
}

// ThreadSegment is one segment of a user's flattened conversation thread,
// kept separately from Message for cheap thread reconstruction.
type ThreadSegment struct {
	// ID is the unique identifier of the segment.
	ID int64 `json:"id"`

	// UserID identifies the user the segment belongs to.
	UserID string `json:"user_id"`

	// Segment is the raw segment text.
	Segment string `json:"segment"`

	// CreatedAt is when the segment was written.
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a generated behavioral summary. Append-only; the scheduler
// keeps each user to one summary per trailing freshness window (best
// effort, see SummaryScheduler).
type Summary struct {
	// ID is the unique identifier of the summary.
	ID int64 `json:"id"`

	// UserID identifies the summarized user.
	UserID string `json:"user_id"`

	// SessionID is the session label the summary was produced under.
	SessionID string `json:"session_id"`

	// Text is the generated summary text.
	Text string `json:"text"`

	// CreatedAt is when the summary was written.
	CreatedAt time.Time `json:"created_at"`
}

// Profile is a user's current profile as a category -> content mapping.
// Absent categories are absent keys, never empty values.
type Profile map[string]string

// Get returns the value for a category, or fallback when the category is
// absent or empty.
func (p Profile) Get(category, fallback string) string {
	if v, ok := p[category]; ok && v != "" {
		return v
	}
	return fallback
}
