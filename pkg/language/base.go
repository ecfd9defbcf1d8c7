// Package language defines the interface to the text-understanding
// collaborator: entity extraction and sentiment analysis.
package language

import "context"

// Entity is one entity detected in a piece of text.
type Entity struct {
	// Name is the entity text.
	Name string `json:"name"`

	// Type is the entity type (PERSON, LOCATION, CONSUMER_GOOD, ...).
	Type string `json:"type"`

	// Salience is the importance of the entity within the text (0.0-1.0).
	Salience float64 `json:"salience"`
}

// Sentiment is the overall emotional signal of a piece of text.
type Sentiment struct {
	// Score is the polarity (-1.0 negative to 1.0 positive).
	Score float64 `json:"score"`

	// Magnitude is the emotional intensity (0.0 and up).
	Magnitude float64 `json:"magnitude"`
}

// Analyzer is the understanding collaborator contract.
//
// Both methods treat empty input as an empty result, never an error: an
// empty message has no entities and neutral sentiment.
type Analyzer interface {
	// AnalyzeEntities extracts entities from text, ordered as returned by
	// the collaborator.
	AnalyzeEntities(ctx context.Context, text string) ([]Entity, error)

	// AnalyzeSentiment derives the overall sentiment of text.
	AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error)

	// Close releases analyzer resources.
	Close() error
}
