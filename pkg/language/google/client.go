// Package google implements the understanding collaborator on the Google
// Cloud Natural Language API.
package google

import (
	"context"
	"errors"
	"fmt"

	glanguage "google.golang.org/api/language/v1"
	"google.golang.org/api/option"

	"github.com/sito-labs/chatmem-go/pkg/language"
)

// Client is a Google Cloud Natural Language backed language.Analyzer.
type Client struct {
	service *glanguage.Service
}

// Config is the configuration for the Google Natural Language client.
// Exactly one of APIKey or CredentialsFile should be set; when both are
// empty the client falls back to application default credentials.
type Config struct {
	// APIKey is a Google Cloud API key.
	APIKey string

	// CredentialsFile is a path to a service account JSON file.
	CredentialsFile string
}

// NewClient creates a new Natural Language client.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	service, err := glanguage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	return &Client{service: service}, nil
}

// AnalyzeEntities extracts entities and their salience from text.
// Empty input returns no entities without calling the API.
func (c *Client) AnalyzeEntities(ctx context.Context, text string) ([]language.Entity, error) {
	if text == "" {
		return nil, nil
	}

	resp, err := c.service.Documents.AnalyzeEntities(&glanguage.AnalyzeEntitiesRequest{
		Document: plainTextDocument(text),
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("AnalyzeEntities: %w", err)
	}

	entities := make([]language.Entity, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		entities = append(entities, language.Entity{
			Name:     e.Name,
			Type:     e.Type,
			Salience: e.Salience,
		})
	}

	return entities, nil
}

// AnalyzeSentiment derives the document sentiment of text. Empty input
// returns neutral sentiment without calling the API.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (language.Sentiment, error) {
	if text == "" {
		return language.Sentiment{}, nil
	}

	resp, err := c.service.Documents.AnalyzeSentiment(&glanguage.AnalyzeSentimentRequest{
		Document: plainTextDocument(text),
	}).Context(ctx).Do()
	if err != nil {
		return language.Sentiment{}, fmt.Errorf("AnalyzeSentiment: %w", err)
	}

	if resp.DocumentSentiment == nil {
		return language.Sentiment{}, errors.New("AnalyzeSentiment: response carried no document sentiment")
	}

	return language.Sentiment{
		Score:     resp.DocumentSentiment.Score,
		Magnitude: resp.DocumentSentiment.Magnitude,
	}, nil
}

// Close is a no-op; the REST service holds no closable resources.
func (c *Client) Close() error {
	return nil
}

func plainTextDocument(text string) *glanguage.Document {
	return &glanguage.Document{
		Content: text,
		Type:    "PLAIN_TEXT",
	}
}
