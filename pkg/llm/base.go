// Package llm defines the interface to the generative-text collaborator.
//
// The engine only ever sends a prompt and reads back trimmed text; failures
// surface as ordinary errors that callers translate into placeholder
// replies, never as panics.
package llm

import "context"

// Provider is the generative collaborator contract.
type Provider interface {
	// Generate produces text from a single user prompt.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages produces text from a conversation history
	// (system, user and assistant messages).
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// Close releases provider resources.
	Close() error
}

// ImageGenerator is implemented by providers that can also render images
// from a text prompt. It is optional; callers type-assert for it.
type ImageGenerator interface {
	// GenerateImage renders an image and returns its URL.
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Message is a single message in a conversation.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	// Temperature controls randomness (0.0-2.0).
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// Stop contains sequences that end generation.
	Stop []string
}

// GenerateOption configures text generation.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens limits the maximum number of tokens in the response.
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// WithStop sets stop sequences.
func WithStop(stop ...string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Stop = stop
	}
}

// ApplyGenerateOptions resolves a slice of GenerateOption values against
// the defaults (Temperature=0.7, MaxTokens=500).
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   500,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
