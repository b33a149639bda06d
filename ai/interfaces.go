package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenFunc receives completion tokens as they stream from the model.
type TokenFunc func(token string)

// GenerateOptions holds per-call sampling parameters for text generation.
// Zero values fall back to the generator's configured defaults.
type GenerateOptions struct {
	// Model overrides the configured generation model when non-empty.
	Model string

	// Temperature controls sampling randomness. Valid range is [0, 2].
	Temperature float64

	// MaxTokens caps the completion length when greater than zero.
	MaxTokens int
}

// Generator produces text completions from a language model.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// GenerateStream produces a completion for the prompt, invoking onToken
	// for each token as it arrives from the model. onToken may be nil for
	// callers that only need the final text.
	// Returns the complete generated text.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions, onToken TokenFunc) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Generator instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the text generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
