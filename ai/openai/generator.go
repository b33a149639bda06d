package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible completion APIs.
type Generator struct {
	client *openai.LLM
	logger *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken("none"),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// GenerateStream produces a completion for the prompt, streaming tokens
// through onToken as they arrive from the model.
func (g *Generator) GenerateStream(ctx context.Context, prompt string, opts ai.GenerateOptions, onToken ai.TokenFunc) (string, error) {
	g.logger.Debug("generating completion", "prompt_length", len(prompt), "model", opts.Model)

	callOpts := []llms.CallOption{
		llms.WithTemperature(opts.Temperature),
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if onToken != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			onToken(string(chunk))
			return nil
		}))
	}

	completion, err := llms.GenerateFromSinglePrompt(ctx, g.client, prompt, callOpts...)
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", err
	}

	return completion, nil
}
