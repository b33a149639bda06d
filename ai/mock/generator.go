package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/docqa/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by GenerateStream if set.
	// If nil, uses default echo behavior.
	GenerateFunc func(ctx context.Context, prompt string, opts ai.GenerateOptions, onToken ai.TokenFunc) (string, error)

	// Response is the canned completion returned by the default behavior.
	// If empty, a short acknowledgement of the prompt is produced.
	Response string

	callCount atomic.Int64
}

// NewMockGenerator creates a mock generator with default behavior.
// Note: Returns concrete type to allow test assertions via CallCount().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateStream streams the canned response word by word through onToken
// and returns the full text.
func (m *MockGenerator) GenerateStream(ctx context.Context, prompt string, opts ai.GenerateOptions, onToken ai.TokenFunc) (string, error) {
	m.callCount.Add(1)

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts, onToken)
	}

	response := m.Response
	if response == "" {
		response = "mock answer"
	}

	if onToken != nil {
		for _, word := range strings.SplitAfter(response, " ") {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
			onToken(word)
		}
	}

	return response, nil
}

// CallCount returns the number of times GenerateStream was called.
func (m *MockGenerator) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount.Store(0)
	m.GenerateFunc = nil
	m.Response = ""
}
