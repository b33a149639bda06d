package cache

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxBytes   = 64 << 20 // 64 MiB of vectors
	defaultMaxEntries = 8192
)

// Embeddings memoizes embedding computations keyed by content hash.
//
// It implements ai.Embedder so it can be placed in front of any provider:
// hits are served from an in-process cache with a byte budget, misses are
// computed by the underlying provider. Concurrent requests for the same
// uncached text collapse into a single provider call.
type Embeddings struct {
	provider ai.Embedder
	cache    *ristretto.Cache[uint64, []float32]
	group    singleflight.Group
	logger   *slog.Logger
}

var _ ai.Embedder = (*Embeddings)(nil)

// Option configures an Embeddings cache.
type Option func(*options)

type options struct {
	maxBytes   int64
	maxEntries int64
	logger     *slog.Logger
}

// WithMaxBytes sets the cache byte budget. Entries are evicted by recency
// and frequency once the budget is exceeded.
func WithMaxBytes(maxBytes int64) Option {
	return func(o *options) {
		if maxBytes > 0 {
			o.maxBytes = maxBytes
		}
	}
}

// WithMaxEntries sets the expected entry capacity used to size the
// admission counters.
func WithMaxEntries(maxEntries int64) Option {
	return func(o *options) {
		if maxEntries > 0 {
			o.maxEntries = maxEntries
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewEmbeddings creates an embedding cache in front of the given provider.
func NewEmbeddings(provider ai.Embedder, opts ...Option) (*Embeddings, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}

	o := &options{
		maxBytes:   defaultMaxBytes,
		maxEntries: defaultMaxEntries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []float32]{
		NumCounters: o.maxEntries * 10,
		MaxCost:     o.maxBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &Embeddings{
		provider: provider,
		cache:    cache,
		logger:   o.logger.With("component", "embedding-cache"),
	}, nil
}

// GetOrCompute returns the embedding for text, computing it at most once.
//
// The key is a BLAKE2b content hash of the text, not the text itself, so the
// cache never retains raw document content. Concurrent callers for the same
// uncached key share one in-flight provider call (single-flight); provider
// errors are returned to every waiter and never cached.
func (e *Embeddings) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	key := uint64(core.IDFromContent(text))

	if vector, ok := e.cache.Get(key); ok {
		return vector, nil
	}

	result, err, _ := e.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		// Re-check under the flight: a previous caller may have stored it
		// between our miss and joining the group.
		if vector, ok := e.cache.Get(key); ok {
			return vector, nil
		}

		vector, err := e.provider.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}

		e.cache.Set(key, vector, vectorCost(vector))
		// Flush the set buffer so a sequential follow-up call hits.
		e.cache.Wait()
		return vector, nil
	})
	if err != nil {
		e.logger.Error("embedding computation failed", "err", err)
		return nil, err
	}

	return result.([]float32), nil
}

// EmbedText implements ai.Embedder via GetOrCompute.
func (e *Embeddings) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.GetOrCompute(ctx, text)
}

// EmbedTexts embeds a batch, serving cached entries and batching the
// remaining misses into a single provider call.
func (e *Embeddings) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missed []string
	var missedIdx []int
	for i, text := range texts {
		key := uint64(core.IDFromContent(text))
		if vector, ok := e.cache.Get(key); ok {
			vectors[i] = vector
			continue
		}
		missed = append(missed, text)
		missedIdx = append(missedIdx, i)
	}

	if len(missed) == 0 {
		return vectors, nil
	}

	e.logger.Debug("embedding cache misses", "missed", len(missed), "total", len(texts))

	computed, err := e.provider.EmbedTexts(ctx, missed)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(missed) {
		return nil, ErrEmbeddingMismatch
	}

	for i, vector := range computed {
		vectors[missedIdx[i]] = vector
		e.cache.Set(uint64(core.IDFromContent(missed[i])), vector, vectorCost(vector))
	}
	e.cache.Wait()

	return vectors, nil
}

// Metrics exposes cache hit/miss/eviction counters for observability.
func (e *Embeddings) Metrics() *ristretto.Metrics {
	return e.cache.Metrics
}

// Close releases the cache's internal goroutines.
func (e *Embeddings) Close() {
	e.cache.Close()
}

// vectorCost is the byte cost of a cached vector.
func vectorCost(vector []float32) int64 {
	return int64(len(vector)) * 4
}
