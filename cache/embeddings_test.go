package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddings_NilProvider(t *testing.T) {
	_, err := NewEmbeddings(nil)
	require.ErrorIs(t, err, ErrProviderRequired)
}

func TestGetOrCompute_CachesResult(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	cache, err := NewEmbeddings(embedder)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()

	first, err := cache.GetOrCompute(ctx, "the quick brown fox")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(t, 1, embedder.CallCount())

	second, err := cache.GetOrCompute(ctx, "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.CallCount(), "second call should be a cache hit")
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		// Hold all concurrent callers in flight long enough to overlap.
		time.Sleep(50 * time.Millisecond)
		return mock.DeterministicVector(text, 8), nil
	}

	cache, err := NewEmbeddings(embedder)
	require.NoError(t, err)
	defer cache.Close()

	const callers = 16
	var wg sync.WaitGroup
	results := make([][]float32, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrCompute(context.Background(), "shared uncached text")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 1, embedder.CallCount(), "concurrent callers must share one provider call")
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	failures := 0
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if failures == 0 {
			failures++
			return nil, errors.New("provider unavailable")
		}
		return mock.DeterministicVector(text, 8), nil
	}

	cache, err := NewEmbeddings(embedder)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()

	_, err = cache.GetOrCompute(ctx, "flaky text")
	require.Error(t, err)

	// Failure must not be cached; the retry reaches the provider.
	vector, err := cache.GetOrCompute(ctx, "flaky text")
	require.NoError(t, err)
	assert.NotEmpty(t, vector)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestEmbedTexts_BatchesMisses(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	cache, err := NewEmbeddings(embedder)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()

	// Prime one entry.
	cached, err := cache.GetOrCompute(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, 1, embedder.CallCount())

	vectors, err := cache.EmbedTexts(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, cached, vectors[0])
	assert.NotEmpty(t, vectors[1])
	assert.NotEmpty(t, vectors[2])
	// One batched provider call for the two misses.
	assert.Equal(t, 2, embedder.CallCount())

	// Everything cached now; no further provider calls.
	_, err = cache.EmbedTexts(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestEmbedTexts_MismatchedProviderResult(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{0.1}}, nil // wrong count
	}

	cache, err := NewEmbeddings(embedder)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.EmbedTexts(context.Background(), []string{"one", "two"})
	require.ErrorIs(t, err, ErrEmbeddingMismatch)
}
