package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m, err := NewManager(root, mock.NewMockEmbedder(), opts...)
	require.NoError(t, err)
	return m, root
}

func testChunks(texts ...string) []core.Chunk {
	chunks := make([]core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = core.Chunk{Source: "test.txt", Offset: i * 100, Text: text}
	}
	return chunks
}

func TestNewManager_RequiresEmbedder(t *testing.T) {
	_, err := NewManager(t.TempDir(), nil)
	require.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestStoreID_ValidatedBeforeAnyPathUse(t *testing.T) {
	m, root := newTestManager(t)

	bad := []string{"", "../escape", "a/b", "store id", ".hidden", "-leading"}
	for _, id := range bad {
		_, err := m.GetOrCreate(id)
		assert.ErrorIs(t, err, core.ErrInvalidParameter, "id %q", id)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected ids must not touch the filesystem")
}

func TestAppendAndSearch(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Append(context.Background(), "docs", testChunks("alpha text", "beta text", "gamma text"))
	require.NoError(t, err)

	query := mock.DeterministicVector("beta text", 384)
	results, err := m.Search(context.Background(), "docs", query, 0.0, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
	assert.Equal(t, "beta text", results[0].Chunk.Text, "exact match must rank first")
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestAppend_NoChunks(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.Append(context.Background(), "docs", nil)
	require.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestSearch_UnknownStore(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Search(context.Background(), "nope", make([]float32, 8), 0, 5)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestAppend_FillsTextHash(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Append(context.Background(), "docs", testChunks("hello")))

	results, err := m.Search(context.Background(), "docs", mock.DeterministicVector("hello", 384), 0, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.IDFromContent("hello"), results[0].Chunk.TextHash)
}

func TestPersistence_Roundtrip(t *testing.T) {
	m, root := newTestManager(t)

	require.NoError(t, m.Append(context.Background(), "docs", testChunks("one", "two")))
	require.NoError(t, m.Append(context.Background(), "docs", testChunks("three")))

	// A fresh manager on the same root must see identical state.
	m2, err := NewManager(root, mock.NewMockEmbedder())
	require.NoError(t, err)

	info, err := m2.GetOrCreate("docs")
	require.NoError(t, err)
	assert.Equal(t, 3, info.ChunkCount)
	assert.Equal(t, 384, info.Dimension)

	results, err := m2.Search(context.Background(), "docs", mock.DeterministicVector("three", 384), 0, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "three", results[0].Chunk.Text)
	assert.Equal(t, 200, results[0].Chunk.Offset)
}

func TestUncommittedAppend_TruncatedOnLoad(t *testing.T) {
	m, root := newTestManager(t)
	require.NoError(t, m.Append(context.Background(), "docs", testChunks("committed")))

	// Simulate a crash between the blob rename and the metadata rename: the
	// blob holds an extra vector the metadata never committed.
	blob := MarshalIndex(384, [][]float32{
		mock.DeterministicVector("committed", 384),
		mock.DeterministicVector("uncommitted", 384),
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs"+indexSuffix), blob, 0644))

	m2, err := NewManager(root, mock.NewMockEmbedder())
	require.NoError(t, err)

	info, err := m2.GetOrCreate("docs")
	require.NoError(t, err)
	assert.Equal(t, 1, info.ChunkCount, "loader must truncate to the committed length")
}

func TestCorruptStore_QuarantinedNotDeleted(t *testing.T) {
	m, root := newTestManager(t)
	require.NoError(t, m.Append(context.Background(), "docs", testChunks("data")))

	require.NoError(t, os.WriteFile(filepath.Join(root, "docs"+indexSuffix), []byte("garbage"), 0644))

	m2, err := NewManager(root, mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = m2.Search(context.Background(), "docs", make([]float32, 384), 0, 5)
	require.ErrorIs(t, err, core.ErrCorruptStore)

	// Artifacts renamed aside, not destroyed.
	_, err = os.Stat(filepath.Join(root, "docs"+indexSuffix+corruptSuffix))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "docs"+metadataSuffix+corruptSuffix))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "docs"+metadataSuffix))
	assert.True(t, os.IsNotExist(err))
}

func TestDimensionMismatch_Rejected(t *testing.T) {
	m, _ := newTestManager(t)

	embedder := mock.NewMockEmbedder()
	m.embedder = embedder

	require.NoError(t, m.Append(context.Background(), "docs", testChunks("first")))

	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{make([]float32, 128)}, nil
	}
	err := m.Append(context.Background(), "docs", testChunks("wrong-dim"))
	require.ErrorIs(t, err, ErrDimensionMismatch)

	// The failed append must not leave a partial entry behind.
	info, err := m.GetOrCreate("docs")
	require.NoError(t, err)
	assert.Equal(t, 1, info.ChunkCount)
}

func TestEmbedderFailure_SurfacesProviderError(t *testing.T) {
	m, _ := newTestManager(t)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}
	m.embedder = embedder

	err := m.Append(context.Background(), "docs", testChunks("text"))
	require.ErrorIs(t, err, core.ErrProvider)
}

func TestDelete_Idempotent(t *testing.T) {
	m, root := newTestManager(t)
	require.NoError(t, m.Append(context.Background(), "docs", testChunks("data")))

	require.NoError(t, m.Delete("docs"))
	require.NoError(t, m.Delete("docs"), "second delete must be a no-op")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = m.Search(context.Background(), "docs", make([]float32, 384), 0, 5)
	require.ErrorIs(t, err, core.ErrNotFound)
}

// backdate rewrites a store's persisted creation time, simulating a store
// created in the past.
func backdate(t *testing.T, root, storeID string, createdAt time.Time) {
	t.Helper()
	path := filepath.Join(root, storeID+metadataSuffix)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var meta storeMetadata
	require.NoError(t, json.Unmarshal(data, &meta))
	meta.CreatedAt = createdAt

	data, err = json.MarshalIndent(meta, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestRetentionCleanup_ByAge(t *testing.T) {
	m, root := newTestManager(t)

	for _, id := range []string{"old-1", "old-2", "fresh"} {
		_, err := m.GetOrCreate(id)
		require.NoError(t, err)
	}
	backdate(t, root, "old-1", time.Now().UTC().Add(-10*24*time.Hour))
	backdate(t, root, "old-2", time.Now().UTC().Add(-8*24*time.Hour))

	m2, err := NewManager(root, mock.NewMockEmbedder())
	require.NoError(t, err)

	removed, err := m2.RunRetentionCleanup(7*24*time.Hour, 20)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old-1", "old-2"}, removed)

	infos, err := m2.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "fresh", infos[0].StoreID)
}

func TestRetentionCleanup_ByCount(t *testing.T) {
	m, root := newTestManager(t)

	ids := []string{"s1", "s2", "s3", "s4", "s5"}
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range ids {
		_, err := m.GetOrCreate(id)
		require.NoError(t, err)
		backdate(t, root, id, base.Add(time.Duration(i)*time.Minute))
	}

	m2, err := NewManager(root, mock.NewMockEmbedder())
	require.NoError(t, err)

	removed, err := m2.RunRetentionCleanup(7*24*time.Hour, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, removed, "oldest stores beyond the cap go first")

	infos, err := m2.List()
	require.NoError(t, err)
	assert.Len(t, infos, 3)
}

func TestStats(t *testing.T) {
	m, _ := newTestManager(t, WithMaxCount(5), WithMaxAge(48*time.Hour))

	require.NoError(t, m.Append(context.Background(), "a", testChunks("one")))
	require.NoError(t, m.Append(context.Background(), "b", testChunks("two", "three")))

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.StoreCount)
	assert.Positive(t, stats.TotalSizeBytes)
	assert.Equal(t, 5, stats.MaxCount)
	assert.Equal(t, 48*time.Hour, stats.MaxAge)
	assert.False(t, stats.Oldest.IsZero())
	assert.False(t, stats.Newest.Before(stats.Oldest))
}

func TestConcurrentAppendAndSearch(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Append(context.Background(), "docs", testChunks("seed")))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				chunks := testChunks("writer text")
				assert.NoError(t, m.Append(context.Background(), "docs", chunks))
			}
		}(i)
		go func() {
			defer wg.Done()
			query := mock.DeterministicVector("seed", 384)
			for j := 0; j < 20; j++ {
				results, err := m.Search(context.Background(), "docs", query, 0, 5)
				assert.NoError(t, err)
				assert.NotEmpty(t, results, "the seeded chunk is always visible")
			}
		}()
	}
	wg.Wait()

	info, err := m.GetOrCreate("docs")
	require.NoError(t, err)
	assert.Equal(t, 41, info.ChunkCount)
}
