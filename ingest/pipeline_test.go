package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *vectorstore.Manager) {
	t.Helper()
	stores, err := vectorstore.NewManager(t.TempDir(), mock.NewMockEmbedder())
	require.NoError(t, err)
	p, err := NewPipeline(stores, opts...)
	require.NoError(t, err)
	return p, stores
}

func TestNewPipeline_RequiresStores(t *testing.T) {
	_, err := NewPipeline(nil)
	require.ErrorIs(t, err, ErrStoreManagerRequired)
}

func TestIngestText_IndexesChunks(t *testing.T) {
	chunker, err := NewChunker(50, 10)
	require.NoError(t, err)
	p, stores := newTestPipeline(t, WithChunker(chunker))

	text := strings.Repeat("documents are split into pieces before indexing ", 10)
	n, err := p.IngestText(context.Background(), "docs", "report.txt", text)
	require.NoError(t, err)
	assert.Greater(t, n, 1)

	info, err := stores.GetOrCreate("docs")
	require.NoError(t, err)
	assert.Equal(t, n, info.ChunkCount)

	query := mock.DeterministicVector("documents are split into pieces before indexing", 384)
	results, err := stores.Search(context.Background(), "docs", query, 0, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "report.txt", results[0].Chunk.Source)
	assert.NotZero(t, results[0].Chunk.TextHash)
}

func TestIngestText_EmptyDocument(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.IngestText(context.Background(), "docs", "empty.txt", "   \n ")
	require.ErrorIs(t, err, core.ErrInvalidParameter)
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIngestText_InvalidStoreID(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.IngestText(context.Background(), "../escape", "doc.txt", "some text")
	require.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestIngestFile(t *testing.T) {
	p, stores := newTestPipeline(t)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("a small document about nothing in particular"), 0644))

	n, err := p.IngestFile(context.Background(), "docs", path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := stores.Search(context.Background(), "docs",
		mock.DeterministicVector("a small document about nothing in particular", 384), 0, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "notes.txt", results[0].Chunk.Source)
}

func TestIngestFile_Missing(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.IngestFile(context.Background(), "docs", filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
