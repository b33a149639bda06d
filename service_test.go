package docqa

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithProvider(mock.NewMockProvider()), WithPoolSize(16)}, opts...)
	s, err := NewService(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestService_IngestThenQuery(t *testing.T) {
	s := newTestService(t)

	text := strings.Repeat("the annual report shows revenue grew twelve percent ", 30)
	ingestID, err := s.SubmitIngestText("reports", "annual.txt", text)
	require.NoError(t, err)

	snap, err := s.Await(context.Background(), ingestID, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, core.RequestStateCompleted, snap.State)

	ingested, ok := snap.Result.(IngestResult)
	require.True(t, ok)
	assert.Equal(t, "reports", ingested.StoreID)
	assert.Positive(t, ingested.Chunks)

	queryID, err := s.SubmitQuery(router.QueryRequest{
		Question: "what does the document say about revenue in the report section?",
		StoreIDs: []string{"reports"},
		MinScore: 0.01,
	})
	require.NoError(t, err)

	snap, err = s.Await(context.Background(), queryID, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, core.RequestStateCompleted, snap.State)

	result, ok := snap.Result.(*router.QueryResult)
	require.True(t, ok)
	assert.NotEmpty(t, result.Answer)
	assert.NotEmpty(t, result.Sources)
	assert.Equal(t, "annual.txt", result.Sources[0].Source)
}

func TestService_PollAndAck(t *testing.T) {
	s := newTestService(t)

	id, err := s.SubmitIngestText("docs", "a.txt", "a tiny document")
	require.NoError(t, err)

	snap, err := s.Await(context.Background(), id, 5*time.Second)
	require.NoError(t, err)
	require.True(t, snap.State.Terminal())

	snap, err = s.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, core.RequestKindIngest, snap.Kind)

	require.NoError(t, s.Ack(id))
	_, err = s.Poll(id)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_FailedIngestSurfacesError(t *testing.T) {
	s := newTestService(t)

	id, err := s.SubmitIngestText("docs", "empty.txt", "   ")
	require.NoError(t, err, "validation failures surface through the request state, not submission")

	snap, err := s.Await(context.Background(), id, 5*time.Second)
	require.ErrorIs(t, err, core.ErrInvalidParameter)
	assert.Equal(t, core.RequestStateFailed, snap.State)
}

func TestService_QueriesRunInParallel(t *testing.T) {
	s := newTestService(t)

	// Casual questions skip retrieval, so this exercises pure queue
	// parallelism: every query has its own key and none may wait on another.
	const n = 8
	ids := make([]string, n)
	start := time.Now()
	for i := 0; i < n; i++ {
		id, err := s.SubmitQuery(router.QueryRequest{Question: "hello there"})
		require.NoError(t, err)
		ids[i] = id
	}
	for _, id := range ids {
		snap, err := s.Await(context.Background(), id, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, core.RequestStateCompleted, snap.State)
	}
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestService_RecordsHistory(t *testing.T) {
	s := newTestService(t)

	id, err := s.SubmitQuery(router.QueryRequest{Question: "hello"})
	require.NoError(t, err)
	_, err = s.Await(context.Background(), id, 5*time.Second)
	require.NoError(t, err)

	require.NotNil(t, s.History())
	records, err := s.History().Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].Question)
}

func TestService_WithoutHistory(t *testing.T) {
	s := newTestService(t, WithoutHistory())

	assert.Nil(t, s.History())

	id, err := s.SubmitQuery(router.QueryRequest{Question: "hello"})
	require.NoError(t, err)
	snap, err := s.Await(context.Background(), id, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.RequestStateCompleted, snap.State)
}

func TestService_StartupRetentionCleanup(t *testing.T) {
	root := t.TempDir()

	s, err := NewService(root, WithProvider(mock.NewMockProvider()), WithoutHistory())
	require.NoError(t, err)
	_, err = s.Stores().GetOrCreate("stale")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopen with a zero-store cap; the startup sweep must remove it.
	s2, err := NewService(root,
		WithProvider(mock.NewMockProvider()),
		WithoutHistory(),
		WithRetention(time.Hour, 1),
	)
	require.NoError(t, err)
	defer s2.Close()

	infos, err := s2.Stores().List()
	require.NoError(t, err)
	assert.Len(t, infos, 1, "a single store under the cap survives")

	removed, err := s2.RunRetentionCleanup()
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestService_StoresAccessor(t *testing.T) {
	s := newTestService(t)

	id, err := s.SubmitIngestText("docs", "a.txt", "some document text for the store")
	require.NoError(t, err)
	_, err = s.Await(context.Background(), id, 5*time.Second)
	require.NoError(t, err)

	stats, err := s.Stores().Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StoreCount)

	require.NoError(t, s.Stores().Delete("docs"))
	stats, err = s.Stores().Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.StoreCount)
}
