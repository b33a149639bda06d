package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent_Deterministic(t *testing.T) {
	a := IDFromContent("the same text")
	b := IDFromContent("the same text")
	c := IDFromContent("different text")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotZero(t, a)
}

func TestRequestState_Terminal(t *testing.T) {
	assert.False(t, RequestStatePending.Terminal())
	assert.False(t, RequestStateRunning.Terminal())
	assert.True(t, RequestStateCompleted.Terminal())
	assert.True(t, RequestStateFailed.Terminal())
}

func TestRequestState_String(t *testing.T) {
	assert.Equal(t, "pending", RequestStatePending.String())
	assert.Equal(t, "running", RequestStateRunning.String())
	assert.Equal(t, "completed", RequestStateCompleted.String())
	assert.Equal(t, "failed", RequestStateFailed.String())
	assert.Equal(t, "unknown", RequestState(99).String())
}

func TestRequestKind_String(t *testing.T) {
	assert.Equal(t, "ingest", RequestKindIngest.String())
	assert.Equal(t, "query", RequestKindQuery.String())
	assert.Equal(t, "unknown", RequestKind(99).String())
}

func TestHistoryRecordMUS_Roundtrip(t *testing.T) {
	in := HistoryRecord{
		Id:         42,
		Question:   "what is in the report?",
		Answer:     "numbers, mostly",
		Intent:     string(IntentDocumentQuestion),
		Confidence: 0.8,
		StoreIDs:   []string{"reports", "archive"},
		Model:      "mistral",
	}

	buf := make([]byte, HistoryRecordMUS.Size(in))
	n := HistoryRecordMUS.Marshal(in, buf)
	require.Equal(t, len(buf), n)

	out, n, err := HistoryRecordMUS.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	assert.Equal(t, in.Id, out.Id)
	assert.Equal(t, in.Question, out.Question)
	assert.Equal(t, in.Answer, out.Answer)
	assert.Equal(t, in.Intent, out.Intent)
	assert.InDelta(t, in.Confidence, out.Confidence, 1e-9)
	assert.Equal(t, in.StoreIDs, out.StoreIDs)
	assert.Equal(t, in.Model, out.Model)
}
