package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs. It is used for
// embedding-cache keys and chunk text hashes.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Chunk represents a contiguous span of source text to be embedded and indexed.
type Chunk struct {
	Source   string // Originating document name
	Offset   int    // Byte offset of the chunk within the source text
	Text     string
	TextHash ID // Content hash of Text, used for deduplication and cache keys
}

// SearchResult represents a retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// QueryIntent classifies what a user query is asking for.
type QueryIntent string

const (
	// IntentDocumentQuestion indicates a question about indexed documents.
	IntentDocumentQuestion QueryIntent = "document_question"
	// IntentCasualChat indicates conversational small talk requiring no retrieval.
	IntentCasualChat QueryIntent = "casual_chat"
	// IntentClarification indicates an unclear query that needs more context.
	IntentClarification QueryIntent = "clarification"
	// IntentAmbiguous indicates the classifier could not decide.
	IntentAmbiguous QueryIntent = "ambiguous"
)

// RequestKind identifies the type of a queued request.
type RequestKind int

const (
	// RequestKindIngest represents a document ingestion request.
	RequestKindIngest RequestKind = iota + 1
	// RequestKindQuery represents a query answering request.
	RequestKindQuery
)

// String returns the lowercase name of the request kind.
func (k RequestKind) String() string {
	switch k {
	case RequestKindIngest:
		return "ingest"
	case RequestKindQuery:
		return "query"
	default:
		return "unknown"
	}
}

// RequestState is the lifecycle state of a queued request.
// Transitions are monotonic: pending -> running -> completed or failed.
type RequestState int

const (
	// RequestStatePending means the request is admitted but not yet running.
	RequestStatePending RequestState = iota + 1
	// RequestStateRunning means the request's work is executing.
	RequestStateRunning
	// RequestStateCompleted means the work finished successfully.
	RequestStateCompleted
	// RequestStateFailed means the work returned an error or timed out.
	RequestStateFailed
)

// Terminal reports whether the state is a terminal state.
func (s RequestState) Terminal() bool {
	return s == RequestStateCompleted || s == RequestStateFailed
}

// String returns the lowercase name of the request state.
func (s RequestState) String() string {
	switch s {
	case RequestStatePending:
		return "pending"
	case RequestStateRunning:
		return "running"
	case RequestStateCompleted:
		return "completed"
	case RequestStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// HistoryRecord represents one answered query in the persistent history log.
type HistoryRecord struct {
	Id         ID
	Question   string
	Answer     string
	Intent     string
	Confidence float64
	StoreIDs   []string // Stores the answer was grounded on, empty for chat
	Model      string
	Elapsed    time.Duration
	CreatedAt  time.Time
}
