package vectorstore

import (
	"slices"
	"sync"
	"time"

	"github.com/poiesic/docqa/core"
)

// store is the in-memory state of one named vector index.
//
// The mutex serializes appends against reads: Append holds the write lock
// for the whole embed-insert-persist sequence, so readers observe either the
// state before or after an append, never an intermediate one.
type store struct {
	mu sync.RWMutex

	id             string
	vectors        [][]float32
	chunks         []core.Chunk
	dim            int
	createdAt      time.Time
	lastAccessedAt time.Time
	sizeBytes      int64

	// invalid marks a store evicted from the manager after deletion or a
	// failed load; operations holding a stale reference must not use it.
	invalid bool
}

func newStore(id string) *store {
	now := time.Now().UTC()
	return &store{
		id:             id,
		createdAt:      now,
		lastAccessedAt: now,
	}
}

// infoLocked snapshots the store's summary. Caller must hold at least the
// read lock.
func (s *store) infoLocked() StoreInfo {
	return StoreInfo{
		StoreID:        s.id,
		CreatedAt:      s.createdAt,
		LastAccessedAt: s.lastAccessedAt,
		SizeBytes:      s.sizeBytes,
		ChunkCount:     len(s.chunks),
		Dimension:      s.dim,
	}
}

// insertLocked adds vectors and their chunks. Caller must hold the write lock.
func (s *store) insertLocked(vectors [][]float32, chunks []core.Chunk) error {
	for _, vector := range vectors {
		if s.dim == 0 {
			s.dim = len(vector)
		} else if len(vector) != s.dim {
			return ErrDimensionMismatch
		}
	}
	s.vectors = append(s.vectors, vectors...)
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// truncateLocked rolls the store back to n entries after a failed persist,
// so memory matches the last durable state. Caller must hold the write lock.
func (s *store) truncateLocked(n int) {
	s.vectors = s.vectors[:n]
	s.chunks = s.chunks[:n]
	if n == 0 {
		s.dim = 0
	}
}

// searchLocked scores every chunk against the query vector and returns up to
// limit results with similarity >= minScore, highest first. Caller must hold
// at least the read lock.
func (s *store) searchLocked(query []float32, minScore float32, limit int) []core.SearchResult {
	var results []core.SearchResult

	for i, vector := range s.vectors {
		// Cosine similarity; dot product for normalized vectors
		score := dotProduct(query, vector)
		if score >= minScore {
			results = append(results, core.SearchResult{
				Chunk: s.chunks[i],
				Score: score,
			})
		}
	}

	slices.SortFunc(results, func(a, b core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
