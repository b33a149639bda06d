// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

const (
	// DefaultMaxAge is the default retention age for stores.
	DefaultMaxAge = 7 * 24 * time.Hour
	// DefaultMaxCount is the default cap on the number of stores.
	DefaultMaxCount = 20
)

// StoreInfo is a caller-visible summary of one store.
type StoreInfo struct {
	StoreID        string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	SizeBytes      int64
	ChunkCount     int
	Dimension      int
}

// Manager owns the set of named persistent vector stores under a single
// storage root. Every store id is validated before any path is formed, so no
// artifact can resolve outside the root.
//
// The manager's own mutex guards only the store map; each store carries its
// own RWMutex, so unrelated stores never contend with each other.
type Manager struct {
	root     string
	embedder ai.Embedder
	maxAge   time.Duration
	maxCount int
	logger   *slog.Logger

	mu     sync.Mutex
	stores map[string]*store
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxAge sets the retention age used by startup cleanup.
// Default is 7 days.
func WithMaxAge(maxAge time.Duration) Option {
	return func(m *Manager) {
		if maxAge > 0 {
			m.maxAge = maxAge
		}
	}
}

// WithMaxCount sets the store count cap used by startup cleanup.
// Default is 20.
func WithMaxCount(maxCount int) Option {
	return func(m *Manager) {
		if maxCount > 0 {
			m.maxCount = maxCount
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a store manager rooted at root, creating the directory
// if needed. The embedder (typically the embedding cache) is used to embed
// chunks on append.
func NewManager(root string, embedder ai.Embedder, opts ...Option) (*Manager, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}

	m := &Manager{
		root:     root,
		embedder: embedder,
		maxAge:   DefaultMaxAge,
		maxCount: DefaultMaxCount,
		logger:   slog.Default(),
		stores:   make(map[string]*store),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "vectorstore")

	return m, nil
}

// GetOrCreate returns a summary of the named store, creating an empty store
// on first use. Idempotent.
func (m *Manager) GetOrCreate(storeID string) (StoreInfo, error) {
	s, err := m.acquire(storeID, true)
	if err != nil {
		return StoreInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked(), nil
}

// Append embeds chunks through the configured embedder, inserts them into
// the store's index, and persists atomically. The store's write lock is held
// for the entire operation, so concurrent readers observe either the state
// before or after the append, never a partial one. On persistence failure
// the in-memory state rolls back to the last durable state.
func (m *Manager) Append(ctx context.Context, storeID string, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidParameter, ErrNoChunks)
	}

	s, err := m.acquire(storeID, true)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalid {
		return fmt.Errorf("%w: store %s", core.ErrNotFound, storeID)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		if chunks[i].TextHash == 0 {
			chunks[i].TextHash = core.IDFromContent(chunks[i].Text)
		}
		texts[i] = chunks[i].Text
	}

	vectors, err := m.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding failed: %v", core.ErrProvider, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks", core.ErrProvider, len(vectors), len(chunks))
	}

	prev := len(s.vectors)
	if err := s.insertLocked(vectors, chunks); err != nil {
		s.truncateLocked(prev)
		return err
	}
	s.lastAccessedAt = time.Now().UTC()

	if err := m.saveLocked(s); err != nil {
		// Discard the partial in-memory append; disk still holds the
		// last-good state.
		s.truncateLocked(prev)
		return err
	}

	m.logger.Info("appended chunks", "store", storeID, "chunks", len(chunks), "total", len(s.chunks))
	return nil
}

// Search returns up to limit chunks from the store with similarity to the
// query vector of at least minScore, highest first. Read-only: it may run
// concurrently with other searches of the same store, and waits out any
// in-flight append.
func (m *Manager) Search(ctx context.Context, storeID string, query []float32, minScore float32, limit int) ([]core.SearchResult, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: search limit must be positive", core.ErrInvalidParameter)
	}

	s, err := m.acquire(storeID, false)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.invalid {
		return nil, fmt.Errorf("%w: store %s", core.ErrNotFound, storeID)
	}

	return s.searchLocked(query, minScore, limit), nil
}

// Delete removes the store's on-disk and in-memory state. Idempotent.
func (m *Manager) Delete(storeID string) error {
	if err := core.ValidateStoreID(storeID); err != nil {
		return err
	}

	m.mu.Lock()
	s := m.stores[storeID]
	delete(m.stores, storeID)
	m.mu.Unlock()

	if s != nil {
		s.mu.Lock()
		s.invalid = true
		s.mu.Unlock()
	}

	var errs []error
	for _, path := range []string{m.indexPath(storeID), m.metadataPath(storeID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	m.logger.Info("deleted store", "store", storeID)
	return nil
}

// RunRetentionCleanup deletes stores older than maxAge and, if more than
// maxCount stores remain, the oldest excess stores by creation time.
// A failure to remove one store never aborts cleanup of the others; the
// returned error aggregates per-store failures. Returns the ids actually
// removed, for observability.
func (m *Manager) RunRetentionCleanup(maxAge time.Duration, maxCount int) ([]string, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(infos, func(a, b StoreInfo) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	cutoff := time.Now().UTC().Add(-maxAge)
	var removed []string
	var errs []error
	var remaining []StoreInfo

	for _, info := range infos {
		if maxAge > 0 && info.CreatedAt.Before(cutoff) {
			if err := m.Delete(info.StoreID); err != nil {
				errs = append(errs, fmt.Errorf("store %s: %w", info.StoreID, err))
				continue
			}
			removed = append(removed, info.StoreID)
			continue
		}
		remaining = append(remaining, info)
	}

	if maxCount > 0 && len(remaining) > maxCount {
		// remaining is already sorted oldest first
		for _, info := range remaining[:len(remaining)-maxCount] {
			if err := m.Delete(info.StoreID); err != nil {
				errs = append(errs, fmt.Errorf("store %s: %w", info.StoreID, err))
				continue
			}
			removed = append(removed, info.StoreID)
		}
	}

	if len(removed) > 0 {
		m.logger.Info("retention cleanup removed stores", "removed", len(removed))
	}
	return removed, errors.Join(errs...)
}

// List returns summaries of every store persisted under the root, skipping
// unreadable metadata with a warning.
func (m *Manager) List() ([]StoreInfo, error) {
	paths, err := filepath.Glob(filepath.Join(m.root, "*"+metadataSuffix))
	if err != nil {
		return nil, err
	}

	var infos []StoreInfo
	for _, path := range paths {
		storeID := strings.TrimSuffix(filepath.Base(path), metadataSuffix)
		if core.ValidateStoreID(storeID) != nil {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn("unreadable store metadata", "store", storeID, "err", err)
			continue
		}
		var meta storeMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			m.logger.Warn("malformed store metadata", "store", storeID, "err", err)
			continue
		}

		infos = append(infos, StoreInfo{
			StoreID:        meta.StoreID,
			CreatedAt:      meta.CreatedAt,
			LastAccessedAt: meta.LastAccessedAt,
			SizeBytes:      meta.SizeBytes,
			ChunkCount:     len(meta.Chunks),
			Dimension:      meta.Dimension,
		})
	}
	return infos, nil
}

// StorageStats summarizes the storage root for observability.
type StorageStats struct {
	StoreCount     int
	TotalSizeBytes int64
	Oldest         time.Time
	Newest         time.Time
	MaxAge         time.Duration
	MaxCount       int
}

// Stats reports aggregate storage statistics across all persisted stores.
func (m *Manager) Stats() (StorageStats, error) {
	infos, err := m.List()
	if err != nil {
		return StorageStats{}, err
	}

	stats := StorageStats{
		StoreCount: len(infos),
		MaxAge:     m.maxAge,
		MaxCount:   m.maxCount,
	}
	for _, info := range infos {
		stats.TotalSizeBytes += info.SizeBytes
		if stats.Oldest.IsZero() || info.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = info.CreatedAt
		}
		if info.CreatedAt.After(stats.Newest) {
			stats.Newest = info.CreatedAt
		}
	}
	return stats, nil
}

// MaxAge returns the configured retention age.
func (m *Manager) MaxAge() time.Duration { return m.maxAge }

// MaxCount returns the configured store count cap.
func (m *Manager) MaxCount() int { return m.maxCount }

// acquire returns the in-memory store for storeID, loading it from disk on
// first access. With create set, a missing store is initialized empty and
// persisted. Corrupt on-disk state is quarantined and surfaced as an error.
func (m *Manager) acquire(storeID string, create bool) (*store, error) {
	if err := core.ValidateStoreID(storeID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if s, ok := m.stores[storeID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	s := newStore(storeID)
	// Hold the store's write lock across the load so concurrent callers
	// block on the lock rather than seeing a half-loaded store.
	s.mu.Lock()
	m.stores[storeID] = s
	m.mu.Unlock()

	err := m.loadLocked(s)
	switch {
	case err == nil:
		s.mu.Unlock()
		return s, nil

	case os.IsNotExist(err):
		if !create {
			m.evict(storeID, s)
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: store %s", core.ErrNotFound, storeID)
		}
		if perr := m.saveLocked(s); perr != nil {
			m.evict(storeID, s)
			s.mu.Unlock()
			return nil, perr
		}
		s.mu.Unlock()
		m.logger.Info("created store", "store", storeID)
		return s, nil

	case errors.Is(err, core.ErrCorruptStore):
		m.evict(storeID, s)
		s.mu.Unlock()
		m.quarantine(storeID)
		return nil, err

	default:
		m.evict(storeID, s)
		s.mu.Unlock()
		return nil, err
	}
}

// evict marks a store invalid and removes it from the map. Caller must hold
// the store's write lock.
func (m *Manager) evict(storeID string, s *store) {
	s.invalid = true
	m.mu.Lock()
	if m.stores[storeID] == s {
		delete(m.stores, storeID)
	}
	m.mu.Unlock()
}
