package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/poiesic/docqa/core"
)

const (
	indexSuffix    = ".vec"
	metadataSuffix = ".json"
	corruptSuffix  = ".corrupt"
	tempSuffix     = ".tmp"
)

// chunkMetadata is the persisted form of a chunk record. It is plain
// structured JSON so operators can inspect it and loading can never execute
// code.
type chunkMetadata struct {
	Source   string `json:"source"`
	Offset   int    `json:"offset"`
	TextHash string `json:"text_hash"`
	Text     string `json:"text"`
}

// storeMetadata is the persisted per-store metadata artifact.
type storeMetadata struct {
	StoreID        string          `json:"store_id"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	SizeBytes      int64           `json:"size_bytes"`
	Dimension      int             `json:"dimension"`
	Chunks         []chunkMetadata `json:"chunks"`
}

func (m *Manager) indexPath(storeID string) string {
	return filepath.Join(m.root, storeID+indexSuffix)
}

func (m *Manager) metadataPath(storeID string) string {
	return filepath.Join(m.root, storeID+metadataSuffix)
}

// saveLocked persists a store atomically. Caller must hold the store's
// write lock.
//
// Both artifacts are written to temporary files and renamed into place, the
// index blob first and the metadata last. The metadata rename is the commit
// point: since stores are append-only, a crash between the two renames
// leaves a longer blob with shorter metadata, and the loader truncates the
// blob back to the committed length — the last-good state.
func (m *Manager) saveLocked(s *store) error {
	blob := MarshalIndex(s.dim, s.vectors)

	chunks := make([]chunkMetadata, len(s.chunks))
	for i, chunk := range s.chunks {
		chunks[i] = chunkMetadata{
			Source:   chunk.Source,
			Offset:   chunk.Offset,
			TextHash: strconv.FormatUint(uint64(chunk.TextHash), 10),
			Text:     chunk.Text,
		}
	}

	meta := storeMetadata{
		StoreID:        s.id,
		CreatedAt:      s.createdAt,
		LastAccessedAt: s.lastAccessedAt,
		SizeBytes:      int64(len(blob)),
		Dimension:      s.dim,
		Chunks:         chunks,
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	if err := writeFileAtomic(m.indexPath(s.id), blob); err != nil {
		return err
	}
	if err := writeFileAtomic(m.metadataPath(s.id), metaData); err != nil {
		return err
	}

	s.sizeBytes = int64(len(blob)) + int64(len(metaData))
	return nil
}

// loadLocked restores a store from disk. Caller must hold the store's write
// lock. Returns os.ErrNotExist when no metadata artifact exists, or a
// corrupt-store error when validation fails.
func (m *Manager) loadLocked(s *store) error {
	metaData, err := os.ReadFile(m.metadataPath(s.id))
	if err != nil {
		return err
	}

	var meta storeMetadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("%w: unreadable metadata for %s", core.ErrCorruptStore, s.id)
	}
	if meta.StoreID != s.id {
		return fmt.Errorf("%w: metadata store id %q does not match %q", core.ErrCorruptStore, meta.StoreID, s.id)
	}

	blob, err := os.ReadFile(m.indexPath(s.id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: index blob missing for %s", core.ErrCorruptStore, s.id)
		}
		return err
	}

	dim, vectors, err := UnmarshalIndex(blob)
	if err != nil {
		return err
	}

	// An uncommitted append may leave extra vectors past the metadata's
	// committed length; discard them. Fewer vectors than chunks means the
	// blob was damaged.
	if len(vectors) > len(meta.Chunks) {
		vectors = vectors[:len(meta.Chunks)]
	} else if len(vectors) < len(meta.Chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks in %s",
			core.ErrCorruptStore, len(vectors), len(meta.Chunks), s.id)
	}

	chunks := make([]core.Chunk, len(meta.Chunks))
	for i, cm := range meta.Chunks {
		hash, err := strconv.ParseUint(cm.TextHash, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad text hash in %s", core.ErrCorruptStore, s.id)
		}
		chunks[i] = core.Chunk{
			Source:   cm.Source,
			Offset:   cm.Offset,
			Text:     cm.Text,
			TextHash: core.ID(hash),
		}
	}

	s.vectors = vectors
	s.chunks = chunks
	s.dim = dim
	s.createdAt = meta.CreatedAt
	s.lastAccessedAt = meta.LastAccessedAt
	s.sizeBytes = int64(len(blob)) + int64(len(metaData))
	return nil
}

// quarantine renames a store's artifacts aside so corrupt state is preserved
// for inspection instead of being silently accepted or destroyed.
func (m *Manager) quarantine(storeID string) {
	for _, path := range []string{m.indexPath(storeID), m.metadataPath(storeID)} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Rename(path, path+corruptSuffix); err != nil {
			m.logger.Error("failed to quarantine store artifact", "store", storeID, "err", err)
		}
	}
	m.logger.Warn("quarantined corrupt store", "store", storeID)
}

// writeFileAtomic writes data to a temporary file and renames it into place,
// so a crash mid-write never clobbers the previously durable artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + tempSuffix
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
