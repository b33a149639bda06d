package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/docqa/core"
)

// Key prefixes for different data types
const (
	historyRecordPrefix     = "hisrec"
	historyRecordDatePrefix = "hisrecd"
	historyRecordIDSeq      = "hisrecseq"
)

// makeHistoryKey generates a key for a history record by ID.
func makeHistoryKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", historyRecordPrefix, id))
}

// makeHistoryDateKey generates a composite key for the date index.
// Format: prefix:timestamp:id
func makeHistoryDateKey(timestamp time.Time, id core.ID) []byte {
	prefix := historyRecordDatePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for timestamp + 8 bytes for ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialHistoryDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialHistoryDateKey(timestamp time.Time) []byte {
	prefix := historyRecordDatePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for timestamp
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}
