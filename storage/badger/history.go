package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// HistoryRepository implements storage.HistoryRepository for BadgerDB.
type HistoryRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(backend *Backend) (storage.HistoryRepository, error) {
	idSeq, err := backend.GetSequence(historyRecordIDSeq)
	if err != nil {
		return nil, err
	}

	return &HistoryRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *HistoryRepository) Close() error {
	return r.idSeq.Release()
}

// Add appends one or more history records.
func (r *HistoryRepository) Add(ctx context.Context, records ...*core.HistoryRecord) ([]*core.HistoryRecord, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if record.Id == 0 {
				nextID, err := r.idSeq.Next()
				if err != nil {
					return err
				}
				// BadgerDB sequences can return 0 on first call, so we skip it
				if nextID == 0 {
					nextID, err = r.idSeq.Next()
					if err != nil {
						return err
					}
				}
				record.Id = core.ID(nextID)
			}

			if record.CreatedAt.IsZero() {
				record.CreatedAt = time.Now().UTC()
			}

			// Store primary record
			key := makeHistoryKey(record.Id)
			value := storage.MarshalHistoryRecord(record)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update date index
			dateKey := makeHistoryDateKey(record.CreatedAt, record.Id)
			if err := tx.Set(dateKey, storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return records, err
}

// Recent retrieves the N most recent records, newest first. It walks the
// date index in reverse from the highest possible key.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*core.HistoryRecord, error) {
	if limit < 1 {
		return nil, storage.ErrInvalidQuery
	}

	var records []*core.HistoryRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(historyRecordDatePrefix + ":")

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		seek := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xff}, 16)...)
		for iter.Seek(seek); iter.Valid() && len(records) < limit; iter.Next() {
			record, err := r.resolveIndexEntry(tx, iter.Item())
			if err != nil {
				return err
			}
			if record != nil {
				records = append(records, record)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return records, nil
}

// ByDateRange retrieves records where start <= CreatedAt < end, ordered by
// creation time ascending.
func (r *HistoryRepository) ByDateRange(ctx context.Context, start, end time.Time) ([]*core.HistoryRecord, error) {
	if end.Before(start) {
		return nil, storage.ErrInvalidQuery
	}

	var records []*core.HistoryRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyRecordDatePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := makePartialHistoryDateKey(start)
		endKey := makePartialHistoryDateKey(end)

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			item := iter.Item()
			if bytes.Compare(item.Key(), endKey) >= 0 {
				break
			}

			record, err := r.resolveIndexEntry(tx, item)
			if err != nil {
				return err
			}
			if record != nil {
				records = append(records, record)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return records, nil
}

// resolveIndexEntry reads the record an index entry points at. Returns nil
// when the record no longer exists.
func (r *HistoryRepository) resolveIndexEntry(tx *badger.Txn, item *badger.Item) (*core.HistoryRecord, error) {
	var id core.ID
	err := item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	if err != nil {
		return nil, err
	}

	entry, err := tx.Get(makeHistoryKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.HistoryRecord
	err = entry.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalHistoryRecord(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
