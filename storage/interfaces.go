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


package storage

import (
	"context"
	"time"

	"github.com/poiesic/docqa/core"
)

// HistoryRepository provides operations for the persistent query history log.
// Implementations must be thread-safe and support concurrent access.
type HistoryRepository interface {
	// Add appends one or more history records.
	// For records with ID=0, generates new IDs from sequence.
	// Sets CreatedAt if not already set.
	// Returns the records with generated IDs and timestamps populated.
	Add(ctx context.Context, records ...*core.HistoryRecord) ([]*core.HistoryRecord, error)

	// Recent retrieves the N most recent records, newest first.
	Recent(ctx context.Context, limit int) ([]*core.HistoryRecord, error)

	// ByDateRange retrieves records where start <= CreatedAt < end, ordered
	// by creation time ascending.
	ByDateRange(ctx context.Context, start, end time.Time) ([]*core.HistoryRecord, error)

	// Close closes the repository and releases resources.
	Close() error
}
