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


package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/vectorstore"
)

// Pipeline turns raw documents into indexed chunks: split, embed, append.
// Embedding and persistence happen inside the store manager's append, so the
// pipeline itself carries no locking; callers serialize work per store
// through the request queue.
type Pipeline struct {
	stores  *vectorstore.Manager
	chunker *Chunker
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChunker sets a custom chunker.
// Default splits into 1000-rune pieces with a 200-rune overlap.
func WithChunker(chunker *Chunker) Option {
	return func(p *Pipeline) {
		if chunker != nil {
			p.chunker = chunker
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates an ingestion pipeline backed by the given store
// manager.
func NewPipeline(stores *vectorstore.Manager, opts ...Option) (*Pipeline, error) {
	if stores == nil {
		return nil, ErrStoreManagerRequired
	}

	chunker, err := NewChunker(DefaultChunkSize, DefaultOverlap)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		stores:  stores,
		chunker: chunker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "ingest")

	return p, nil
}

// IngestText splits text into chunks and appends them to the named store,
// returning the number of chunks indexed. The source label is attached to
// every chunk for citation in query answers.
func (p *Pipeline) IngestText(ctx context.Context, storeID, source, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: %w", core.ErrInvalidParameter, ErrEmptyDocument)
	}

	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("%w: %w", core.ErrInvalidParameter, ErrEmptyDocument)
	}

	chunks := make([]core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = core.Chunk{
			Source:   source,
			Offset:   piece.Offset,
			Text:     piece.Text,
			TextHash: core.IDFromContent(piece.Text),
		}
	}

	if err := p.stores.Append(ctx, storeID, chunks); err != nil {
		return 0, err
	}

	p.logger.Info("ingested document", "store", storeID, "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestFile reads a document from disk and ingests it, using the file's
// base name as the source label.
func (p *Pipeline) IngestFile(ctx context.Context, storeID, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return p.IngestText(ctx, storeID, filepath.Base(path), string(data))
}
