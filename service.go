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


package docqa

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/cache"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/ingest"
	"github.com/poiesic/docqa/queue"
	"github.com/poiesic/docqa/router"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/vectorstore"
)

// Service wires the full document QA stack: embedding provider, embedding
// cache, vector store manager, ingestion pipeline, query router, history
// log, and the request queue that serializes work per store.
type Service struct {
	provider   ai.Provider
	embeddings *cache.Embeddings
	stores     *vectorstore.Manager
	pipeline   *ingest.Pipeline
	router     *router.Router
	queue      *queue.Manager
	backend    *badger.Backend
	history    storage.HistoryRepository
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig    *ai.Config
	provider    ai.Provider
	maxAge      time.Duration
	maxCount    int
	poolSize    int
	workTimeout time.Duration
	noHistory   bool
	logger      *slog.Logger
}

// WithAIConfig sets the provider configuration used when no provider is
// injected.
func WithAIConfig(config *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider injects an AI provider, bypassing the OpenAI-compatible
// client. Used by tests and embedders-only deployments.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithRetention sets the store retention policy applied at startup.
func WithRetention(maxAge time.Duration, maxCount int) ServiceOption {
	return func(o *serviceOptions) {
		o.maxAge = maxAge
		o.maxCount = maxCount
	}
}

// WithPoolSize sets the request queue worker pool size.
func WithPoolSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.poolSize = size
	}
}

// WithWorkTimeout bounds the execution time of each queued request.
// Zero disables the bound.
func WithWorkTimeout(timeout time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.workTimeout = timeout
	}
}

// WithoutHistory disables the persistent query history log.
func WithoutHistory() ServiceOption {
	return func(o *serviceOptions) {
		o.noHistory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewService creates the service rooted at rootDir. Vector stores live under
// rootDir/stores and the history log under rootDir/history. Retention
// cleanup runs once before the service accepts work.
func NewService(rootDir string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig: ai.DefaultConfig(),
		maxAge:   vectorstore.DefaultMaxAge,
		maxCount: vectorstore.DefaultMaxCount,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
	}

	embeddings, err := cache.NewEmbeddings(provider.Embedder(), cache.WithLogger(logger))
	if err != nil {
		provider.Close()
		return nil, err
	}

	stores, err := vectorstore.NewManager(
		filepath.Join(rootDir, "stores"),
		embeddings,
		vectorstore.WithMaxAge(options.maxAge),
		vectorstore.WithMaxCount(options.maxCount),
		vectorstore.WithLogger(logger),
	)
	if err != nil {
		embeddings.Close()
		provider.Close()
		return nil, err
	}

	// Startup retention sweep. Per-store failures are logged; they must not
	// prevent the service from coming up.
	if removed, err := stores.RunRetentionCleanup(options.maxAge, options.maxCount); err != nil {
		logger.Warn("retention cleanup finished with errors", "removed", len(removed), "err", err)
	}

	var backend *badger.Backend
	var history storage.HistoryRepository
	if !options.noHistory {
		backend, err = badger.OpenBackend(filepath.Join(rootDir, "history"), false)
		if err != nil {
			embeddings.Close()
			provider.Close()
			return nil, err
		}
		history, err = badger.NewHistoryRepository(backend)
		if err != nil {
			backend.Close()
			embeddings.Close()
			provider.Close()
			return nil, err
		}
	}

	pipeline, err := ingest.NewPipeline(stores, ingest.WithLogger(logger))
	if err != nil {
		closeAll(logger, history, backend, embeddings, provider)
		return nil, err
	}

	routerOpts := []router.Option{router.WithLogger(logger)}
	if history != nil {
		routerOpts = append(routerOpts, router.WithHistory(history))
	}
	queryRouter, err := router.NewRouter(stores, embeddings, provider.Generator(), routerOpts...)
	if err != nil {
		closeAll(logger, history, backend, embeddings, provider)
		return nil, err
	}

	queueOpts := []queue.Option{queue.WithLogger(logger)}
	if options.poolSize > 0 {
		queueOpts = append(queueOpts, queue.WithPoolSize(options.poolSize))
	}
	if options.workTimeout > 0 {
		queueOpts = append(queueOpts, queue.WithWorkTimeout(options.workTimeout))
	}
	requestQueue, err := queue.NewManager(queueOpts...)
	if err != nil {
		closeAll(logger, history, backend, embeddings, provider)
		return nil, err
	}

	return &Service{
		provider:   provider,
		embeddings: embeddings,
		stores:     stores,
		pipeline:   pipeline,
		router:     queryRouter,
		queue:      requestQueue,
		backend:    backend,
		history:    history,
		logger:     logger,
	}, nil
}

func closeAll(logger *slog.Logger, history storage.HistoryRepository, backend *badger.Backend, embeddings *cache.Embeddings, provider ai.Provider) {
	if history != nil {
		if err := history.Close(); err != nil {
			logger.Error("error closing history repository", "err", err)
		}
	}
	if backend != nil {
		if err := backend.Close(); err != nil {
			logger.Error("error closing history backend", "err", err)
		}
	}
	embeddings.Close()
	if err := provider.Close(); err != nil {
		logger.Error("error closing AI provider", "err", err)
	}
}

// IngestResult is the payload of a completed ingestion request.
type IngestResult struct {
	StoreID string
	Source  string
	Chunks  int
}

// SubmitIngestText enqueues document text for ingestion into the named
// store. Returns the request id immediately; ingestions targeting the same
// store run strictly one at a time in submission order.
func (s *Service) SubmitIngestText(storeID, source, text string) (string, error) {
	return s.queue.Submit(core.RequestKindIngest, storeID, func(ctx context.Context) (any, error) {
		n, err := s.pipeline.IngestText(ctx, storeID, source, text)
		if err != nil {
			return nil, err
		}
		return IngestResult{StoreID: storeID, Source: source, Chunks: n}, nil
	})
}

// SubmitIngestFile enqueues a document file for ingestion into the named
// store.
func (s *Service) SubmitIngestFile(storeID, path string) (string, error) {
	return s.queue.Submit(core.RequestKindIngest, storeID, func(ctx context.Context) (any, error) {
		n, err := s.pipeline.IngestFile(ctx, storeID, path)
		if err != nil {
			return nil, err
		}
		return IngestResult{StoreID: storeID, Source: filepath.Base(path), Chunks: n}, nil
	})
}

// SubmitQuery enqueues a question. Each query gets its own queue key, so
// distinct queries run in parallel; consistency against concurrent
// ingestions comes from the store-level locks, not the queue. The completed
// request's result is a *router.QueryResult.
func (s *Service) SubmitQuery(req router.QueryRequest) (string, error) {
	return s.queue.Submit(core.RequestKindQuery, "query/"+uuid.NewString(), func(ctx context.Context) (any, error) {
		return s.router.Query(ctx, req)
	})
}

// Poll returns the current snapshot of a request without blocking.
func (s *Service) Poll(requestID string) (queue.Snapshot, error) {
	return s.queue.Poll(requestID)
}

// Await blocks until a request reaches a terminal state, the timeout
// elapses, or ctx is canceled.
func (s *Service) Await(ctx context.Context, requestID string, timeout time.Duration) (queue.Snapshot, error) {
	return s.queue.AwaitCompletion(ctx, requestID, timeout)
}

// Ack removes a completed or failed request from the queue's table.
func (s *Service) Ack(requestID string) error {
	return s.queue.Ack(requestID)
}

// QueueStats reports the number of queued requests per state.
func (s *Service) QueueStats() map[core.RequestState]int {
	return s.queue.Stats()
}

// Stores exposes the vector store manager for listing, deletion, and stats.
func (s *Service) Stores() *vectorstore.Manager {
	return s.stores
}

// History exposes the query history log, or nil when disabled.
func (s *Service) History() storage.HistoryRepository {
	return s.history
}

// RunRetentionCleanup runs the configured retention sweep on demand and
// returns the removed store ids.
func (s *Service) RunRetentionCleanup() ([]string, error) {
	return s.stores.RunRetentionCleanup(s.stores.MaxAge(), s.stores.MaxCount())
}

// Close drains the request queue and releases every resource.
func (s *Service) Close() error {
	s.queue.Close()
	s.embeddings.Close()

	var firstErr error
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Error("error closing history repository", "err", err)
			firstErr = err
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing history backend", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
