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


package router

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/vectorstore"
)

const (
	// DefaultMaxResults is the number of chunks retrieved when the request
	// does not specify one.
	DefaultMaxResults = 5
	// DefaultMinScore is the similarity floor for retrieved chunks.
	DefaultMinScore float32 = 0.3
)

// QueryRequest carries one question through the router.
type QueryRequest struct {
	Question string

	// StoreIDs scopes retrieval. Empty means every available store.
	StoreIDs []string

	// Model overrides the generator's default model when non-empty.
	Model string

	// Temperature for generation, in [0, 2].
	Temperature float64

	// MaxResults caps retrieved chunks, in [1, 20]. Zero selects the default.
	MaxResults int

	// MinScore overrides the similarity floor when positive.
	MinScore float32

	// OnToken receives answer tokens as they stream, when set.
	OnToken ai.TokenFunc
}

// Source is one retrieved chunk cited by an answer.
type Source struct {
	Source string
	Text   string
	Score  float32
}

// QueryResult is the structured outcome of one routed query.
type QueryResult struct {
	Answer     string
	Sources    []Source
	Intent     core.QueryIntent
	Confidence float64
	Elapsed    time.Duration
	Model      string
}

// Router classifies questions, retrieves context from the scoped vector
// stores, and streams a generated answer. Conversational questions skip
// retrieval entirely.
type Router struct {
	stores     *vectorstore.Manager
	embedder   ai.Embedder
	generator  ai.Generator
	classifier Classifier
	history    storage.HistoryRepository
	minScore   float32
	logger     *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithClassifier sets a custom intent classifier.
// Default is the keyword classifier.
func WithClassifier(classifier Classifier) Option {
	return func(r *Router) {
		if classifier != nil {
			r.classifier = classifier
		}
	}
}

// WithHistory sets a history repository; completed queries are appended to
// it. Default is no history recording.
func WithHistory(history storage.HistoryRepository) Option {
	return func(r *Router) {
		r.history = history
	}
}

// WithMinScore sets the default similarity floor for retrieval.
func WithMinScore(minScore float32) Option {
	return func(r *Router) {
		if minScore > 0 {
			r.minScore = minScore
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a query router.
func NewRouter(stores *vectorstore.Manager, embedder ai.Embedder, generator ai.Generator, opts ...Option) (*Router, error) {
	if stores == nil {
		return nil, ErrStoreManagerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	r := &Router{
		stores:     stores,
		embedder:   embedder,
		generator:  generator,
		classifier: NewKeywordClassifier(),
		minScore:   DefaultMinScore,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")

	return r, nil
}

// Query answers one question. Parameters are validated up front and rejected,
// never clamped. Tokens stream through req.OnToken while the full answer is
// also returned in the result.
func (r *Router) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	start := time.Now()

	if err := r.validate(req); err != nil {
		return nil, err
	}

	cls := r.classifier.Classify(req.Question)
	r.logger.Debug("classified question", "intent", cls.Intent, "confidence", cls.Confidence)

	var sources []Source
	var prompt string
	if conversational(cls) {
		prompt = buildPrompt(cls.Intent, cls.Confidence, "", req.Question)
	} else {
		results, err := r.retrieve(ctx, req)
		if err != nil {
			return nil, err
		}
		sources = make([]Source, len(results))
		contexts := make([]string, len(results))
		for i, result := range results {
			sources[i] = Source{
				Source: result.Chunk.Source,
				Text:   result.Chunk.Text,
				Score:  result.Score,
			}
			contexts[i] = result.Chunk.Text
		}
		prompt = buildPrompt(cls.Intent, cls.Confidence, strings.Join(contexts, "\n\n"), req.Question)
	}

	answer, err := r.generator.GenerateStream(ctx, prompt, ai.GenerateOptions{
		Model:       req.Model,
		Temperature: req.Temperature,
	}, req.OnToken)
	if err != nil {
		return nil, fmt.Errorf("%w: generation failed: %v", core.ErrProvider, err)
	}

	result := &QueryResult{
		Answer:     answer,
		Sources:    sources,
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Elapsed:    time.Since(start),
		Model:      req.Model,
	}

	r.record(ctx, req, result)
	return result, nil
}

func (r *Router) validate(req QueryRequest) error {
	if err := core.ValidateQuestion(req.Question); err != nil {
		return err
	}
	if err := core.ValidateTemperature(req.Temperature); err != nil {
		return err
	}
	if req.MaxResults != 0 {
		if err := core.ValidateResultCount(req.MaxResults); err != nil {
			return err
		}
	}
	for _, storeID := range req.StoreIDs {
		if err := core.ValidateStoreID(storeID); err != nil {
			return err
		}
	}
	return nil
}

// conversational reports whether retrieval should be skipped entirely.
func conversational(cls Classification) bool {
	if cls.Intent == core.IntentCasualChat && cls.Confidence > 0.7 {
		return true
	}
	return cls.Intent == core.IntentClarification
}

// retrieve embeds the question once and searches the scoped stores
// concurrently, then merges and re-ranks by score.
func (r *Router) retrieve(ctx context.Context, req QueryRequest) ([]core.SearchResult, error) {
	storeIDs := req.StoreIDs
	if len(storeIDs) == 0 {
		infos, err := r.stores.List()
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			storeIDs = append(storeIDs, info.StoreID)
		}
	}
	if len(storeIDs) == 0 {
		return nil, ErrNoStores
	}

	vector, err := r.embedder.EmbedText(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding failed: %v", core.ErrProvider, err)
	}

	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = DefaultMaxResults
	}
	minScore := req.MinScore
	if minScore <= 0 {
		minScore = r.minScore
	}

	var mu sync.Mutex
	var merged []core.SearchResult

	g, gctx := errgroup.WithContext(ctx)
	for _, storeID := range storeIDs {
		storeID := storeID
		g.Go(func() error {
			results, err := r.stores.Search(gctx, storeID, vector, minScore, maxResults)
			if err != nil {
				return fmt.Errorf("store %s: %w", storeID, err)
			}
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(merged, func(a, b core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged, nil
}

// record appends the answered query to the history log, if configured.
// History failures are logged, never surfaced to the caller.
func (r *Router) record(ctx context.Context, req QueryRequest, result *QueryResult) {
	if r.history == nil {
		return
	}

	_, err := r.history.Add(ctx, &core.HistoryRecord{
		Question:   req.Question,
		Answer:     result.Answer,
		Intent:     string(result.Intent),
		Confidence: result.Confidence,
		StoreIDs:   req.StoreIDs,
		Model:      result.Model,
		Elapsed:    result.Elapsed,
	})
	if err != nil {
		r.logger.Error("failed to record query history", "err", err)
	}
}
