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


package search

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/lectio/adapter"
	"github.com/poiesic/lectio/core"
)

// EmbeddingSource encodes queries and searches stored embeddings.
// *adapter.EmbeddingAdapter implements it.
type EmbeddingSource interface {
	ResolveDependency(ctx context.Context) adapter.DependencyState
	ComputeQueryEmbedding(ctx context.Context, query string) ([]float32, bool)
	VectorSearch(ctx context.Context, vector []float32, topK int) []core.SimilarityMatch
}

// Reranker re-orders candidates and sets their edge strength.
// *adapter.RerankerAdapter implements it.
type Reranker interface {
	State() adapter.DependencyState
	Rerank(ctx context.Context, candidates []core.Candidate, query string) []core.Candidate
}

// Enricher supplies context windows and enrichment.
// *adapter.RelationshipAdapter implements it.
type Enricher interface {
	ResolveDependency(ctx context.Context) adapter.DependencyState
	ContextWindow(ctx context.Context, id core.UnitID, radius int) []core.UnitID
	EnrichedContextBatch(ctx context.Context, ids []core.UnitID, includeLinks bool) map[core.UnitID]core.EnrichedContext
}

// Health is the dependency state of each stage.
type Health struct {
	Embeddings    adapter.DependencyState `json:"embeddings"`
	Reranker      adapter.DependencyState `json:"reranker"`
	Relationships adapter.DependencyState `json:"relationships"`
}

// Retriever runs the retrieval pipeline over three adapters.
// A Retriever holds no per-call state and is safe for concurrent use.
type Retriever struct {
	embeddings     EmbeddingSource
	reranker       Reranker
	enricher       Enricher
	poolMultiplier int
	contextRadius  int
	includeLinks   bool
	logger         *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithPoolMultiplier sets how many candidates are fetched per requested
// result before reranking. Default is 1: the reranker sees exactly topK
// candidates and can only reorder them.
func WithPoolMultiplier(n int) Option {
	return func(r *Retriever) error {
		if n < 1 {
			return ErrInvalidPoolMultiplier
		}
		r.poolMultiplier = n
		return nil
	}
}

// WithContextRadius attaches up to radius neighboring verses on each side
// of every result. Default is 0, which leaves context windows empty.
func WithContextRadius(radius int) Option {
	return func(r *Retriever) error {
		if radius < 0 {
			return ErrInvalidContextRadius
		}
		r.contextRadius = radius
		return nil
	}
}

// WithIncludeLinks controls whether unit links are loaded during
// enrichment. Links feed the cross-language hints. Default is true.
func WithIncludeLinks(include bool) Option {
	return func(r *Retriever) error {
		r.includeLinks = include
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(
	embeddings EmbeddingSource,
	reranker Reranker,
	enricher Enricher,
	opts ...Option,
) (*Retriever, error) {
	if embeddings == nil {
		return nil, ErrEmbeddingAdapterRequired
	}
	if reranker == nil {
		return nil, ErrRerankerAdapterRequired
	}
	if enricher == nil {
		return nil, ErrRelationshipAdapterRequired
	}

	r := &Retriever{
		embeddings:     embeddings,
		reranker:       reranker,
		enricher:       enricher,
		poolMultiplier: 1,
		includeLinks:   true,
		logger:         slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")

	return r, nil
}

// Retrieve returns up to topK verses for query, best first.
// The only error it returns wraps core.ErrInvalidArgument.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]core.Result, error) {
	return r.RetrieveWithMonitor(ctx, query, topK, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, topK int, monitor Monitor) ([]core.Result, error) {
	// 1. Validate before any I/O
	if err := core.ValidateRequest(&core.Request{Query: query, TopK: topK}); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)

	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	logger := r.logger.With("request_id", uuid.NewString())
	monitor.Start(query, topK)

	results := []core.Result{}

	// 2. Encode the query
	vector, ok := r.embeddings.ComputeQueryEmbedding(ctx, query)
	monitor.AfterQueryEmbedding(ok)
	if !ok {
		logger.Debug("query embedding unavailable, returning no results")
		monitor.Finish(results)
		return results, nil
	}

	// 3. Candidate generation
	matches := r.embeddings.VectorSearch(ctx, vector, poolSize(topK, r.poolMultiplier))
	monitor.AfterVectorSearch(matches)
	if len(matches) == 0 {
		logger.Debug("vector search returned no candidates")
		monitor.Finish(results)
		return results, nil
	}

	candidates := make([]core.Candidate, len(matches))
	for i, m := range matches {
		candidates[i] = core.Candidate{UnitID: m.UnitID, Cosine: m.Cosine}
	}

	// 4. Rerank and fuse
	candidates = r.reranker.Rerank(ctx, candidates, query)
	monitor.AfterRerank(candidates)

	// 5. Context windows
	for i := range candidates {
		if r.contextRadius == 0 {
			candidates[i].ContextWindow = []core.UnitID{}
			continue
		}
		candidates[i].ContextWindow = r.enricher.ContextWindow(ctx, candidates[i].UnitID, r.contextRadius)
	}

	// 6. Enrichment
	ids := make([]core.UnitID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.UnitID
	}
	enriched := r.enricher.EnrichedContextBatch(ctx, ids, r.includeLinks)
	for i := range candidates {
		if ec, found := enriched[candidates[i].UnitID]; found {
			candidates[i].Enriched = ec
		} else {
			candidates[i].Enriched = core.EnrichedContext{
				UnitID:   candidates[i].UnitID,
				Entities: []core.NamedEntity{},
				Links:    []core.UnitEntityLink{},
			}
		}
	}
	monitor.AfterEnrichment(candidates)

	// 7. Truncate
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results = make([]core.Result, len(candidates))
	for i, c := range candidates {
		results[i] = toResult(c)
	}

	logger.Debug("retrieval complete",
		"candidates", len(matches), "results", len(results), "enriched", len(enriched))
	monitor.Finish(results)
	return results, nil
}

// Health resolves each dependency (probing on first use) and reports its state.
func (r *Retriever) Health(ctx context.Context) Health {
	return Health{
		Embeddings:    r.embeddings.ResolveDependency(ctx),
		Reranker:      r.reranker.State(),
		Relationships: r.enricher.ResolveDependency(ctx),
	}
}

// poolSize is topK*multiplier, saturating at math.MaxInt.
func poolSize(topK, multiplier int) int {
	if multiplier > 1 && topK > math.MaxInt/multiplier {
		return math.MaxInt
	}
	return topK * multiplier
}

func toResult(c core.Candidate) core.Result {
	window := c.ContextWindow
	if window == nil {
		window = []core.UnitID{}
	}
	return core.Result{
		UnitID:         c.UnitID,
		Cosine:         core.Clamp01(c.Cosine),
		RelevanceScore: core.Clamp01(c.EdgeStrength),
		ContextWindow:  window,
		EnrichedMetadata: core.EnrichedMetadata{
			Entities:           c.Enriched.EntityNames(),
			CrossLanguageHints: crossLanguageHints(c.Enriched.Links),
		},
	}
}

// crossLanguageHints returns the distinct entity references of links in link order.
func crossLanguageHints(links []core.UnitEntityLink) []string {
	hints := make([]string, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if link.EntityRefID == "" || seen[link.EntityRefID] {
			continue
		}
		seen[link.EntityRefID] = true
		hints = append(hints, link.EntityRefID)
	}
	return hints
}
