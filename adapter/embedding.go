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


package adapter

import (
	"context"
	"errors"
	"sort"

	"github.com/poiesic/lectio/ai"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// EmbeddingAdapter wraps the embedding store and the query encoder.
// None of its methods return errors: failures surface as "no vector" or an
// empty search, and a failing store is marked unavailable for the rest of
// the adapter's life.
type EmbeddingAdapter struct {
	store    storage.EmbeddingRepository
	embedder ai.Embedder
	handle   *DependencyHandle
	settings
}

// NewEmbeddingAdapter creates an embedding adapter.
// A nil store makes the adapter permanently offline; the embedder may then be nil too.
func NewEmbeddingAdapter(store storage.EmbeddingRepository, embedder ai.Embedder, opts ...Option) (*EmbeddingAdapter, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if store != nil && embedder == nil {
		return nil, ErrEmbedderRequired
	}

	a := &EmbeddingAdapter{
		store:    store,
		embedder: embedder,
		handle:   &DependencyHandle{},
		settings: s,
	}
	a.logger = s.logger.With("component", "embedding-adapter")
	if store == nil {
		a.handle = NewOfflineHandle()
	}
	return a, nil
}

// ResolveDependency probes the store on first use and returns its state.
func (a *EmbeddingAdapter) ResolveDependency(ctx context.Context) DependencyState {
	if a.store == nil {
		return a.handle.State()
	}
	state := a.handle.Resolve(ctx, func(ctx context.Context) error {
		callCtx, cancel := a.callContext(ctx)
		defer cancel()
		err := a.store.Ping(callCtx)
		if err != nil && ctx.Err() == nil {
			a.logger.Warn("embedding store unreachable, retrieval degraded", "err", err)
		}
		return err
	})
	return state
}

// State returns the dependency state without probing.
func (a *EmbeddingAdapter) State() DependencyState {
	return a.handle.State()
}

// GetEmbedding returns the stored vector for a unit.
// The second result is false when the unit has no embedding, the stored
// vector has the wrong dimension, or the store is not available.
func (a *EmbeddingAdapter) GetEmbedding(ctx context.Context, id core.UnitID) ([]float32, bool) {
	if !a.ResolveDependency(ctx).Usable() {
		return nil, false
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	embedding, err := a.store.GetEmbedding(callCtx, id)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Debug("no embedding for unit", "unit", id)
		return nil, false
	}
	if err != nil {
		a.fail(ctx, "get embedding", err)
		return nil, false
	}
	if err := core.ValidateEmbedding(embedding, a.dimensions); err != nil {
		a.logger.Warn("stored embedding rejected", "unit", id, "want", a.dimensions, "err", err)
		return nil, false
	}
	return embedding.Vector, true
}

// ComputeQueryEmbedding encodes a query. The second result is false when the
// store is not available, the encoder fails or times out, or the encoder
// returns a vector of the wrong dimension.
func (a *EmbeddingAdapter) ComputeQueryEmbedding(ctx context.Context, query string) ([]float32, bool) {
	if !a.ResolveDependency(ctx).Usable() {
		return nil, false
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	vector, err := a.embedder.EmbedText(callCtx, query)
	if err != nil {
		a.logger.Warn("query encoding failed", "err", err)
		return nil, false
	}
	if err := core.ValidateVector(vector, a.dimensions); err != nil {
		a.logger.Warn("encoder returned unusable vector", "len", len(vector), "want", a.dimensions, "err", err)
		return nil, false
	}
	return vector, true
}

// VectorSearch returns up to topK units nearest to vector, by cosine
// descending and then unit id ascending. Cosines are clamped to [0,1].
// The result is empty, never nil, on any failure.
func (a *EmbeddingAdapter) VectorSearch(ctx context.Context, vector []float32, topK int) []core.SimilarityMatch {
	empty := []core.SimilarityMatch{}
	if topK < 1 {
		return empty
	}
	if err := core.ValidateVector(vector, a.dimensions); err != nil {
		a.logger.Warn("search vector rejected", "len", len(vector), "want", a.dimensions, "err", err)
		return empty
	}
	if !a.ResolveDependency(ctx).Usable() {
		return empty
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	matches, err := a.store.FindNearest(callCtx, vector, topK)
	if err != nil {
		a.fail(ctx, "vector search", err)
		return empty
	}

	out := make([]core.SimilarityMatch, len(matches))
	for i, m := range matches {
		out[i] = core.SimilarityMatch{UnitID: m.UnitID, Cosine: core.Clamp01(m.Cosine)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cosine != out[j].Cosine {
			return out[i].Cosine > out[j].Cosine
		}
		return out[i].UnitID < out[j].UnitID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// fail trips the handle for a store failure. Errors caused by the caller's
// own context ending degrade only the current call.
func (a *EmbeddingAdapter) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		a.logger.Debug("embedding store call abandoned by caller", "op", op, "err", err)
		return
	}
	if a.handle.Trip() {
		a.logger.Warn("embedding store failed, marking unavailable", "op", op, "err", err)
		return
	}
	a.logger.Debug("embedding store call failed", "op", op, "err", err)
}
