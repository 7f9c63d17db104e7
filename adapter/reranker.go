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
	"sort"
	"sync/atomic"

	"github.com/poiesic/lectio/ai"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// cosineWeight is the share of the fused score taken from cosine similarity;
// the rest comes from the rerank score.
const cosineWeight = 0.5

// RerankerAdapter re-scores candidates with an external scorer and fuses the
// result with cosine similarity. When the scorer cannot be used it passes
// candidates through with the cosine as their edge strength.
type RerankerAdapter struct {
	scorer ai.Scorer
	texts  storage.UnitRepository
	settings

	// lastFailed records the outcome of the most recent scoring call for
	// health reporting. It never stops a call from being attempted.
	lastFailed atomic.Bool
}

// NewRerankerAdapter creates a reranker adapter. Either collaborator may be
// nil, in which case every call passes through.
func NewRerankerAdapter(scorer ai.Scorer, texts storage.UnitRepository, opts ...Option) (*RerankerAdapter, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	a := &RerankerAdapter{
		scorer:   scorer,
		texts:    texts,
		settings: s,
	}
	a.logger = s.logger.With("component", "reranker-adapter")
	return a, nil
}

// State reports offline when no scorer or text source is configured, and
// otherwise the outcome of the last scoring call: unavailable if it fell back
// to cosine order. Every call still tries the scorer, so the state recovers
// with the next successful call.
func (a *RerankerAdapter) State() DependencyState {
	if !a.configured() {
		return StateOffline
	}
	if a.lastFailed.Load() {
		return StateUnavailable
	}
	return StateAvailable
}

func (a *RerankerAdapter) configured() bool {
	return a.scorer != nil && a.texts != nil
}

// record stores the outcome of a scoring call. Calls abandoned by the caller
// say nothing about the scorer and are not recorded.
func (a *RerankerAdapter) record(ctx context.Context, ok bool) {
	if !ok && ctx.Err() != nil {
		return
	}
	a.lastFailed.Store(!ok)
}

// Rerank returns a re-ordered copy of candidates. The input is not modified.
func (a *RerankerAdapter) Rerank(ctx context.Context, candidates []core.Candidate, query string) []core.Candidate {
	out := make([]core.Candidate, len(candidates))
	copy(out, candidates)
	if len(out) == 0 {
		return out
	}

	scores, ok := a.score(ctx, out, query)
	if a.configured() {
		a.record(ctx, ok)
	}
	if !ok {
		passThrough(out)
		return out
	}

	for i := range out {
		cosine := core.Clamp01(out[i].Cosine)
		rerank := core.Clamp01(scores[i])
		out[i].Cosine = cosine
		out[i].RerankScore = &rerank
		out[i].EdgeStrength = cosineWeight*cosine + (1-cosineWeight)*rerank
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EdgeStrength != out[j].EdgeStrength {
			return out[i].EdgeStrength > out[j].EdgeStrength
		}
		if out[i].Cosine != out[j].Cosine {
			return out[i].Cosine > out[j].Cosine
		}
		return out[i].UnitID < out[j].UnitID
	})
	return out
}

// passThrough sets edge strength to cosine and keeps cosine order.
func passThrough(out []core.Candidate) {
	for i := range out {
		cosine := core.Clamp01(out[i].Cosine)
		out[i].Cosine = cosine
		out[i].RerankScore = nil
		out[i].EdgeStrength = cosine
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cosine != out[j].Cosine {
			return out[i].Cosine > out[j].Cosine
		}
		return out[i].UnitID < out[j].UnitID
	})
}

func (a *RerankerAdapter) score(ctx context.Context, candidates []core.Candidate, query string) ([]float64, bool) {
	if !a.configured() {
		return nil, false
	}

	ids := make([]core.UnitID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.UnitID
	}

	textCtx, cancel := a.callContext(ctx)
	texts, err := a.texts.GetUnitTexts(textCtx, ids...)
	cancel()
	if err != nil {
		a.logger.Warn("could not load candidate texts, keeping cosine order", "count", len(ids), "err", err)
		return nil, false
	}

	documents := make([]string, len(ids))
	for i, id := range ids {
		text, ok := texts[id]
		if !ok {
			a.logger.Debug("candidate has no text", "unit", id)
		}
		documents[i] = text
	}

	scoreCtx, cancel := a.callContext(ctx)
	defer cancel()

	scores, err := a.scorer.Score(scoreCtx, query, documents)
	if err != nil {
		a.logger.Warn("scorer failed, keeping cosine order", "model", a.scorer.ModelName(), "err", err)
		return nil, false
	}
	if len(scores) != len(documents) {
		a.logger.Warn("scorer returned wrong number of scores, keeping cosine order",
			"model", a.scorer.ModelName(), "got", len(scores), "want", len(documents))
		return nil, false
	}
	return scores, true
}
