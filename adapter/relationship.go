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
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// RelationshipAdapter enriches units with named entities and links.
//
// Its failure state is adapter-wide: once any store call fails, every later
// call returns empty or not-found, for every unit, until a new adapter is
// built.
type RelationshipAdapter struct {
	units         storage.UnitRepository
	relationships storage.RelationshipRepository
	handle        *DependencyHandle
	pool          *ants.Pool
	settings
}

// NewRelationshipAdapter creates a relationship adapter. If either
// repository is nil the adapter is offline.
func NewRelationshipAdapter(units storage.UnitRepository, relationships storage.RelationshipRepository, opts ...Option) (*RelationshipAdapter, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	a := &RelationshipAdapter{
		units:         units,
		relationships: relationships,
		handle:        &DependencyHandle{},
		settings:      s,
	}
	a.logger = s.logger.With("component", "relationship-adapter")

	if units == nil || relationships == nil {
		a.handle = NewOfflineHandle()
		return a, nil
	}

	if s.concurrency > 1 {
		a.pool, err = ants.NewPool(s.concurrency)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Release frees the worker pool. The adapter should not be used afterwards.
func (a *RelationshipAdapter) Release() {
	if a.pool != nil {
		a.pool.Release()
	}
}

// ResolveDependency probes both repositories on first use and returns the state.
func (a *RelationshipAdapter) ResolveDependency(ctx context.Context) DependencyState {
	if a.units == nil || a.relationships == nil {
		return a.handle.State()
	}
	return a.handle.Resolve(ctx, func(ctx context.Context) error {
		callCtx, cancel := a.callContext(ctx)
		defer cancel()
		err := errors.Join(a.units.Ping(callCtx), a.relationships.Ping(callCtx))
		if err != nil && ctx.Err() == nil {
			a.logger.Warn("relationship store unreachable, enrichment disabled", "err", err)
		}
		return err
	})
}

// State returns the dependency state without probing.
func (a *RelationshipAdapter) State() DependencyState {
	return a.handle.State()
}

// EntitiesForUnit matches the unit's source words against the entity table
// and returns at most limit distinct entities.
//
// Tokens are tried in source order and the first limit matches win, so a
// small limit may miss entities named later in the unit.
func (a *RelationshipAdapter) EntitiesForUnit(ctx context.Context, id core.UnitID, limit int) []core.NamedEntity {
	if limit < 1 || !a.ResolveDependency(ctx).Usable() {
		return []core.NamedEntity{}
	}
	entities, err := a.entitiesForUnit(ctx, id, limit)
	if err != nil {
		a.fail(ctx, "entities for unit", err)
		return []core.NamedEntity{}
	}
	return entities
}

// LinksForUnit returns the unit's links in link id order.
func (a *RelationshipAdapter) LinksForUnit(ctx context.Context, id core.UnitID) []core.UnitEntityLink {
	if !a.ResolveDependency(ctx).Usable() {
		return []core.UnitEntityLink{}
	}
	links, err := a.linksForUnit(ctx, id)
	if err != nil {
		a.fail(ctx, "links for unit", err)
		return []core.UnitEntityLink{}
	}
	return links
}

// EnrichedContext assembles the entities, links and summary of one unit.
// Entities are capped at the adapter's entity limit.
// The second result is false when the unit does not exist or the store is
// not available.
func (a *RelationshipAdapter) EnrichedContext(ctx context.Context, id core.UnitID, includeLinks bool) (core.EnrichedContext, bool) {
	empty := core.EnrichedContext{UnitID: id, Entities: []core.NamedEntity{}, Links: []core.UnitEntityLink{}}
	if !a.ResolveDependency(ctx).Usable() {
		return empty, false
	}

	enriched, found, err := a.enrich(ctx, id, includeLinks)
	if err != nil {
		a.fail(ctx, "enriched context", err)
		return empty, false
	}
	if !found {
		return empty, false
	}
	return enriched, true
}

// EnrichedContextBatch enriches each id and returns the found ones keyed by
// id. With concurrency above 1 the units are enriched on the worker pool.
func (a *RelationshipAdapter) EnrichedContextBatch(ctx context.Context, ids []core.UnitID, includeLinks bool) map[core.UnitID]core.EnrichedContext {
	result := make(map[core.UnitID]core.EnrichedContext, len(ids))
	if len(ids) == 0 || !a.ResolveDependency(ctx).Usable() {
		return result
	}

	type slot struct {
		enriched core.EnrichedContext
		found    bool
	}
	slots := make([]slot, len(ids))

	if a.pool == nil || len(ids) == 1 {
		for i, id := range ids {
			slots[i].enriched, slots[i].found = a.EnrichedContext(ctx, id, includeLinks)
		}
	} else {
		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			task := func() {
				defer wg.Done()
				slots[i].enriched, slots[i].found = a.EnrichedContext(ctx, id, includeLinks)
			}
			if err := a.pool.Submit(task); err != nil {
				a.logger.Debug("pool rejected task, enriching inline", "unit", id, "err", err)
				task()
			}
		}
		wg.Wait()
	}

	for i, id := range ids {
		if !slots[i].found {
			continue
		}
		if _, dup := result[id]; dup {
			continue
		}
		result[id] = slots[i].enriched
	}
	return result
}

// ContextWindow returns the ids of units within radius verses of id in the
// same chapter. Radius 0 returns an empty window without touching the store.
func (a *RelationshipAdapter) ContextWindow(ctx context.Context, id core.UnitID, radius int) []core.UnitID {
	if radius < 1 || !a.ResolveDependency(ctx).Usable() {
		return []core.UnitID{}
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	neighbors, err := a.units.GetNeighbors(callCtx, id, radius)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.UnitID{}
	}
	if err != nil {
		a.fail(ctx, "context window", err)
		return []core.UnitID{}
	}
	if neighbors == nil {
		neighbors = []core.UnitID{}
	}
	return neighbors
}

func (a *RelationshipAdapter) enrich(ctx context.Context, id core.UnitID, includeLinks bool) (core.EnrichedContext, bool, error) {
	callCtx, cancel := a.callContext(ctx)
	_, err := a.units.GetUnit(callCtx, id)
	cancel()
	if errors.Is(err, storage.ErrNotFound) {
		a.reportOrphanLinks(ctx, id)
		return core.EnrichedContext{}, false, nil
	}
	if err != nil {
		return core.EnrichedContext{}, false, err
	}

	enriched := core.EnrichedContext{
		UnitID:   id,
		Entities: []core.NamedEntity{},
		Links:    []core.UnitEntityLink{},
	}
	if a.entityLimit > 0 {
		enriched.Entities, err = a.entitiesForUnit(ctx, id, a.entityLimit)
		if err != nil {
			return core.EnrichedContext{}, false, err
		}
	}
	if includeLinks {
		enriched.Links, err = a.linksForUnit(ctx, id)
		if err != nil {
			return core.EnrichedContext{}, false, err
		}
	}
	enriched.Summary = summarize(enriched.EntityNames())
	return enriched, true, nil
}

// reportOrphanLinks logs links that point at a unit missing from the unit table.
func (a *RelationshipAdapter) reportOrphanLinks(ctx context.Context, id core.UnitID) {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	links, err := a.relationships.GetLinksForUnit(callCtx, id)
	if err == nil && len(links) > 0 {
		a.logger.Warn("links reference a missing unit", "unit", id, "links", len(links))
		return
	}
	a.logger.Debug("unit not found", "unit", id)
}

func (a *RelationshipAdapter) entitiesForUnit(ctx context.Context, id core.UnitID, limit int) ([]core.NamedEntity, error) {
	callCtx, cancel := a.callContext(ctx)
	words, err := a.units.GetUnitWords(callCtx, id)
	cancel()
	if errors.Is(err, storage.ErrNotFound) {
		return []core.NamedEntity{}, nil
	}
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}

	seen := make(map[string]bool)
	entities := []core.NamedEntity{}
	for _, token := range tokenize(texts) {
		if len(entities) >= limit {
			break
		}

		callCtx, cancel := a.callContext(ctx)
		matches, err := a.relationships.FindEntities(callCtx, token, limit)
		cancel()
		if err != nil {
			return nil, err
		}

		for _, entity := range matches {
			if seen[entity.UnifiedName] {
				continue
			}
			seen[entity.UnifiedName] = true
			entities = append(entities, entity)
			if len(entities) >= limit {
				break
			}
		}
	}
	return entities, nil
}

func (a *RelationshipAdapter) linksForUnit(ctx context.Context, id core.UnitID) ([]core.UnitEntityLink, error) {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	links, err := a.relationships.GetLinksForUnit(callCtx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.UnitEntityLink{}, nil
	}
	if err != nil {
		return nil, err
	}
	if links == nil {
		return []core.UnitEntityLink{}, nil
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].LinkID < links[j].LinkID
	})
	return links, nil
}

// fail trips the handle for a store failure. Errors caused by the caller's
// own context ending degrade only the current call.
func (a *RelationshipAdapter) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		a.logger.Debug("relationship store call abandoned by caller", "op", op, "err", err)
		return
	}
	if a.handle.Trip() {
		a.logger.Warn("relationship store failed, enrichment disabled", "op", op, "err", err)
		return
	}
	a.logger.Debug("relationship store call failed", "op", op, "err", err)
}
