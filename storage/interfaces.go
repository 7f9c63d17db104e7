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

	"github.com/poiesic/lectio/core"
)

// Repository provides common operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Ping verifies the backing store is reachable and its schema is usable.
	// It is used once per adapter to resolve dependency state.
	Ping(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}

// EmbeddingRepository provides read access to stored unit embeddings.
type EmbeddingRepository interface {
	Repository

	// GetEmbedding retrieves the embedding for a unit.
	// Returns ErrNotFound if the unit has no stored embedding.
	GetEmbedding(ctx context.Context, id core.UnitID) (*core.Embedding, error)

	// FindNearest returns up to limit units ordered by cosine similarity to
	// vector, highest first. Equal similarities are ordered by ascending unit id.
	FindNearest(ctx context.Context, vector []float32, limit int) ([]core.SimilarityMatch, error)
}

// UnitRepository provides read access to content units and their source words.
type UnitRepository interface {
	Repository

	// GetUnit retrieves a single unit by id.
	// Returns ErrNotFound if the unit doesn't exist.
	GetUnit(ctx context.Context, id core.UnitID) (*core.Unit, error)

	// GetUnitWords returns the source words of a unit in position order.
	// Returns an empty slice (no error) when the unit has no words.
	GetUnitWords(ctx context.Context, id core.UnitID) ([]core.UnitWord, error)

	// GetUnitTexts returns the space-joined source text of each unit.
	// Units without words are omitted from the map.
	GetUnitTexts(ctx context.Context, ids ...core.UnitID) (map[core.UnitID]string, error)

	// GetNeighbors returns the ids of units in the same translation, book and
	// chapter whose verse number is within radius of the given unit, excluding
	// the unit itself, in verse order.
	// Returns ErrNotFound if the unit doesn't exist.
	GetNeighbors(ctx context.Context, id core.UnitID, radius int) ([]core.UnitID, error)
}

// RelationshipRepository provides read access to named entities and
// unit-entity links.
type RelationshipRepository interface {
	Repository

	// FindEntities returns up to limit entities whose unified name matches
	// token case-insensitively. Exact matches come first, then substring
	// matches; each group is ordered by unified name.
	FindEntities(ctx context.Context, token string, limit int) ([]core.NamedEntity, error)

	// GetLinksForUnit returns the links of a unit ordered by link id.
	// Returns an empty slice (no error) when the unit has no links.
	GetLinksForUnit(ctx context.Context, id core.UnitID) ([]core.UnitEntityLink, error)
}

// Store aggregates the read repositories of a single backing store.
type Store interface {
	Embeddings() EmbeddingRepository
	Units() UnitRepository
	Relationships() RelationshipRepository

	// Close releases the underlying connection or database handle.
	Close() error
}

// Loader is the write side of a store. The retrieval path never uses it;
// it exists for seeding and reembedding tools.
type Loader interface {
	// AddUnits inserts or replaces units.
	AddUnits(ctx context.Context, units ...*core.Unit) error

	// AddUnitWords inserts or replaces source words.
	AddUnitWords(ctx context.Context, words ...*core.UnitWord) error

	// AddEmbeddings inserts or replaces embeddings.
	// Vectors must match the store's dimension when one is configured.
	AddEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error

	// AddEntities inserts or replaces named entities keyed by unified name.
	AddEntities(ctx context.Context, entities ...*core.NamedEntity) error

	// AddLinks inserts or replaces unit-entity links.
	AddLinks(ctx context.Context, links ...*core.UnitEntityLink) error

	// CountUnits returns the number of stored units.
	CountUnits(ctx context.Context) (int, error)

	// ForEachUnit calls fn with batches of units in id order.
	// Iteration stops on the first error returned by fn.
	ForEachUnit(ctx context.Context, batchSize int, fn func([]*core.Unit) error) error
}
