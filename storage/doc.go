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


// Package storage provides the storage abstraction layer for lectio.
//
// This package defines read-only repository interfaces that decouple the
// retrieval pipeline from the backing store. Two backends are provided:
//
//   - storage/badger: embedded BadgerDB store, also used in tests
//   - storage/postgres: PostgreSQL with the pgvector extension
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - EmbeddingRepository: stored vectors and nearest-neighbour search
//   - UnitRepository: verses, their source words and chapter neighbours
//   - RelationshipRepository: named entities and unit-entity links
//   - Store: aggregates the three for a single backend
//   - Loader: write side used by seeding and reembedding tools only
//
// # Errors
//
// ErrNotFound means the record is absent. Any other error means the store
// itself failed, and callers in the adapter layer treat it as the store
// becoming unavailable.
//
// # Usage
//
//	store, err := badger.NewStore(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, backend, err := badger.NewMemoryStore()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
