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


// Package postgres implements the storage interfaces over PostgreSQL with
// the pgvector extension.
//
// The store is read-only. It expects the following tables, owned and
// populated by an external ingestion process:
//
//	verses(unit_id bigint PK, reference text, translation text, book text, chapter int, verse int)
//	verse_words(unit_id bigint, position int, word text)
//	verse_embeddings(unit_id bigint PK, embedding vector(D), model_version text)
//	named_entities(unified_name text PK, type text, category text, briefest text, ...)
//	verse_entity_links(link_id bigint PK, unit_id bigint, entity_ref_id text, link_type text)
//
// Connections are established lazily: Open never dials, the first query or
// Ping does.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/poiesic/lectio/storage"
)

const (
	unitsTable     = "verses"
	wordsTable     = "verse_words"
	vectorsTable   = "verse_embeddings"
	entitiesTable  = "named_entities"
	linksTable     = "verse_entity_links"
	defaultMaxOpen = 10
)

// Store bundles the PostgreSQL repositories over one connection pool.
type Store struct {
	db            *sql.DB
	embeddings    *EmbeddingRepository
	units         *UnitRepository
	relationships *RelationshipRepository
	logger        *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open creates a store for the given DSN. No connection is made until the
// first query.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty dsn", storage.ErrInvalidQuery)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(defaultMaxOpen)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewStore(db), nil
}

// NewStore wraps an existing database handle. The store takes ownership of db.
func NewStore(db *sql.DB) *Store {
	logger := slog.Default().With("component", "postgres")
	return &Store{
		db:            db,
		embeddings:    &EmbeddingRepository{db: db, logger: logger},
		units:         &UnitRepository{db: db, logger: logger},
		relationships: &RelationshipRepository{db: db, logger: logger},
		logger:        logger,
	}
}

func (s *Store) Embeddings() storage.EmbeddingRepository       { return s.embeddings }
func (s *Store) Units() storage.UnitRepository                 { return s.units }
func (s *Store) Relationships() storage.RelationshipRepository { return s.relationships }

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// pingTables checks connectivity and that each table is queryable, so a
// missing schema is reported at resolve time rather than mid-request.
func pingTables(ctx context.Context, db *sql.DB, tables ...string) error {
	if err := db.PingContext(ctx); err != nil {
		return classify(err)
	}
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, "SELECT 1 FROM "+table+" LIMIT 0"); err != nil {
			return classify(err)
		}
	}
	return nil
}

// classify maps driver errors onto storage sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("postgres %s (%s): %w", pqErr.Code, pqErr.Code.Name(), err)
	}
	return err
}
