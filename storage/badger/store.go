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


package badger

import (
	"context"
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

const defaultIterationBatch = 100

// Store bundles the BadgerDB repositories over a single backend.
// It also implements storage.Loader for seeding and reembedding.
type Store struct {
	backend       *Backend
	dimensions    int
	embeddings    *EmbeddingRepository
	units         *UnitRepository
	relationships *RelationshipRepository
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Loader = (*Store)(nil)
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDimensions makes AddEmbeddings reject vectors of any other length.
func WithDimensions(dim int) StoreOption {
	return func(s *Store) {
		s.dimensions = dim
	}
}

// NewStore creates a Store over an open backend. The store owns the
// backend and closes it on Close.
func NewStore(backend *Backend, opts ...StoreOption) (*Store, error) {
	embeddings, err := NewEmbeddingRepository(backend)
	if err != nil {
		return nil, err
	}
	units, err := NewUnitRepository(backend)
	if err != nil {
		return nil, err
	}
	relationships, err := NewRelationshipRepository(backend)
	if err != nil {
		return nil, err
	}

	s := &Store{
		backend:       backend,
		embeddings:    embeddings,
		units:         units,
		relationships: relationships,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OpenStore opens (or creates) a BadgerDB store at path.
func OpenStore(path string, opts ...StoreOption) (*Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Embeddings() storage.EmbeddingRepository       { return s.embeddings }
func (s *Store) Units() storage.UnitRepository                 { return s.units }
func (s *Store) Relationships() storage.RelationshipRepository { return s.relationships }

// Close closes the backend.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

// AddUnits stores units together with their chapter position index.
func (s *Store) AddUnits(ctx context.Context, units ...*core.Unit) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, unit := range units {
			// Drop the stale position entry if the unit moved.
			old, err := readUnit(tx, unit.ID)
			switch {
			case err == nil:
				if err := tx.Delete(makeUnitPositionKey(old)); err != nil {
					return err
				}
			case err != storage.ErrNotFound:
				return err
			}

			value, err := storage.MarshalRecord(unit)
			if err != nil {
				return err
			}
			if err := tx.Set(makeUnitKey(unit.ID), value); err != nil {
				return err
			}

			pos := binary.BigEndian.AppendUint64(nil, sortableID(int64(unit.ID)))
			if err := tx.Set(makeUnitPositionKey(unit), pos); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// AddUnitWords stores source words.
func (s *Store) AddUnitWords(ctx context.Context, words ...*core.UnitWord) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, word := range words {
			value, err := storage.MarshalRecord(word)
			if err != nil {
				return err
			}
			if err := tx.Set(makeWordKey(word.UnitID, word.Position), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// AddEmbeddings stores embeddings, rejecting vectors of the wrong dimension.
func (s *Store) AddEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, emb := range embeddings {
			if err := core.ValidateEmbedding(emb, s.dimensions); err != nil {
				return err
			}
			value, err := storage.MarshalRecord(emb)
			if err != nil {
				return err
			}
			if err := tx.Set(makeEmbeddingKey(emb.UnitID), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// AddEntities stores named entities keyed by lower-cased unified name.
func (s *Store) AddEntities(ctx context.Context, entities ...*core.NamedEntity) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, entity := range entities {
			if entity.UnifiedName == "" {
				return storage.ErrInvalidQuery
			}
			value, err := storage.MarshalRecord(entity)
			if err != nil {
				return err
			}
			if err := tx.Set(makeEntityKey(entity.UnifiedName), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// AddLinks stores unit-entity links.
func (s *Store) AddLinks(ctx context.Context, links ...*core.UnitEntityLink) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, link := range links {
			value, err := storage.MarshalRecord(link)
			if err != nil {
				return err
			}
			if err := tx.Set(makeLinkKey(link), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// CountUnits counts unit keys without decoding values.
func (s *Store) CountUnits(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(unitPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ForEachUnit walks units in id order, calling fn once per batch.
// Context cancellation is checked between batches.
func (s *Store) ForEachUnit(ctx context.Context, batchSize int, fn func([]*core.Unit) error) error {
	if batchSize <= 0 {
		batchSize = defaultIterationBatch
	}

	var units []*core.Unit
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(unitPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var unit *core.Unit
			err := iter.Item().Value(func(val []byte) error {
				var err error
				unit, err = storage.UnmarshalRecord[core.Unit](val)
				return err
			})
			if err != nil {
				return err
			}
			if unit.ID != unitIDFromKey(iter.Item().Key()) {
				s.backend.logger.Warn("unit key does not match stored id", "id", unit.ID)
			}
			units = append(units, unit)
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	// Callbacks run outside the read transaction so they may write.
	for i := 0; i < len(units); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(units))
		if err := fn(units[i:end]); err != nil {
			return err
		}
	}
	return nil
}
