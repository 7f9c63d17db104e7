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
	"bytes"
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// RelationshipRepository implements storage.RelationshipRepository for BadgerDB.
type RelationshipRepository struct {
	backend *Backend
}

var _ storage.RelationshipRepository = (*RelationshipRepository)(nil)

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(backend *Backend) (*RelationshipRepository, error) {
	return &RelationshipRepository{
		backend: backend,
	}, nil
}

// Ping delegates to the backend.
func (r *RelationshipRepository) Ping(ctx context.Context) error {
	return r.backend.Ping(ctx)
}

// Close releases resources. RelationshipRepository has no resources to release.
func (r *RelationshipRepository) Close() error {
	return nil
}

// FindEntities matches token against entity names.
// The exact match, if any, is returned first; substring matches follow in
// key order, which is the lower-cased unified name.
func (r *RelationshipRepository) FindEntities(ctx context.Context, token string, limit int) ([]core.NamedEntity, error) {
	entities := []core.NamedEntity{}
	needle := strings.ToLower(strings.TrimSpace(token))
	if needle == "" || limit <= 0 {
		return entities, nil
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		exactKey := makeEntityKey(needle)
		item, err := tx.Get(exactKey)
		switch {
		case err == nil:
			entity, err := readEntity(item)
			if err != nil {
				return err
			}
			entities = append(entities, *entity)
		case err != badger.ErrKeyNotFound:
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entityPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		pattern := []byte(needle)
		for iter.Rewind(); iter.Valid() && len(entities) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := iter.Item().Key()
			if bytes.Equal(key, exactKey) || !bytes.Contains(key[len(entityPrefix):], pattern) {
				continue
			}
			entity, err := readEntity(iter.Item())
			if err != nil {
				return err
			}
			entities = append(entities, *entity)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	if len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

// GetLinksForUnit returns the links of a unit in link id order.
func (r *RelationshipRepository) GetLinksForUnit(ctx context.Context, id core.UnitID) ([]core.UnitEntityLink, error) {
	links := []core.UnitEntityLink{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialLinkKey(id)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var link *core.UnitEntityLink
			err := iter.Item().Value(func(val []byte) error {
				var err error
				link, err = storage.UnmarshalRecord[core.UnitEntityLink](val)
				return err
			})
			if err != nil {
				return err
			}
			links = append(links, *link)
		}
		return nil
	}, false)
	return links, err
}

func readEntity(item *badger.Item) (*core.NamedEntity, error) {
	var entity *core.NamedEntity
	err := item.Value(func(val []byte) error {
		var err error
		entity, err = storage.UnmarshalRecord[core.NamedEntity](val)
		return err
	})
	return entity, err
}
