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
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// UnitRepository implements storage.UnitRepository for BadgerDB.
type UnitRepository struct {
	backend *Backend
}

var _ storage.UnitRepository = (*UnitRepository)(nil)

// NewUnitRepository creates a new UnitRepository.
func NewUnitRepository(backend *Backend) (*UnitRepository, error) {
	return &UnitRepository{
		backend: backend,
	}, nil
}

// Ping delegates to the backend.
func (r *UnitRepository) Ping(ctx context.Context) error {
	return r.backend.Ping(ctx)
}

// Close releases resources. UnitRepository has no resources to release.
func (r *UnitRepository) Close() error {
	return nil
}

// GetUnit retrieves a single unit by ID.
func (r *UnitRepository) GetUnit(ctx context.Context, id core.UnitID) (*core.Unit, error) {
	var result *core.Unit
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readUnit(tx, id)
		return err
	}, false)
	return result, err
}

// GetUnitWords returns the words of a unit in position order.
func (r *UnitRepository) GetUnitWords(ctx context.Context, id core.UnitID) ([]core.UnitWord, error) {
	words := []core.UnitWord{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		words, err = readWords(tx, id)
		return err
	}, false)
	return words, err
}

// GetUnitTexts returns the joined source text for each unit that has words.
func (r *UnitRepository) GetUnitTexts(ctx context.Context, ids ...core.UnitID) (map[core.UnitID]string, error) {
	texts := make(map[core.UnitID]string, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			words, err := readWords(tx, id)
			if err != nil {
				return err
			}
			if len(words) == 0 {
				continue
			}
			parts := make([]string, len(words))
			for i, w := range words {
				parts[i] = w.Text
			}
			texts[id] = strings.Join(parts, " ")
		}
		return nil
	}, false)
	return texts, err
}

// GetNeighbors returns units of the same chapter within radius verses.
func (r *UnitRepository) GetNeighbors(ctx context.Context, id core.UnitID, radius int) ([]core.UnitID, error) {
	neighbors := []core.UnitID{}
	if radius <= 0 {
		return neighbors, nil
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		unit, err := readUnit(tx, id)
		if err != nil {
			return err
		}

		prefix := makeChapterKey(unit.Translation, unit.Book, unit.Chapter)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the first verse in range; verses are big-endian so keys sort numerically.
		start := max(unit.Verse-radius, 0)
		seek := binary.BigEndian.AppendUint32(append([]byte{}, prefix...), uint32(start))
		for iter.Seek(seek); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			verse := int(binary.BigEndian.Uint32(key[len(prefix):]))
			if verse > unit.Verse+radius {
				break
			}
			if verse == unit.Verse {
				continue
			}

			var neighbor core.UnitID
			err := iter.Item().Value(func(val []byte) error {
				if len(val) != 8 {
					return storage.ErrSerializationFailed
				}
				neighbor = core.UnitID(idFromSortable(binary.BigEndian.Uint64(val)))
				return nil
			})
			if err != nil {
				return err
			}
			neighbors = append(neighbors, neighbor)
		}
		return nil
	}, false)
	return neighbors, err
}

// readUnit reads a unit within a transaction.
// Returns storage.ErrNotFound if the unit doesn't exist.
func readUnit(tx *badger.Txn, id core.UnitID) (*core.Unit, error) {
	item, err := tx.Get(makeUnitKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var unit *core.Unit
	err = item.Value(func(val []byte) error {
		unit, err = storage.UnmarshalRecord[core.Unit](val)
		return err
	})
	return unit, err
}

// readWords reads all words of a unit within a transaction.
func readWords(tx *badger.Txn, id core.UnitID) ([]core.UnitWord, error) {
	words := []core.UnitWord{}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialWordKey(id)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var word *core.UnitWord
		err := iter.Item().Value(func(val []byte) error {
			var err error
			word, err = storage.UnmarshalRecord[core.UnitWord](val)
			return err
		})
		if err != nil {
			return nil, err
		}
		words = append(words, *word)
	}
	return words, nil
}
