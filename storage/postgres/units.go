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


package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// UnitRepository implements storage.UnitRepository.
type UnitRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.UnitRepository = (*UnitRepository)(nil)

const (
	getUnitQuery = `SELECT unit_id, reference, translation, COALESCE(book, ''), COALESCE(chapter, 0), COALESCE(verse, 0)
FROM ` + unitsTable + ` WHERE unit_id = $1`

	getUnitWordsQuery = `SELECT unit_id, position, word FROM ` + wordsTable + ` WHERE unit_id = $1 ORDER BY position`

	getUnitTextsQuery = `SELECT unit_id, string_agg(word, ' ' ORDER BY position) FROM ` + wordsTable + `
WHERE unit_id = ANY($1)
GROUP BY unit_id`

	getNeighborsQuery = `SELECT n.unit_id FROM ` + unitsTable + ` v
JOIN ` + unitsTable + ` n ON n.translation = v.translation AND n.book = v.book AND n.chapter = v.chapter
WHERE v.unit_id = $1 AND n.unit_id <> v.unit_id AND n.verse BETWEEN v.verse - $2 AND v.verse + $2
ORDER BY n.verse, n.unit_id`
)

// Ping checks the unit and word tables are reachable.
func (r *UnitRepository) Ping(ctx context.Context) error {
	return pingTables(ctx, r.db, unitsTable, wordsTable)
}

// Close is a no-op; the Store owns the pool.
func (r *UnitRepository) Close() error {
	return nil
}

// GetUnit retrieves a single unit by id.
func (r *UnitRepository) GetUnit(ctx context.Context, id core.UnitID) (*core.Unit, error) {
	var u core.Unit
	err := r.db.QueryRowContext(ctx, getUnitQuery, int64(id)).
		Scan(&u.ID, &u.Reference, &u.Translation, &u.Book, &u.Chapter, &u.Verse)
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

// GetUnitWords returns a unit's words in position order.
func (r *UnitRepository) GetUnitWords(ctx context.Context, id core.UnitID) ([]core.UnitWord, error) {
	rows, err := r.db.QueryContext(ctx, getUnitWordsQuery, int64(id))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	words := []core.UnitWord{}
	for rows.Next() {
		var w core.UnitWord
		if err := rows.Scan(&w.UnitID, &w.Position, &w.Text); err != nil {
			return nil, classify(err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return words, nil
}

// GetUnitTexts joins the words of several units in one round-trip.
func (r *UnitRepository) GetUnitTexts(ctx context.Context, ids ...core.UnitID) (map[core.UnitID]string, error) {
	texts := make(map[core.UnitID]string, len(ids))
	if len(ids) == 0 {
		return texts, nil
	}

	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx, getUnitTextsQuery, pq.Array(raw))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   core.UnitID
			text sql.NullString
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, classify(err)
		}
		if text.Valid && text.String != "" {
			texts[id] = text.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return texts, nil
}

// GetNeighbors returns same-chapter units within radius verses.
func (r *UnitRepository) GetNeighbors(ctx context.Context, id core.UnitID, radius int) ([]core.UnitID, error) {
	neighbors := []core.UnitID{}
	if radius <= 0 {
		return neighbors, nil
	}

	// Distinguish a missing unit from a unit alone in its chapter.
	if _, err := r.GetUnit(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, getNeighborsQuery, int64(id), radius)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var n core.UnitID
		if err := rows.Scan(&n); err != nil {
			return nil, classify(err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return neighbors, nil
}
