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

	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository over pgvector.
type EmbeddingRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

const (
	getEmbeddingQuery = `SELECT unit_id, embedding, model_version FROM ` + vectorsTable + ` WHERE unit_id = $1`

	// <=> is pgvector's cosine distance; similarity is 1 - distance.
	// Rows of another dimension are excluded rather than compared.
	findNearestQuery = `SELECT unit_id, 1 - (embedding <=> $1) AS cosine FROM ` + vectorsTable + `
WHERE vector_dims(embedding) = $2
ORDER BY embedding <=> $1, unit_id
LIMIT $3`
)

// Ping checks the embeddings table is reachable.
func (r *EmbeddingRepository) Ping(ctx context.Context) error {
	return pingTables(ctx, r.db, vectorsTable)
}

// Close is a no-op; the Store owns the pool.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// GetEmbedding retrieves the stored embedding for a unit.
func (r *EmbeddingRepository) GetEmbedding(ctx context.Context, id core.UnitID) (*core.Embedding, error) {
	var (
		emb     core.Embedding
		vec     pgvector.Vector
		version sql.NullString
	)
	err := r.db.QueryRowContext(ctx, getEmbeddingQuery, int64(id)).Scan(&emb.UnitID, &vec, &version)
	if err != nil {
		return nil, classify(err)
	}
	emb.Vector = vec.Slice()
	emb.ModelVersion = version.String
	return &emb, nil
}

// FindNearest runs an ordered nearest-neighbour query using cosine distance.
func (r *EmbeddingRepository) FindNearest(ctx context.Context, vector []float32, limit int) ([]core.SimilarityMatch, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	rows, err := r.db.QueryContext(ctx, findNearestQuery, pgvector.NewVector(vector), len(vector), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	// limit is caller-controlled and may be far larger than the table.
	var matches []core.SimilarityMatch
	for rows.Next() {
		var m core.SimilarityMatch
		if err := rows.Scan(&m.UnitID, &m.Cosine); err != nil {
			return nil, classify(err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return matches, nil
}
