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
	"strings"

	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// RelationshipRepository implements storage.RelationshipRepository.
type RelationshipRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.RelationshipRepository = (*RelationshipRepository)(nil)

const (
	entityColumns = `unified_name, type, category, briefest, brief, short, article, description,
parents, siblings, partners, offspring, tribe_nation, summary`

	// Exact (case-insensitive) matches sort ahead of substring matches.
	findEntitiesQuery = `SELECT ` + entityColumns + ` FROM ` + entitiesTable + `
WHERE unified_name ILIKE $1 ESCAPE '\'
ORDER BY (lower(unified_name) = lower($2)) DESC, lower(unified_name)
LIMIT $3`

	getLinksQuery = `SELECT link_id, unit_id, entity_ref_id, COALESCE(link_type, '') FROM ` + linksTable + `
WHERE unit_id = $1
ORDER BY link_id`
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Ping checks the entity and link tables are reachable.
func (r *RelationshipRepository) Ping(ctx context.Context) error {
	return pingTables(ctx, r.db, entitiesTable, linksTable)
}

// Close is a no-op; the Store owns the pool.
func (r *RelationshipRepository) Close() error {
	return nil
}

// FindEntities matches token against unified names with ILIKE.
func (r *RelationshipRepository) FindEntities(ctx context.Context, token string, limit int) ([]core.NamedEntity, error) {
	entities := []core.NamedEntity{}
	token = strings.TrimSpace(token)
	if token == "" || limit <= 0 {
		return entities, nil
	}

	pattern := "%" + likeEscaper.Replace(token) + "%"
	rows, err := r.db.QueryContext(ctx, findEntitiesQuery, pattern, token, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e      core.NamedEntity
			fields [13]sql.NullString
		)
		dest := []any{&e.UnifiedName}
		for i := range fields {
			dest = append(dest, &fields[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, classify(err)
		}
		e.Type = core.EntityType(strings.ToUpper(fields[0].String))
		e.Category = fields[1].String
		e.Briefest = fields[2].String
		e.Brief = fields[3].String
		e.Short = fields[4].String
		e.Article = fields[5].String
		e.Description = fields[6].String
		e.Parents = fields[7].String
		e.Siblings = fields[8].String
		e.Partners = fields[9].String
		e.Offspring = fields[10].String
		e.TribeNation = fields[11].String
		e.Summary = fields[12].String
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return entities, nil
}

// GetLinksForUnit returns a unit's links in link id order.
func (r *RelationshipRepository) GetLinksForUnit(ctx context.Context, id core.UnitID) ([]core.UnitEntityLink, error) {
	rows, err := r.db.QueryContext(ctx, getLinksQuery, int64(id))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	links := []core.UnitEntityLink{}
	for rows.Next() {
		var l core.UnitEntityLink
		if err := rows.Scan(&l.LinkID, &l.UnitID, &l.EntityRefID, &l.LinkType); err != nil {
			return nil, classify(err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return links, nil
}
