package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestOpen_IsLazy(t *testing.T) {
	// Nothing listens here; Open must still succeed because it never dials.
	store, err := Open("postgres://lectio@127.0.0.1:1/lectio?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestEmbeddingRepository_Ping(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("SELECT 1 FROM verse_embeddings LIMIT 0")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Embeddings().Ping(ctx))

	mock.ExpectExec(regexp.QuoteMeta("SELECT 1 FROM verse_embeddings LIMIT 0")).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "verse_embeddings" does not exist`})
	err := store.Embeddings().Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined_table")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingRepository_GetEmbedding(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM verse_embeddings WHERE unit_id = $1")).
		WithArgs(int64(12345)).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "embedding", "model_version"}).
			AddRow(int64(12345), "[0.5,0.25,1]", "bge-m3"))

	emb, err := store.Embeddings().GetEmbedding(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, core.UnitID(12345), emb.UnitID)
	assert.Equal(t, []float32{0.5, 0.25, 1}, emb.Vector)
	assert.Equal(t, "bge-m3", emb.ModelVersion)

	mock.ExpectQuery(regexp.QuoteMeta("FROM verse_embeddings WHERE unit_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "embedding", "model_version"}))

	_, err = store.Embeddings().GetEmbedding(ctx, 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingRepository_FindNearest(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY embedding <=> $1, unit_id")).
		WithArgs(sqlmock.AnyArg(), 3, 2).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "cosine"}).
			AddRow(int64(12345), 0.999).
			AddRow(int64(20), 0.88))

	matches, err := store.Embeddings().FindNearest(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []core.SimilarityMatch{
		{UnitID: 12345, Cosine: 0.999},
		{UnitID: 20, Cosine: 0.88},
	}, matches)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingRepository_FindNearestLargeLimit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY embedding <=> $1, unit_id")).
		WithArgs(sqlmock.AnyArg(), 3, math.MaxInt).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "cosine"}).
			AddRow(int64(1001001), 0.97))

	var matches []core.SimilarityMatch
	var err error
	require.NotPanics(t, func() {
		matches, err = store.Embeddings().FindNearest(context.Background(), []float32{1, 0, 0}, math.MaxInt)
	})
	require.NoError(t, err)
	assert.Equal(t, []core.SimilarityMatch{{UnitID: 1001001, Cosine: 0.97}}, matches)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingRepository_FindNearestErrors(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	_, err := store.Embeddings().FindNearest(ctx, []float32{1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = store.Embeddings().FindNearest(ctx, nil, 5)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	connErr := errors.New("connection refused")
	mock.ExpectQuery("verse_embeddings").WillReturnError(connErr)
	_, err = store.Embeddings().FindNearest(ctx, []float32{1}, 5)
	assert.ErrorIs(t, err, connErr)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRepository_GetUnit(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM verses WHERE unit_id = $1")).
		WithArgs(int64(1001001)).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "reference", "translation", "book", "chapter", "verse"}).
			AddRow(int64(1001001), "Gen 1:1", "KJV", "Gen", 1, 1))

	unit, err := store.Units().GetUnit(ctx, 1001001)
	require.NoError(t, err)
	assert.Equal(t, &core.Unit{ID: 1001001, Reference: "Gen 1:1", Translation: "KJV", Book: "Gen", Chapter: 1, Verse: 1}, unit)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRepository_GetUnitWords(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM verse_words WHERE unit_id = $1 ORDER BY position")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "position", "word"}).
			AddRow(int64(1), 0, "In").
			AddRow(int64(1), 1, "beginning"))

	words, err := store.Units().GetUnitWords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "beginning", words[1].Text)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRepository_GetUnitTexts(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	texts, err := store.Units().GetUnitTexts(ctx)
	require.NoError(t, err)
	assert.Empty(t, texts)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE unit_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "string_agg"}).
			AddRow(int64(1), "In the beginning").
			AddRow(int64(2), nil))

	texts, err = store.Units().GetUnitTexts(ctx, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, map[core.UnitID]string{1: "In the beginning"}, texts)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRepository_GetNeighbors(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	ids, err := store.Units().GetNeighbors(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)

	mock.ExpectQuery(regexp.QuoteMeta("FROM verses WHERE unit_id = $1")).
		WithArgs(int64(1001002)).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "reference", "translation", "book", "chapter", "verse"}).
			AddRow(int64(1001002), "Gen 1:2", "KJV", "Gen", 1, 2))
	mock.ExpectQuery(regexp.QuoteMeta("n.verse BETWEEN v.verse - $2 AND v.verse + $2")).
		WithArgs(int64(1001002), 2).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id"}).
			AddRow(int64(1001001)).
			AddRow(int64(1001003)).
			AddRow(int64(1001004)))

	ids, err = store.Units().GetNeighbors(ctx, 1001002, 2)
	require.NoError(t, err)
	assert.Equal(t, []core.UnitID{1001001, 1001003, 1001004}, ids)

	mock.ExpectQuery(regexp.QuoteMeta("FROM verses WHERE unit_id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"unit_id", "reference", "translation", "book", "chapter", "verse"}))
	_, err = store.Units().GetNeighbors(ctx, 9, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipRepository_FindEntities(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	columns := []string{"unified_name", "type", "category", "briefest", "brief", "short", "article",
		"description", "parents", "siblings", "partners", "offspring", "tribe_nation", "summary"}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE unified_name ILIKE $1")).
		WithArgs("%god%", "god", 5).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("God", "person", nil, nil, nil, nil, nil, "the creator", nil, nil, nil, nil, nil, nil).
			AddRow("Godolias", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil))

	entities, err := store.Relationships().FindEntities(ctx, "god", 5)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "God", entities[0].UnifiedName)
	assert.Equal(t, core.EntityTypePerson, entities[0].Type)
	assert.Equal(t, "the creator", entities[0].Description)
	assert.Equal(t, core.EntityTypeUnknown, entities[1].Type)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipRepository_FindEntitiesEscapesPattern(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE unified_name ILIKE $1")).
		WithArgs(`%50\%\_off\_%`, "50%_off_", 5).
		WillReturnRows(sqlmock.NewRows([]string{"unified_name"}))

	// The row set has the wrong shape, but no rows are returned so nothing is scanned.
	entities, err := store.Relationships().FindEntities(ctx, "50%_off_", 5)
	require.NoError(t, err)
	assert.Empty(t, entities)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipRepository_GetLinksForUnit(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM verse_entity_links")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"link_id", "unit_id", "entity_ref_id", "link_type"}).
			AddRow(int64(10), int64(1), "H7225", "lemma").
			AddRow(int64(30), int64(1), "H0430", "lemma"))

	links, err := store.Relationships().GetLinksForUnit(ctx, 1)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, int64(10), links[0].LinkID)
	assert.Equal(t, "H0430", links[1].EntityRefID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(sql.ErrNoRows), storage.ErrNotFound)
	assert.ErrorIs(t, classify(sql.ErrConnDone), storage.ErrStorageClosed)

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))

	pqErr := &pq.Error{Code: "08006", Message: "connection failure"}
	err := classify(pqErr)
	assert.ErrorIs(t, err, pqErr)
	assert.Contains(t, err.Error(), "connection_failure")
}
