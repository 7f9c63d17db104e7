package adapter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
	"github.com/poiesic/lectio/storage/badger"
	"github.com/stretchr/testify/require"
)

var errConnectionLost = errors.New("connection lost")

// stubEmbeddings is an EmbeddingRepository with injectable results.
type stubEmbeddings struct {
	PingFunc         func(ctx context.Context) error
	GetEmbeddingFunc func(ctx context.Context, id core.UnitID) (*core.Embedding, error)
	FindNearestFunc  func(ctx context.Context, vector []float32, limit int) ([]core.SimilarityMatch, error)

	calls atomic.Int64
}

func (s *stubEmbeddings) Ping(ctx context.Context) error {
	s.calls.Add(1)
	if s.PingFunc != nil {
		return s.PingFunc(ctx)
	}
	return nil
}

func (s *stubEmbeddings) Close() error { return nil }

func (s *stubEmbeddings) GetEmbedding(ctx context.Context, id core.UnitID) (*core.Embedding, error) {
	s.calls.Add(1)
	if s.GetEmbeddingFunc != nil {
		return s.GetEmbeddingFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

func (s *stubEmbeddings) FindNearest(ctx context.Context, vector []float32, limit int) ([]core.SimilarityMatch, error) {
	s.calls.Add(1)
	if s.FindNearestFunc != nil {
		return s.FindNearestFunc(ctx, vector, limit)
	}
	return nil, nil
}

func (s *stubEmbeddings) CallCount() int {
	return int(s.calls.Load())
}

// faultyRelationships wraps a real repository and fails FindEntities on demand.
type faultyRelationships struct {
	storage.RelationshipRepository
	failFind atomic.Bool
	calls    atomic.Int64
}

func (f *faultyRelationships) FindEntities(ctx context.Context, token string, limit int) ([]core.NamedEntity, error) {
	f.calls.Add(1)
	if f.failFind.Load() {
		return nil, errConnectionLost
	}
	return f.RelationshipRepository.FindEntities(ctx, token, limit)
}

func (f *faultyRelationships) GetLinksForUnit(ctx context.Context, id core.UnitID) ([]core.UnitEntityLink, error) {
	f.calls.Add(1)
	return f.RelationshipRepository.GetLinksForUnit(ctx, id)
}

// countingUnits wraps a real unit repository and counts calls.
type countingUnits struct {
	storage.UnitRepository
	calls     atomic.Int64
	textsErr  error
	neighbors atomic.Int64
}

func (c *countingUnits) GetUnitTexts(ctx context.Context, ids ...core.UnitID) (map[core.UnitID]string, error) {
	c.calls.Add(1)
	if c.textsErr != nil {
		return nil, c.textsErr
	}
	return c.UnitRepository.GetUnitTexts(ctx, ids...)
}

func (c *countingUnits) GetNeighbors(ctx context.Context, id core.UnitID, radius int) ([]core.UnitID, error) {
	c.neighbors.Add(1)
	return c.UnitRepository.GetNeighbors(ctx, id, radius)
}

// newGenesisStore returns an in-memory store holding a few verses of Genesis 1.
func newGenesisStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.AddUnits(ctx,
		&core.Unit{ID: 1001001, Reference: "Gen 1:1", Translation: "KJV", Book: "Gen", Chapter: 1, Verse: 1},
		&core.Unit{ID: 1001002, Reference: "Gen 1:2", Translation: "KJV", Book: "Gen", Chapter: 1, Verse: 2},
		&core.Unit{ID: 1001003, Reference: "Gen 1:3", Translation: "KJV", Book: "Gen", Chapter: 1, Verse: 3},
		&core.Unit{ID: 1002008, Reference: "Gen 2:8", Translation: "KJV", Book: "Gen", Chapter: 2, Verse: 8},
	))

	addWords := func(id core.UnitID, text ...string) {
		words := make([]*core.UnitWord, len(text))
		for i, w := range text {
			words[i] = &core.UnitWord{UnitID: id, Position: i, Text: w}
		}
		require.NoError(t, store.AddUnitWords(ctx, words...))
	}
	addWords(1001001, "In", "the", "beginning", "God", "created", "the", "heaven", "and", "the", "earth.")
	addWords(1001002, "And", "the", "earth", "was", "without", "form,", "and", "void;")
	addWords(1001003, "And", "God", "said,", "Let", "there", "be", "light:", "and", "there", "was", "light.")
	addWords(1002008, "And", "the", "LORD", "God", "planted", "a", "garden", "eastward", "in", "Eden;")

	require.NoError(t, store.AddEntities(ctx,
		&core.NamedEntity{UnifiedName: "God", Type: core.EntityTypePerson},
		&core.NamedEntity{UnifiedName: "Godolias", Type: core.EntityTypePerson},
		&core.NamedEntity{UnifiedName: "Eden", Type: core.EntityTypePlace},
		&core.NamedEntity{UnifiedName: "Earth", Type: core.EntityTypeOther},
		&core.NamedEntity{UnifiedName: "Heaven", Type: core.EntityTypeOther},
		&core.NamedEntity{UnifiedName: "LORD", Type: core.EntityTypePerson},
		&core.NamedEntity{UnifiedName: "Garden of Eden", Type: core.EntityTypePlace},
	))

	require.NoError(t, store.AddLinks(ctx,
		&core.UnitEntityLink{LinkID: 30, UnitID: 1001001, EntityRefID: "H0430", LinkType: "lemma"},
		&core.UnitEntityLink{LinkID: 10, UnitID: 1001001, EntityRefID: "H7225", LinkType: "lemma"},
		&core.UnitEntityLink{LinkID: 20, UnitID: 1001001, EntityRefID: "H1254", LinkType: "lemma"},
		&core.UnitEntityLink{LinkID: 40, UnitID: 5005005, EntityRefID: "H9999", LinkType: "lemma"},
	))
	return store
}
