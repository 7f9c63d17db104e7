package lectio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/lectio/adapter"
	"github.com/poiesic/lectio/ai/mock"
	"github.com/poiesic/lectio/config"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/corpus"
	"github.com/poiesic/lectio/reembed"
	"github.com/poiesic/lectio/storage"
	"github.com/poiesic/lectio/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimensions = 384

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.AI.Dimensions = testDimensions
	return cfg
}

// openSeeded returns an engine over an in-memory store holding the sample
// corpus, embedded with the mock embedder.
func openSeeded(t *testing.T, cfg *config.Config) (*Engine, *mock.MockProvider) {
	t.Helper()
	ctx := context.Background()

	store, err := badger.NewMemoryStore(badger.WithDimensions(testDimensions))
	require.NoError(t, err)

	provider := mock.NewMockProviderWithServices(
		mock.NewMockEmbedderWithDimensions(testDimensions),
		mock.NewMockScorer(),
	).(*mock.MockProvider)

	engine, err := Open(cfg, WithStore(store), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	c, err := corpus.Sample()
	require.NoError(t, err)
	_, err = engine.LoadCorpus(ctx, c)
	require.NoError(t, err)

	reembedder, err := engine.NewReembedder(&reembed.Config{
		BatchSize:      4,
		ReportInterval: 4,
		MaxRetries:     1,
		Dimensions:     testDimensions,
	}, nil)
	require.NoError(t, err)
	summary, err := reembedder.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, len(c.Units), summary.Embedded)

	return engine, provider
}

func TestOpen_Offline(t *testing.T) {
	engine, err := Open(testConfig(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	results, err := engine.Retrieve(ctx, "in the beginning", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	health := engine.Health(ctx)
	assert.Equal(t, adapter.StateOffline, health.Embeddings)
	assert.Equal(t, adapter.StateOffline, health.Reranker)
	assert.Equal(t, adapter.StateOffline, health.Relationships)

	_, ok := engine.Loader()
	assert.False(t, ok)

	_, err = engine.LoadCorpus(ctx, &corpus.Corpus{})
	assert.ErrorIs(t, err, storage.ErrReadOnly)
	_, err = engine.NewReembedder(nil, nil)
	assert.ErrorIs(t, err, storage.ErrReadOnly)
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Retrieval.PoolMultiplier = 0

	_, err := Open(cfg, WithProvider(mock.NewMockProvider()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_multiplier")
}

func TestOpen_NilConfigUsesDefaults(t *testing.T) {
	engine, err := Open(nil, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer engine.Close()
	assert.NotNil(t, engine.Retriever())
}

func TestOpen_BadgerBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = config.BackendBadger
	cfg.Store.Path = filepath.Join(t.TempDir(), "lectio")

	engine, err := Open(cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer engine.Close()

	health := engine.Health(context.Background())
	assert.Equal(t, adapter.StateAvailable, health.Embeddings)
	assert.Equal(t, adapter.StateAvailable, health.Reranker)
	assert.Equal(t, adapter.StateAvailable, health.Relationships)

	_, ok := engine.Loader()
	assert.True(t, ok)
}

func TestOpen_BadgerPathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not_a_dir")
	require.NoError(t, os.WriteFile(path, []byte("test"), 0o644))

	cfg := testConfig()
	cfg.Store.Backend = config.BackendBadger
	cfg.Store.Path = path

	engine, err := Open(cfg, WithProvider(mock.NewMockProvider()))
	assert.Error(t, err)
	assert.Nil(t, engine)
}

func TestEngine_RetrieveSeeded(t *testing.T) {
	engine, provider := openSeeded(t, testConfig())
	ctx := context.Background()

	query := "In the beginning God created the heaven and the earth."
	results, err := engine.Retrieve(ctx, query, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.LessOrEqual(t, len(results), 3)

	top := results[0]
	assert.Equal(t, core.UnitID(1001001), top.UnitID)
	assert.InDelta(t, 1.0, top.Cosine, 1e-5)
	// Nine of the ten query words match ("earth." keeps its period), so
	// the fused score is 0.5*1 + 0.5*0.9
	assert.InDelta(t, 0.95, top.RelevanceScore, 1e-5)
	assert.Equal(t, []string{"H430", "H8064", "H776"}, top.EnrichedMetadata.CrossLanguageHints)
	assert.Contains(t, top.EnrichedMetadata.Entities, "God")
	assert.Empty(t, top.ContextWindow)

	assert.Equal(t, 1, provider.GetMockScorer().CallCount())

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].RelevanceScore, results[i].RelevanceScore)
	}
}

func TestEngine_ContextRadius(t *testing.T) {
	cfg := testConfig()
	cfg.Retrieval.ContextRadius = 1
	engine, _ := openSeeded(t, cfg)

	results, err := engine.Retrieve(context.Background(), "And God said, Let there be light: and there was light.", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.UnitID(1001003), results[0].UnitID)
	assert.Equal(t, []core.UnitID{1001002, 1001004}, results[0].ContextWindow)
}

func TestEngine_InvalidArgument(t *testing.T) {
	engine, _ := openSeeded(t, testConfig())

	_, err := engine.Retrieve(context.Background(), "   ", 3)
	require.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = engine.Retrieve(context.Background(), "light", 0)
	require.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestEngine_Close(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	provider := mock.NewMockProvider().(*mock.MockProvider)

	engine, err := Open(testConfig(), WithStore(store), WithProvider(provider))
	require.NoError(t, err)

	require.NoError(t, engine.Close())
	assert.True(t, provider.Closed())
}
