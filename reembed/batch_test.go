package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadUnits(t *testing.T, store storage.Loader) []*core.Unit {
	t.Helper()
	var all []*core.Unit
	require.NoError(t, store.ForEachUnit(context.Background(), 100, func(units []*core.Unit) error {
		all = append(all, units...)
		return nil
	}))
	return all
}

func TestBatchProcessor_Process(t *testing.T) {
	store := setupTestStore(t)
	ids := seedUnits(t, store, 2)
	ctx := context.Background()

	processor := NewBatchProcessor(store.Units(), store, &mockEmbedder{}, testConfig())

	n, err := processor.Process(ctx, loadUnits(t, store))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range ids {
		emb, err := store.Embeddings().GetEmbedding(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "test-model", emb.ModelVersion)
		assert.InDelta(t, 1.0, magnitude(emb.Vector), 1e-6, "vector should be normalized")
		assert.InDelta(t, 1.0/3.0, emb.Vector[0], 1e-6)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	store := setupTestStore(t)

	called := false
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			called = true
			return nil, nil
		},
	}
	processor := NewBatchProcessor(store.Units(), store, embedder, testConfig())

	n, err := processor.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, called, "should not call embedder for empty batch")
}

func TestBatchProcessor_SkipsUnitsWithoutWords(t *testing.T) {
	store := setupTestStore(t)
	ids := seedUnits(t, store, 3, 1)
	ctx := context.Background()

	var seen []string
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			seen = append(seen, texts...)
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{0, 3, 4}
			}
			return out, nil
		},
	}
	processor := NewBatchProcessor(store.Units(), store, embedder, testConfig())

	n, err := processor.Process(ctx, loadUnits(t, store))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"verse 1", "verse 3"}, seen)

	_, err = store.Embeddings().GetEmbedding(ctx, ids[1])
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBatchProcessor_EmbeddingError(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 2)

	attempts := 0
	expected := errors.New("service unavailable")
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			attempts++
			return nil, expected
		},
	}
	processor := NewBatchProcessor(store.Units(), store, embedder, testConfig())

	_, err := processor.Process(context.Background(), loadUnits(t, store))
	require.ErrorIs(t, err, expected)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_Retry(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 2)

	attempts := 0
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("temporary")
			}
			return [][]float32{{1, 0, 0}, {0, 1, 0}}, nil
		},
	}
	processor := NewBatchProcessor(store.Units(), store, embedder, testConfig())

	n, err := processor.Process(context.Background(), loadUnits(t, store))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 2)

	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		},
	}
	processor := NewBatchProcessor(store.Units(), store, embedder, testConfig())

	_, err := processor.Process(context.Background(), loadUnits(t, store))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestBatchProcessor_DimensionMismatch(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 1)

	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0}}, nil
		},
	}
	processor := NewBatchProcessor(store.Units(), store, embedder, testConfig())

	_, err := processor.Process(context.Background(), loadUnits(t, store))
	require.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestBatchProcessor_ZeroVector(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 1)

	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{0, 0, 0}}, nil
		},
	}
	processor := NewBatchProcessor(store.Units(), store, embedder, testConfig())

	_, err := processor.Process(context.Background(), loadUnits(t, store))
	require.ErrorIs(t, err, ErrZeroVector)
}

func TestBatchProcessor_ContextCancellation(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 2)

	ctx, cancel := context.WithCancel(context.Background())
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			cancel()
			return nil, errors.New("interrupted")
		},
	}
	config := testConfig()
	config.RetryDelay = time.Second
	processor := NewBatchProcessor(store.Units(), store, embedder, config)

	units := loadUnits(t, store)
	_, err := processor.Process(ctx, units)
	require.ErrorIs(t, err, context.Canceled)
}
