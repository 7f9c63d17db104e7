package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/lectio/ai/mock"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingAdapter(t *testing.T) {
	t.Run("store without embedder", func(t *testing.T) {
		_, err := NewEmbeddingAdapter(&stubEmbeddings{}, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("invalid option", func(t *testing.T) {
		_, err := NewEmbeddingAdapter(&stubEmbeddings{}, mock.NewMockEmbedder(), WithDimensions(0))
		assert.ErrorIs(t, err, ErrInvalidDimensions)

		_, err = NewEmbeddingAdapter(&stubEmbeddings{}, mock.NewMockEmbedder(), WithCallTimeout(0))
		assert.ErrorIs(t, err, ErrInvalidTimeout)
	})

	t.Run("no store is offline", func(t *testing.T) {
		a, err := NewEmbeddingAdapter(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, StateOffline, a.ResolveDependency(context.Background()))
	})
}

func TestEmbeddingAdapter_Offline(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	a, err := NewEmbeddingAdapter(nil, embedder)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := a.ComputeQueryEmbedding(ctx, "In the beginning")
	assert.False(t, ok)
	_, ok = a.GetEmbedding(ctx, 1)
	assert.False(t, ok)
	matches := a.VectorSearch(ctx, []float32{1, 0}, 5)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)

	assert.Zero(t, embedder.CallCount())
	assert.Equal(t, StateOffline, a.State())
}

func TestEmbeddingAdapter_UnavailableIsMemoized(t *testing.T) {
	store := &stubEmbeddings{PingFunc: func(ctx context.Context) error { return errConnectionLost }}
	embedder := mock.NewMockEmbedder()
	a, err := NewEmbeddingAdapter(store, embedder)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok := a.ComputeQueryEmbedding(ctx, "light")
		assert.False(t, ok)
		assert.Empty(t, a.VectorSearch(ctx, []float32{1}, 3))
	}

	assert.Equal(t, StateUnavailable, a.State())
	assert.Equal(t, 1, store.CallCount(), "only the probe reaches the store")
	assert.Zero(t, embedder.CallCount())
}

func TestEmbeddingAdapter_GetEmbedding(t *testing.T) {
	ctx := context.Background()
	store := &stubEmbeddings{
		GetEmbeddingFunc: func(ctx context.Context, id core.UnitID) (*core.Embedding, error) {
			switch id {
			case 1:
				return &core.Embedding{UnitID: 1, Vector: []float32{1, 0, 0}}, nil
			case 2:
				return &core.Embedding{UnitID: 2, Vector: []float32{1, 0}}, nil
			default:
				return nil, storage.ErrNotFound
			}
		},
	}
	a, err := NewEmbeddingAdapter(store, mock.NewMockEmbedder(), WithDimensions(3))
	require.NoError(t, err)

	vector, ok := a.GetEmbedding(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, vector)

	_, ok = a.GetEmbedding(ctx, 2)
	assert.False(t, ok, "wrong dimension is rejected")

	_, ok = a.GetEmbedding(ctx, 3)
	assert.False(t, ok)

	assert.Equal(t, StateAvailable, a.State(), "absence and bad rows do not trip the store")
}

func TestEmbeddingAdapter_StoreFailureTrips(t *testing.T) {
	ctx := context.Background()
	store := &stubEmbeddings{
		GetEmbeddingFunc: func(ctx context.Context, id core.UnitID) (*core.Embedding, error) {
			return nil, errConnectionLost
		},
		FindNearestFunc: func(ctx context.Context, vector []float32, limit int) ([]core.SimilarityMatch, error) {
			return []core.SimilarityMatch{{UnitID: 1, Cosine: 0.9}}, nil
		},
	}
	a, err := NewEmbeddingAdapter(store, mock.NewMockEmbedder())
	require.NoError(t, err)

	assert.Len(t, a.VectorSearch(ctx, []float32{1}, 1), 1)

	_, ok := a.GetEmbedding(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, StateUnavailable, a.State())

	assert.Empty(t, a.VectorSearch(ctx, []float32{1}, 1), "search stays down after the store failed")
}

func TestEmbeddingAdapter_ComputeQueryEmbedding(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		a, err := NewEmbeddingAdapter(&stubEmbeddings{}, mock.NewMockEmbedderWithDimensions(16), WithDimensions(16))
		require.NoError(t, err)
		vector, ok := a.ComputeQueryEmbedding(ctx, "light")
		require.True(t, ok)
		assert.Len(t, vector, 16)
	})

	t.Run("encoder error", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("connection refused")
		}
		a, err := NewEmbeddingAdapter(&stubEmbeddings{}, embedder)
		require.NoError(t, err)
		_, ok := a.ComputeQueryEmbedding(ctx, "light")
		assert.False(t, ok)
		assert.Equal(t, StateAvailable, a.State())
	})

	t.Run("wrong dimension", func(t *testing.T) {
		a, err := NewEmbeddingAdapter(&stubEmbeddings{}, mock.NewMockEmbedderWithDimensions(8), WithDimensions(16))
		require.NoError(t, err)
		_, ok := a.ComputeQueryEmbedding(ctx, "light")
		assert.False(t, ok)
	})

	t.Run("empty vector", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return []float32{}, nil
		}
		a, err := NewEmbeddingAdapter(&stubEmbeddings{}, embedder)
		require.NoError(t, err)
		_, ok := a.ComputeQueryEmbedding(ctx, "light")
		assert.False(t, ok)
	})

	t.Run("timeout", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		a, err := NewEmbeddingAdapter(&stubEmbeddings{}, embedder, WithCallTimeout(20*time.Millisecond))
		require.NoError(t, err)

		start := time.Now()
		_, ok := a.ComputeQueryEmbedding(ctx, "light")
		assert.False(t, ok)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestEmbeddingAdapter_VectorSearchOrdering(t *testing.T) {
	store := &stubEmbeddings{
		FindNearestFunc: func(ctx context.Context, vector []float32, limit int) ([]core.SimilarityMatch, error) {
			return []core.SimilarityMatch{
				{UnitID: 9, Cosine: 0.5},
				{UnitID: 7, Cosine: 0.8},
				{UnitID: 3, Cosine: 0.8},
				{UnitID: 4, Cosine: 1.0000001},
				{UnitID: 5, Cosine: -0.2},
			}, nil
		},
	}
	a, err := NewEmbeddingAdapter(store, mock.NewMockEmbedder())
	require.NoError(t, err)

	matches := a.VectorSearch(context.Background(), []float32{1, 0}, 4)
	require.Len(t, matches, 4)

	ids := make([]core.UnitID, len(matches))
	for i, m := range matches {
		ids[i] = m.UnitID
		assert.GreaterOrEqual(t, m.Cosine, 0.0)
		assert.LessOrEqual(t, m.Cosine, 1.0)
	}
	assert.Equal(t, []core.UnitID{4, 3, 7, 9}, ids)
}

func TestEmbeddingAdapter_VectorSearchArguments(t *testing.T) {
	store := &stubEmbeddings{}
	a, err := NewEmbeddingAdapter(store, mock.NewMockEmbedder(), WithDimensions(2))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Empty(t, a.VectorSearch(ctx, []float32{1, 0}, 0))
	assert.Empty(t, a.VectorSearch(ctx, []float32{1, 0, 0}, 3))
	assert.Empty(t, a.VectorSearch(ctx, nil, 3))
	assert.Zero(t, store.CallCount())
}

func TestEmbeddingAdapter_SelfSimilarity(t *testing.T) {
	store := newGenesisStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddEmbeddings(ctx,
		&core.Embedding{UnitID: 1001001, Vector: mock.DeterministicVector("Gen 1:1", 32)},
		&core.Embedding{UnitID: 1001002, Vector: mock.DeterministicVector("Gen 1:2", 32)},
		&core.Embedding{UnitID: 1001003, Vector: mock.DeterministicVector("Gen 1:3", 32)},
	))

	a, err := NewEmbeddingAdapter(store.Embeddings(), mock.NewMockEmbedderWithDimensions(32), WithDimensions(32))
	require.NoError(t, err)

	own, ok := a.GetEmbedding(ctx, 1001002)
	require.True(t, ok)

	matches := a.VectorSearch(ctx, own, 3)
	require.NotEmpty(t, matches)
	assert.Equal(t, core.UnitID(1001002), matches[0].UnitID)
	assert.Greater(t, matches[0].Cosine, 0.99)
}

func TestEmbeddingAdapter_CallerCancellationDoesNotTrip(t *testing.T) {
	store := &stubEmbeddings{
		PingFunc: func(ctx context.Context) error { return ctx.Err() },
		FindNearestFunc: func(ctx context.Context, vector []float32, limit int) ([]core.SimilarityMatch, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return []core.SimilarityMatch{{UnitID: 1, Cosine: 0.9}}, nil
		},
	}
	a, err := NewEmbeddingAdapter(store, mock.NewMockEmbedder())
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	t.Run("before the first probe", func(t *testing.T) {
		assert.Empty(t, a.VectorSearch(canceled, []float32{1}, 3))
		assert.Equal(t, StateUnresolved, a.State())
	})

	t.Run("later calls still reach the store", func(t *testing.T) {
		assert.Len(t, a.VectorSearch(context.Background(), []float32{1}, 3), 1)
		assert.Equal(t, StateAvailable, a.State())
	})

	t.Run("after the probe", func(t *testing.T) {
		assert.Empty(t, a.VectorSearch(canceled, []float32{1}, 3))
		assert.Equal(t, StateAvailable, a.State())
		assert.Len(t, a.VectorSearch(context.Background(), []float32{1}, 3), 1)
	})
}

func TestEmbeddingAdapter_CallTimeoutTrips(t *testing.T) {
	store := &stubEmbeddings{
		FindNearestFunc: func(ctx context.Context, vector []float32, limit int) ([]core.SimilarityMatch, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	a, err := NewEmbeddingAdapter(store, mock.NewMockEmbedder(), WithCallTimeout(10*time.Millisecond))
	require.NoError(t, err)

	assert.Empty(t, a.VectorSearch(context.Background(), []float32{1}, 3))
	assert.Equal(t, StateUnavailable, a.State(), "the adapter's own deadline counts as a store failure")
}
