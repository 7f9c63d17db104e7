package reembed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage/badger"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.embedTextFunc != nil {
		return m.embedTextFunc(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	// Default: return unnormalized vectors for each text
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

func setupTestStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.NewMemoryStore(badger.WithDimensions(3))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedUnits stores n verses of Genesis 1. Every unit gets words unless
// its index is listed in wordless.
func seedUnits(t *testing.T, store *badger.Store, n int, wordless ...int) []core.UnitID {
	t.Helper()
	ctx := context.Background()

	skip := make(map[int]bool, len(wordless))
	for _, i := range wordless {
		skip[i] = true
	}

	ids := make([]core.UnitID, n)
	units := make([]*core.Unit, n)
	var words []*core.UnitWord
	for i := range n {
		verse := i + 1
		id := core.UnitID(1001000 + verse)
		ids[i] = id
		units[i] = &core.Unit{
			ID:          id,
			Reference:   fmt.Sprintf("Gen 1:%d", verse),
			Translation: "KJV",
			Book:        "Gen",
			Chapter:     1,
			Verse:       verse,
		}
		if skip[i] {
			continue
		}
		words = append(words,
			&core.UnitWord{UnitID: id, Position: 0, Text: "verse"},
			&core.UnitWord{UnitID: id, Position: 1, Text: fmt.Sprintf("%d", verse)},
		)
	}
	require.NoError(t, store.AddUnits(ctx, units...))
	if len(words) > 0 {
		require.NoError(t, store.AddUnitWords(ctx, words...))
	}
	return ids
}

func testConfig() *Config {
	return &Config{
		BatchSize:      3,
		ReportInterval: 3,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		ModelVersion:   "test-model",
		Dimensions:     3,
	}
}
