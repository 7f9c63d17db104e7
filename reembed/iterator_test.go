package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/lectio/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitIterator_Basic(t *testing.T) {
	store := setupTestStore(t)
	ids := seedUnits(t, store, 7)

	iterator := NewUnitIterator(store, 3)

	var batches [][]core.UnitID
	err := iterator.ForEach(context.Background(), func(units []*core.Unit) error {
		batch := make([]core.UnitID, len(units))
		for i, u := range units {
			batch[i] = u.ID
		}
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, batches, 3)
	assert.Equal(t, ids[0:3], batches[0])
	assert.Equal(t, ids[3:6], batches[1])
	assert.Equal(t, ids[6:7], batches[2])
}

func TestUnitIterator_EmptyStore(t *testing.T) {
	store := setupTestStore(t)

	called := false
	err := NewUnitIterator(store, 10).ForEach(context.Background(), func([]*core.Unit) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "should not call fn for empty store")
}

func TestUnitIterator_ErrorHandling(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 6)

	expected := errors.New("stop")
	calls := 0
	err := NewUnitIterator(store, 2).ForEach(context.Background(), func([]*core.Unit) error {
		calls++
		if calls == 2 {
			return expected
		}
		return nil
	})
	require.ErrorIs(t, err, expected)
	assert.Equal(t, 2, calls, "should stop after the failing batch")
}

func TestUnitIterator_ContextCancellation(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 6)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewUnitIterator(store, 2).ForEach(ctx, func([]*core.Unit) error {
		calls++
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestUnitIterator_CanceledBeforeStart(t *testing.T) {
	store := setupTestStore(t)
	seedUnits(t, store, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewUnitIterator(store, 2).ForEach(ctx, func([]*core.Unit) error {
		t.Fatal("fn should not be called")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestUnitIterator_InvalidBatchSize(t *testing.T) {
	store := setupTestStore(t)
	assert.Equal(t, DefaultBatchSize, NewUnitIterator(store, 0).batchSize)
	assert.Equal(t, DefaultBatchSize, NewUnitIterator(store, -5).batchSize)
}
