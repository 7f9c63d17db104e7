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


package reembed

import (
	"context"

	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

const (
	// DefaultBatchSize is the default number of units to fetch in each batch
	DefaultBatchSize = 100
)

// UnitIterator walks every unit of a store in id-ordered batches.
type UnitIterator struct {
	loader    storage.Loader
	batchSize int
}

// NewUnitIterator creates a new unit iterator.
// batchSize: number of units per batch; values <= 0 use DefaultBatchSize
func NewUnitIterator(loader storage.Loader, batchSize int) *UnitIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &UnitIterator{
		loader:    loader,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of units.
// Iteration stops on the first error from fn or the store.
// Context cancellation is checked before every batch.
func (it *UnitIterator) ForEach(ctx context.Context, fn func([]*core.Unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return it.loader.ForEachUnit(ctx, it.batchSize, func(units []*core.Unit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(units) == 0 {
			return nil
		}
		return fn(units)
	})
}
