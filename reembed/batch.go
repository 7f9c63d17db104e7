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
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/lectio/ai"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// BatchProcessor embeds the text of a batch of units and stores the vectors.
type BatchProcessor struct {
	units          storage.UnitRepository
	loader         storage.Loader
	embedder       ai.Embedder
	modelVersion   string
	dimensions     int
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// units supplies unit text; loader receives the embeddings.
func NewBatchProcessor(units storage.UnitRepository, loader storage.Loader, embedder ai.Embedder, config *Config) *BatchProcessor {
	if config == nil {
		config = DefaultConfig()
	}
	return &BatchProcessor{
		units:          units,
		loader:         loader,
		embedder:       embedder,
		modelVersion:   config.ModelVersion,
		dimensions:     config.Dimensions,
		maxRetries:     config.MaxRetries,
		retryBaseDelay: config.RetryDelay,
	}
}

// Process embeds and stores the units of one batch. Units without source
// words are skipped. Returns the number of embeddings written.
func (bp *BatchProcessor) Process(ctx context.Context, units []*core.Unit) (int, error) {
	if len(units) == 0 {
		return 0, nil
	}

	ids := make([]core.UnitID, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}

	var texts map[core.UnitID]string
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		texts, err = bp.units.GetUnitTexts(ctx, ids...)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to load unit text: %w", err)
	}

	// Keep batch order so embeddings line up with their units
	embedIDs := make([]core.UnitID, 0, len(ids))
	embedTexts := make([]string, 0, len(ids))
	for _, id := range ids {
		text := strings.TrimSpace(texts[id])
		if text == "" {
			continue
		}
		embedIDs = append(embedIDs, id)
		embedTexts = append(embedTexts, text)
	}
	if len(embedTexts) == 0 {
		return 0, nil
	}

	var vectors [][]float32
	err = RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, embedTexts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(vectors) != len(embedTexts) {
		return 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(embedTexts), len(vectors))
	}

	embeddings := make([]*core.Embedding, len(vectors))
	for i, vector := range vectors {
		normalized, err := NormalizeVector(vector)
		if err != nil {
			return 0, fmt.Errorf("unit %d: %w", embedIDs[i], err)
		}
		if err := core.ValidateVector(normalized, bp.dimensions); err != nil {
			return 0, fmt.Errorf("unit %d: %w", embedIDs[i], err)
		}
		embeddings[i] = &core.Embedding{
			UnitID:       embedIDs[i],
			Vector:       normalized,
			ModelVersion: bp.modelVersion,
		}
	}

	if err := bp.loader.AddEmbeddings(ctx, embeddings...); err != nil {
		return 0, fmt.Errorf("failed to store embeddings: %w", err)
	}

	return len(embeddings), nil
}
