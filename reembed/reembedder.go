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
	"io"
	"time"

	"github.com/poiesic/lectio/ai"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of units to embed per request
	BatchSize int

	// ReportInterval is how often to report progress (number of units)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each service call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// ModelVersion is recorded on every stored embedding
	ModelVersion string

	// Dimensions rejects vectors of any other length; 0 disables the check
	Dimensions int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Validate checks the numeric settings.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("dimensions cannot be negative")
	}
	return nil
}

// Summary describes a finished run.
type Summary struct {
	Total    int
	Embedded int
	Elapsed  time.Duration
}

// Skipped is the number of units that had no text to embed.
func (s Summary) Skipped() int {
	return s.Total - s.Embedded
}

// Reembedder embeds every unit of a store.
type Reembedder struct {
	loader    storage.Loader
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *UnitIterator
}

// NewReembedder creates a new reembedder.
// units supplies the text to embed; loader enumerates units and stores vectors.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(units storage.UnitRepository, loader storage.Loader, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if loader == nil {
		return nil, ErrLoaderRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		loader:    loader,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(units, loader, embedder, config),
		iterator:  NewUnitIterator(loader, config.BatchSize),
	}, nil
}

// Run embeds every unit in the store, replacing existing embeddings.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) (Summary, error) {
	total, err := r.loader.CountUnits(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to count units: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No units found in store (0 units)\n")
		return Summary{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d units (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(units []*core.Unit) error {
		embedded, err := r.processor.Process(ctx, units)
		if err != nil {
			return fmt.Errorf("failed to process batch starting at unit %d: %w", units[0].ID, err)
		}
		tracker.Advance(len(units), embedded)
		return nil
	})
	if err != nil {
		_, embedded := tracker.Counts()
		return Summary{Total: total, Embedded: embedded, Elapsed: tracker.Elapsed()}, err
	}

	tracker.Finish()

	_, embedded := tracker.Counts()
	summary := Summary{Total: total, Embedded: embedded, Elapsed: tracker.Elapsed()}
	fmt.Fprintf(r.progress, "Reembedding complete. Embedded %d of %d units in %v (%.1f units/sec)\n",
		summary.Embedded, summary.Total, summary.Elapsed.Round(time.Millisecond),
		float64(summary.Total)/summary.Elapsed.Seconds())

	return summary, nil
}
