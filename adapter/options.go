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


package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultEntityLimit caps the entities attached to one enriched unit.
const DefaultEntityLimit = 10

// DefaultCallTimeout bounds every store, encoder and scorer call made by an adapter.
const DefaultCallTimeout = 5 * time.Second

var (
	// ErrEmbedderRequired is returned when an embedding adapter is built with a store but no encoder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidDimensions is returned for a non-positive vector dimension.
	ErrInvalidDimensions = errors.New("dimensions must be positive")

	// ErrInvalidTimeout is returned for a non-positive call timeout.
	ErrInvalidTimeout = errors.New("call timeout must be positive")
)

type settings struct {
	logger      *slog.Logger
	timeout     time.Duration
	dimensions  int
	concurrency int
	entityLimit int
}

func defaultSettings() settings {
	return settings{
		logger:      slog.Default(),
		timeout:     DefaultCallTimeout,
		concurrency: 1,
		entityLimit: DefaultEntityLimit,
	}
}

// Option configures an adapter. Options that do not apply to an adapter are ignored by it.
type Option func(*settings) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCallTimeout sets the per-call timeout. A call that times out is
// treated as a dependency failure.
func WithCallTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d <= 0 {
			return ErrInvalidTimeout
		}
		s.timeout = d
		return nil
	}
}

// WithDimensions sets the expected embedding dimension.
// Without it the embedding adapter accepts any non-empty vector.
func WithDimensions(dim int) Option {
	return func(s *settings) error {
		if dim <= 0 {
			return ErrInvalidDimensions
		}
		s.dimensions = dim
		return nil
	}
}

// WithConcurrency sets how many units the relationship adapter enriches at
// once in a batch. Default is 1 (sequential).
func WithConcurrency(n int) Option {
	return func(s *settings) error {
		if n < 1 {
			n = 1
		}
		s.concurrency = n
		return nil
	}
}

// WithEntityLimit sets how many entities the relationship adapter attaches
// to an enriched unit. Zero disables entity matching.
func WithEntityLimit(n int) Option {
	return func(s *settings) error {
		if n < 0 {
			n = 0
		}
		s.entityLimit = n
		return nil
	}
}

func applyOptions(opts []Option) (settings, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s settings) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
