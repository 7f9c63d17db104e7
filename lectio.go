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


// Package lectio wires a store, AI services and the retrieval adapters into
// a ready-to-use Engine.
package lectio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/lectio/adapter"
	"github.com/poiesic/lectio/ai"
	"github.com/poiesic/lectio/ai/openai"
	"github.com/poiesic/lectio/config"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/corpus"
	"github.com/poiesic/lectio/reembed"
	"github.com/poiesic/lectio/search"
	"github.com/poiesic/lectio/storage"
	"github.com/poiesic/lectio/storage/badger"
	"github.com/poiesic/lectio/storage/postgres"
)

// Engine owns a store connection, an AI provider and the retriever built on them.
type Engine struct {
	config        *config.Config
	store         storage.Store
	provider      ai.AIProvider
	embeddings    *adapter.EmbeddingAdapter
	reranker      *adapter.RerankerAdapter
	relationships *adapter.RelationshipAdapter
	retriever     *search.Retriever
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	store    storage.Store
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithStore uses an already opened store instead of the configured backend.
// The engine takes ownership and closes it on Close.
func WithStore(store storage.Store) Option {
	return func(o *engineOptions) {
		o.store = store
	}
}

// WithProvider uses the given AI provider instead of the OpenAI-compatible one.
// The engine takes ownership and closes it on Close.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open builds an engine from cfg. A nil cfg means config.Default().
// A configuration without a store yields an engine whose retrievals
// always return no results.
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	e := &Engine{
		config: cfg,
		store:  options.store,
		logger: options.logger.With("component", "lectio"),
	}

	if e.store == nil && !cfg.Offline() {
		store, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		e.store = store
	}

	e.provider = options.provider
	if e.provider == nil {
		provider, err := openai.NewProvider(cfg.AIConfig())
		if err != nil {
			e.closeStore()
			return nil, err
		}
		e.provider = provider
	}

	if err := e.build(options.logger); err != nil {
		e.Close()
		return nil, err
	}

	if e.store == nil {
		e.logger.Warn("no store configured, retrieval runs offline")
	}
	return e, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendBadger:
		store, err := badger.OpenStore(cfg.Store.Path, badger.WithDimensions(cfg.AI.Dimensions))
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, nil
	case config.BackendPostgres:
		store, err := postgres.Open(cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func (e *Engine) build(logger *slog.Logger) error {
	var (
		embeddingRepo    storage.EmbeddingRepository
		unitRepo         storage.UnitRepository
		relationshipRepo storage.RelationshipRepository
	)
	if e.store != nil {
		embeddingRepo = e.store.Embeddings()
		unitRepo = e.store.Units()
		relationshipRepo = e.store.Relationships()
	}

	r := e.config.Retrieval
	adapterOpts := []adapter.Option{
		adapter.WithLogger(logger),
		adapter.WithCallTimeout(r.CallTimeout.Duration),
		adapter.WithDimensions(e.config.AI.Dimensions),
		adapter.WithConcurrency(r.Concurrency),
		adapter.WithEntityLimit(r.EntityLimit),
	}

	var err error
	e.embeddings, err = adapter.NewEmbeddingAdapter(embeddingRepo, e.provider.Embedder(), adapterOpts...)
	if err != nil {
		return err
	}
	e.reranker, err = adapter.NewRerankerAdapter(e.provider.Scorer(), unitRepo, adapterOpts...)
	if err != nil {
		return err
	}
	e.relationships, err = adapter.NewRelationshipAdapter(unitRepo, relationshipRepo, adapterOpts...)
	if err != nil {
		return err
	}

	e.retriever, err = search.NewRetriever(e.embeddings, e.reranker, e.relationships,
		search.WithLogger(logger),
		search.WithPoolMultiplier(r.PoolMultiplier),
		search.WithContextRadius(r.ContextRadius),
		search.WithIncludeLinks(r.IncludeLinks),
	)
	return err
}

// Retriever returns the engine's retriever.
func (e *Engine) Retriever() *search.Retriever {
	return e.retriever
}

// Retrieve runs a retrieval with the engine's retriever.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]core.Result, error) {
	return e.retriever.Retrieve(ctx, query, topK)
}

// Health reports the state of each retrieval dependency.
func (e *Engine) Health(ctx context.Context) search.Health {
	return e.retriever.Health(ctx)
}

// Embedder returns the embedding service used for queries.
func (e *Engine) Embedder() ai.Embedder {
	return e.provider.Embedder()
}

// Loader returns the write side of the store, when the backend has one.
func (e *Engine) Loader() (storage.Loader, bool) {
	if e.store == nil {
		return nil, false
	}
	loader, ok := e.store.(storage.Loader)
	return loader, ok
}

// LoadCorpus writes a corpus to the store. Embeddings are not computed;
// run a reembedder afterwards.
func (e *Engine) LoadCorpus(ctx context.Context, c *corpus.Corpus) (corpus.Stats, error) {
	loader, ok := e.Loader()
	if !ok {
		return corpus.Stats{}, fmt.Errorf("load corpus: %w", storage.ErrReadOnly)
	}
	return corpus.Load(ctx, loader, c)
}

// NewReembedder creates a reembedder over the engine's store and embedder.
// A nil config uses reembed.DefaultConfig with the configured model and
// dimensions.
func (e *Engine) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	loader, ok := e.Loader()
	if !ok {
		return nil, fmt.Errorf("reembed: %w", storage.ErrReadOnly)
	}
	if config == nil {
		config = reembed.DefaultConfig()
		config.ModelVersion = e.config.AI.EmbeddingModel
		config.Dimensions = e.config.AI.Dimensions
	}
	return reembed.NewReembedder(e.store.Units(), loader, e.provider.Embedder(), config, progress)
}

// Close releases the worker pool, the AI provider and the store.
func (e *Engine) Close() error {
	if e.relationships != nil {
		e.relationships.Release()
	}

	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.closeStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) closeStore() error {
	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	if err != nil {
		e.logger.Error("error closing store", "err", err)
	}
	e.store = nil
	return err
}
