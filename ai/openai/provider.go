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


package openai

import (
	"log/slog"

	"github.com/poiesic/lectio/ai"
	"github.com/poiesic/lectio/ai/rerank"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It manages the embedder and, when configured, a rerank client.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	scorer   *rerank.Client
	logger   *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:   config,
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-provider"),
	}

	if config.RerankEnabled() {
		p.scorer, err = rerank.NewClient(config)
		if err != nil {
			return nil, err
		}
	} else {
		p.logger.Info("no rerank host configured, results keep cosine order")
	}

	return p, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Scorer returns the rerank client, or nil when reranking is disabled.
func (p *Provider) Scorer() ai.Scorer {
	if p.scorer == nil {
		return nil
	}
	return p.scorer
}

// Close releases resources held by the provider.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	if p.scorer != nil {
		p.scorer.Close()
	}
	return nil
}
