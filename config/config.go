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


// Package config loads lectio configuration from a TOML file, .env files
// and LECTIO_* environment variables, in increasing order of precedence.
//
// A configuration without a store backend (or without the path or DSN the
// backend needs) is valid: retrieval then runs offline and returns no results.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/lectio/ai"
)

// Store backends.
const (
	BackendNone     = ""
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Duration is a time.Duration written as a string ("5s", "250ms") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete lectio configuration.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	AI        AIConfig        `toml:"ai"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Server    ServerConfig    `toml:"server"`
}

// StoreConfig selects and locates the backing store.
type StoreConfig struct {
	// Backend is "badger", "postgres" or empty for no store.
	Backend string `toml:"backend"`
	// Path is the badger data directory.
	Path string `toml:"path"`
	// DSN is the postgres connection string.
	DSN string `toml:"dsn"`
}

// AIConfig locates the embedding and rerank services.
type AIConfig struct {
	EmbeddingHost           string   `toml:"embedding_host"`
	EmbeddingModel          string   `toml:"embedding_model"`
	Dimensions              int      `toml:"dimensions"`
	RerankHost              string   `toml:"rerank_host"`
	RerankModel             string   `toml:"rerank_model"`
	RerankRequestsPerSecond float64  `toml:"rerank_requests_per_second"`
	RerankBurst             int      `toml:"rerank_burst"`
	RequestTimeout          Duration `toml:"request_timeout"`
}

// RetrievalConfig tunes the retrieval pipeline.
type RetrievalConfig struct {
	TopK           int      `toml:"top_k"`
	PoolMultiplier int      `toml:"pool_multiplier"`
	ContextRadius  int      `toml:"context_radius"`
	IncludeLinks   bool     `toml:"include_links"`
	EntityLimit    int      `toml:"entity_limit"`
	Concurrency    int      `toml:"concurrency"`
	CallTimeout    Duration `toml:"call_timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Default returns the built-in configuration: no store, local AI services,
// reranking disabled.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		AI: AIConfig{
			EmbeddingHost:  aiDefaults.EmbeddingHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			Dimensions:     aiDefaults.Dimensions,
			RerankModel:    aiDefaults.RerankModel,
			RerankBurst:    aiDefaults.RerankBurst,
			RequestTimeout: Duration{aiDefaults.RequestTimeout},
		},
		Retrieval: RetrievalConfig{
			TopK:           5,
			PoolMultiplier: 1,
			IncludeLinks:   true,
			EntityLimit:    10,
			Concurrency:    1,
			CallTimeout:    Duration{5 * time.Second},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration{10 * time.Second},
			WriteTimeout:    Duration{30 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
		},
	}
}

// Load builds a configuration from defaults, the TOML file at path (if
// path is not empty), .env in the working directory (if present) and the
// process environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	// A missing .env is not an error
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return err
	}
	return nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	encoder := toml.NewEncoder(w)
	encoder.SetIndentTables(true)
	return encoder.Encode(c)
}

// Offline reports whether no store connection is configured.
func (c *Config) Offline() bool {
	switch c.Store.Backend {
	case BackendBadger:
		return c.Store.Path == ""
	case BackendPostgres:
		return c.Store.DSN == ""
	default:
		return true
	}
}

// AIConfig converts the [ai] section to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithDimensions(c.AI.Dimensions),
		ai.WithRerankHost(c.AI.RerankHost),
		ai.WithRerankModel(c.AI.RerankModel),
		ai.WithRerankRateLimit(c.AI.RerankRequestsPerSecond, c.AI.RerankBurst),
		ai.WithRequestTimeout(c.AI.RequestTimeout.Duration),
	)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendNone, BackendBadger, BackendPostgres:
	default:
		return fmt.Errorf("config: unknown store backend %q (want badger, postgres or empty)", c.Store.Backend)
	}
	if c.AI.Dimensions <= 0 {
		return errors.New("config: ai.dimensions must be positive")
	}
	if c.AI.RerankRequestsPerSecond < 0 {
		return errors.New("config: ai.rerank_requests_per_second cannot be negative")
	}
	if c.AI.RerankBurst < 1 {
		return errors.New("config: ai.rerank_burst must be at least 1")
	}
	if c.AI.RequestTimeout.Duration <= 0 {
		return errors.New("config: ai.request_timeout must be positive")
	}
	if c.Retrieval.TopK < 1 {
		return errors.New("config: retrieval.top_k must be at least 1")
	}
	if c.Retrieval.PoolMultiplier < 1 {
		return errors.New("config: retrieval.pool_multiplier must be at least 1")
	}
	if c.Retrieval.ContextRadius < 0 {
		return errors.New("config: retrieval.context_radius cannot be negative")
	}
	if c.Retrieval.EntityLimit < 0 {
		return errors.New("config: retrieval.entity_limit cannot be negative")
	}
	if c.Retrieval.Concurrency < 1 {
		return errors.New("config: retrieval.concurrency must be at least 1")
	}
	if c.Retrieval.CallTimeout.Duration <= 0 {
		return errors.New("config: retrieval.call_timeout must be positive")
	}
	return nil
}
