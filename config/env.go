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


package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "LECTIO_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides configuration values from environment variables.
// DATABASE_URL is honored as a fallback for LECTIO_STORE_DSN.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	if dsn, ok := lookup("DATABASE_URL"); ok && dsn != "" {
		c.Store.DSN = dsn
	}
	e.str("STORE_BACKEND", &c.Store.Backend)
	e.str("STORE_PATH", &c.Store.Path)
	e.str("STORE_DSN", &c.Store.DSN)

	e.str("EMBEDDING_HOST", &c.AI.EmbeddingHost)
	e.str("EMBEDDING_MODEL", &c.AI.EmbeddingModel)
	e.int("DIMENSIONS", &c.AI.Dimensions)
	e.str("RERANK_HOST", &c.AI.RerankHost)
	e.str("RERANK_MODEL", &c.AI.RerankModel)
	e.float("RERANK_RPS", &c.AI.RerankRequestsPerSecond)
	e.int("RERANK_BURST", &c.AI.RerankBurst)
	e.duration("REQUEST_TIMEOUT", &c.AI.RequestTimeout)

	e.int("TOP_K", &c.Retrieval.TopK)
	e.int("POOL_MULTIPLIER", &c.Retrieval.PoolMultiplier)
	e.int("CONTEXT_RADIUS", &c.Retrieval.ContextRadius)
	e.bool("INCLUDE_LINKS", &c.Retrieval.IncludeLinks)
	e.int("ENTITY_LIMIT", &c.Retrieval.EntityLimit)
	e.int("CONCURRENCY", &c.Retrieval.Concurrency)
	e.duration("CALL_TIMEOUT", &c.Retrieval.CallTimeout)

	e.str("SERVER_ADDR", &c.Server.Addr)

	return e.err
}

// envReader records the first parse error and skips the remaining variables.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(EnvPrefix + name)
	return v, ok && v != ""
}

func (e *envReader) fail(name string, err error) {
	e.err = fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) bool(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *Duration) {
	if v, ok := e.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		dst.Duration = d
	}
}
