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


package search

import "errors"

var (
	// ErrEmbeddingAdapterRequired is returned when an embedding adapter is not provided.
	ErrEmbeddingAdapterRequired = errors.New("embedding adapter required")

	// ErrRerankerAdapterRequired is returned when a reranker adapter is not provided.
	ErrRerankerAdapterRequired = errors.New("reranker adapter required")

	// ErrRelationshipAdapterRequired is returned when a relationship adapter is not provided.
	ErrRelationshipAdapterRequired = errors.New("relationship adapter required")

	// ErrInvalidPoolMultiplier is returned for a candidate pool multiplier below 1.
	ErrInvalidPoolMultiplier = errors.New("pool multiplier must be at least 1")

	// ErrInvalidContextRadius is returned for a negative context radius.
	ErrInvalidContextRadius = errors.New("context radius cannot be negative")
)
