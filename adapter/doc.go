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


// Package adapter wraps the backing store and the AI services behind the
// three adapters used by retrieval:
//
//   - EmbeddingAdapter: stored embeddings, query encoding and vector search
//   - RerankerAdapter: relevance scoring and score fusion
//   - RelationshipAdapter: named entities, links and context windows
//
// Adapters never return errors. A failing dependency shows up as missing
// vectors, pass-through scores or empty enrichment. The embedding and
// relationship adapters own a DependencyHandle that is resolved once, on
// first use, and stays unavailable after the first failure; build a new
// adapter to probe again.
package adapter
