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


// Package search provides retrieval of verses for a natural-language query.
//
// The Retriever runs a fixed sequence of stages for every call:
//   - Validate the query and result size
//   - Encode the query and search stored embeddings by cosine similarity
//   - Rerank the candidates and fuse the scores
//   - Attach a context window of neighboring verses (empty by default)
//   - Enrich each candidate with named entities and cross-language hints
//   - Truncate to the requested size
//
// Only invalid arguments are reported as errors. When a dependency is down
// the call still succeeds with fewer results, cosine-ordered results, or
// empty metadata.
package search
