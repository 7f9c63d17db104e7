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


// Package reembed computes and stores embeddings for every unit in a store,
// for example after seeding a corpus or switching embedding models.
//
// Units are processed in id-ordered batches with retry and exponential
// backoff around the embedding service. Vectors are normalized to unit
// length before they are written, so stored similarity is plain cosine.
package reembed
