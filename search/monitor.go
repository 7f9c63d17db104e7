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

import (
	"github.com/poiesic/lectio/core"
)

// Monitor provides hooks to observe a retrieval call.
// Implement this interface to track intermediate steps and results.
// Hooks run synchronously on the retrieval goroutine.
type Monitor interface {
	Start(query string, topK int)
	AfterQueryEmbedding(ok bool)
	AfterVectorSearch(matches []core.SimilarityMatch)
	AfterRerank(candidates []core.Candidate)
	AfterEnrichment(candidates []core.Candidate)
	Finish(results []core.Result)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                      {}
func (n *noopMonitor) AfterQueryEmbedding(_ bool)                 {}
func (n *noopMonitor) AfterVectorSearch(_ []core.SimilarityMatch) {}
func (n *noopMonitor) AfterRerank(_ []core.Candidate)             {}
func (n *noopMonitor) AfterEnrichment(_ []core.Candidate)         {}
func (n *noopMonitor) Finish(_ []core.Result)                     {}
