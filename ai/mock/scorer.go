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


package mock

import (
	"context"
	"strings"
	"sync/atomic"
)

// MockScorer is a test double for ai.Scorer.
// By default it scores each document by the fraction of query words it contains.
type MockScorer struct {
	// ScoreFunc is called by Score if set.
	ScoreFunc func(ctx context.Context, query string, documents []string) ([]float64, error)

	// Model is returned by ModelName.
	Model string

	callCount atomic.Int64
}

// NewMockScorer creates a mock scorer with word-overlap scoring.
func NewMockScorer() *MockScorer {
	return &MockScorer{Model: "mock-reranker"}
}

// Score returns one score per document.
func (m *MockScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	m.callCount.Add(1)

	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, query, documents)
	}

	queryWords := strings.Fields(strings.ToLower(query))
	scores := make([]float64, len(documents))
	if len(queryWords) == 0 {
		return scores, nil
	}
	for i, doc := range documents {
		docWords := make(map[string]struct{})
		for _, w := range strings.Fields(strings.ToLower(doc)) {
			docWords[strings.Trim(w, ".,;:!?'\"()")] = struct{}{}
		}
		hits := 0
		for _, w := range queryWords {
			if _, ok := docWords[w]; ok {
				hits++
			}
		}
		scores[i] = float64(hits) / float64(len(queryWords))
	}
	return scores, nil
}

// ModelName returns the configured model name.
func (m *MockScorer) ModelName() string {
	return m.Model
}

// CallCount returns the number of times Score was called.
func (m *MockScorer) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockScorer) Reset() {
	m.callCount.Store(0)
	m.ScoreFunc = nil
}
