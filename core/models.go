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


package core

import (
	"math"
	"strconv"
)

// UnitID identifies a content unit (a verse) in the backing store.
type UnitID int64

// String returns the decimal form of the id.
func (id UnitID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Unit is a single addressable piece of scripture.
// Units are immutable once ingested.
type Unit struct {
	ID          UnitID `json:"unit_id"`
	Reference   string `json:"reference"`   // Human readable reference, e.g. "Gen 1:1"
	Translation string `json:"translation"` // Source tag, e.g. "KJV", "BHS"
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Verse       int    `json:"verse"`
}

// Embedding is the stored vector for a unit.
type Embedding struct {
	UnitID       UnitID    `json:"unit_id"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// EntityType classifies a named entity.
type EntityType string

const (
	EntityTypePerson EntityType = "PERSON"
	EntityTypePlace  EntityType = "PLACE"
	EntityTypeOther  EntityType = "OTHER"
	// EntityTypeUnknown is the zero value, used when the source row has no type.
	EntityTypeUnknown EntityType = ""
)

// NamedEntity is read-only reference data about a person, place or thing.
type NamedEntity struct {
	UnifiedName string     `json:"unified_name"`
	Type        EntityType `json:"type,omitempty"`
	Category    string     `json:"category,omitempty"`
	Briefest    string     `json:"briefest,omitempty"`
	Brief       string     `json:"brief,omitempty"`
	Short       string     `json:"short,omitempty"`
	Article     string     `json:"article,omitempty"`
	Description string     `json:"description,omitempty"`
	Parents     string     `json:"parents,omitempty"`
	Siblings    string     `json:"siblings,omitempty"`
	Partners    string     `json:"partners,omitempty"`
	Offspring   string     `json:"offspring,omitempty"`
	TribeNation string     `json:"tribe_nation,omitempty"`
	Summary     string     `json:"summary,omitempty"`
}

// UnitEntityLink ties a unit to an entity reference (typically an
// original-language lemma identifier).
type UnitEntityLink struct {
	LinkID      int64  `json:"link_id"`
	UnitID      UnitID `json:"unit_id"`
	EntityRefID string `json:"entity_ref_id"`
	LinkType    string `json:"link_type"`
}

// UnitWord is one token of a unit's source text, in position order.
type UnitWord struct {
	UnitID   UnitID `json:"unit_id"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// EnrichedContext is the per-request metadata assembled for a unit.
type EnrichedContext struct {
	UnitID   UnitID           `json:"unit_id"`
	Entities []NamedEntity    `json:"entities"`
	Links    []UnitEntityLink `json:"links"`
	Summary  string           `json:"summary,omitempty"`
}

// EntityNames returns the unified names of the context's entities.
func (e EnrichedContext) EntityNames() []string {
	names := make([]string, 0, len(e.Entities))
	for _, entity := range e.Entities {
		names = append(names, entity.UnifiedName)
	}
	return names
}

// SimilarityMatch is a single row returned by vector search.
type SimilarityMatch struct {
	UnitID UnitID
	Cosine float64
}

// Candidate is the working record of one retrieval call.
// It is filled in stage by stage and never persisted.
type Candidate struct {
	UnitID        UnitID
	Cosine        float64
	RerankScore   *float64 // nil until a scorer has produced a value
	EdgeStrength  float64
	ContextWindow []UnitID
	Enriched      EnrichedContext
}

// EnrichedMetadata is the response view of an EnrichedContext.
type EnrichedMetadata struct {
	Entities           []string `json:"entities"`
	CrossLanguageHints []string `json:"cross_language_hints"`
}

// Result is one element of a retrieval response.
type Result struct {
	UnitID           UnitID           `json:"unit_id"`
	Cosine           float64          `json:"cosine"`
	RelevanceScore   float64          `json:"relevance_score"`
	ContextWindow    []UnitID         `json:"context_window"`
	EnrichedMetadata EnrichedMetadata `json:"enriched_metadata"`
}

// Request is a retrieval request as received from a caller.
type Request struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k" validate:"gte=1"`
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
