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


// Package corpus reads verse corpora from JSON and writes them to a store.
//
// A corpus file holds three arrays: units (verses with their text),
// entities and links. Text is split on whitespace into positioned source
// words. Embeddings are not part of a corpus; compute them afterwards with
// the reembed package.
package corpus

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/storage"
)

//go:embed sample.json
var sampleJSON []byte

var (
	// ErrInvalidCorpus wraps every validation failure.
	ErrInvalidCorpus = errors.New("invalid corpus")

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Verse is a unit together with its source text.
type Verse struct {
	ID          core.UnitID `json:"unit_id" validate:"gt=0"`
	Reference   string      `json:"reference" validate:"required"`
	Translation string      `json:"translation" validate:"required"`
	Book        string      `json:"book" validate:"required"`
	Chapter     int         `json:"chapter" validate:"gte=1"`
	Verse       int         `json:"verse" validate:"gte=1"`
	Text        string      `json:"text"`
}

// Unit returns the verse without its text.
func (v Verse) Unit() *core.Unit {
	return &core.Unit{
		ID:          v.ID,
		Reference:   v.Reference,
		Translation: v.Translation,
		Book:        v.Book,
		Chapter:     v.Chapter,
		Verse:       v.Verse,
	}
}

// Words splits the verse text on whitespace.
func (v Verse) Words() []*core.UnitWord {
	fields := strings.Fields(v.Text)
	words := make([]*core.UnitWord, len(fields))
	for i, f := range fields {
		words[i] = &core.UnitWord{UnitID: v.ID, Position: i, Text: f}
	}
	return words
}

// Corpus is the decoded content of a corpus file.
type Corpus struct {
	Units    []Verse               `json:"units" validate:"dive"`
	Entities []core.NamedEntity    `json:"entities"`
	Links    []core.UnitEntityLink `json:"links"`
}

// Stats counts what Load wrote.
type Stats struct {
	Units    int `json:"units"`
	Words    int `json:"words"`
	Entities int `json:"entities"`
	Links    int `json:"links"`
}

// Decode reads and validates a corpus.
func Decode(r io.Reader) (*Corpus, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var c Corpus
	if err := sonic.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorpus, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Sample returns the small built-in corpus of Genesis and John verses.
func Sample() (*Corpus, error) {
	return Decode(bytes.NewReader(sampleJSON))
}

// Validate checks field constraints and uniqueness of unit ids, entity
// names and link ids. Links may reference units outside the corpus.
func (c *Corpus) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s fails %q", ErrInvalidCorpus, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidCorpus, err)
	}

	units := make(map[core.UnitID]bool, len(c.Units))
	for _, v := range c.Units {
		if units[v.ID] {
			return fmt.Errorf("%w: duplicate unit %d", ErrInvalidCorpus, v.ID)
		}
		units[v.ID] = true
	}

	names := make(map[string]bool, len(c.Entities))
	for _, e := range c.Entities {
		key := strings.ToLower(strings.TrimSpace(e.UnifiedName))
		if key == "" {
			return fmt.Errorf("%w: entity without unified_name", ErrInvalidCorpus)
		}
		if names[key] {
			return fmt.Errorf("%w: duplicate entity %q", ErrInvalidCorpus, e.UnifiedName)
		}
		names[key] = true
	}

	links := make(map[int64]bool, len(c.Links))
	for _, l := range c.Links {
		if l.LinkID <= 0 {
			return fmt.Errorf("%w: link id must be positive (unit %d)", ErrInvalidCorpus, l.UnitID)
		}
		if links[l.LinkID] {
			return fmt.Errorf("%w: duplicate link %d", ErrInvalidCorpus, l.LinkID)
		}
		links[l.LinkID] = true
	}
	return nil
}

// Load writes the corpus to loader. Existing records with the same keys
// are replaced.
func Load(ctx context.Context, loader storage.Loader, c *Corpus) (Stats, error) {
	var stats Stats

	if len(c.Units) > 0 {
		units := make([]*core.Unit, len(c.Units))
		var words []*core.UnitWord
		for i, v := range c.Units {
			units[i] = v.Unit()
			words = append(words, v.Words()...)
		}
		if err := loader.AddUnits(ctx, units...); err != nil {
			return stats, fmt.Errorf("add units: %w", err)
		}
		stats.Units = len(units)
		if len(words) > 0 {
			if err := loader.AddUnitWords(ctx, words...); err != nil {
				return stats, fmt.Errorf("add words: %w", err)
			}
		}
		stats.Words = len(words)
	}

	if len(c.Entities) > 0 {
		entities := make([]*core.NamedEntity, len(c.Entities))
		for i := range c.Entities {
			entities[i] = &c.Entities[i]
		}
		if err := loader.AddEntities(ctx, entities...); err != nil {
			return stats, fmt.Errorf("add entities: %w", err)
		}
		stats.Entities = len(entities)
	}

	if len(c.Links) > 0 {
		links := make([]*core.UnitEntityLink, len(c.Links))
		for i := range c.Links {
			links[i] = &c.Links[i]
		}
		if err := loader.AddLinks(ctx, links...); err != nil {
			return stats, fmt.Errorf("add links: %w", err)
		}
		stats.Links = len(links)
	}

	return stats, nil
}
