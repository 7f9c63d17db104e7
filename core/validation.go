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
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest validates a retrieval request according to domain rules.
//
// Validation rules:
//   - Query must not be empty after trimming whitespace
//   - TopK must be at least 1
//
// The returned error always wraps ErrInvalidArgument together with either
// ErrEmptyQuery or ErrInvalidTopK.
func ValidateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidArgument)
	}

	trimmed := Request{Query: strings.TrimSpace(req.Query), TopK: req.TopK}
	err := validate.Struct(trimmed)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	// Query is declared first, so an empty query is reported ahead of topK.
	switch fieldErrs[0].Field() {
	case "Query":
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrEmptyQuery)
	case "TopK":
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidArgument, ErrInvalidTopK, req.TopK)
	}
	return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
}

// ValidateVector checks that v has exactly dim components.
// Vectors are never truncated or padded to fit.
func ValidateVector(v []float32, dim int) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(v))
	}
	return nil
}

// ValidateEmbedding validates a stored embedding against the index dimension.
func ValidateEmbedding(e *Embedding, dim int) error {
	if e == nil {
		return fmt.Errorf("%w: embedding is nil", ErrEmptyVector)
	}
	if err := ValidateVector(e.Vector, dim); err != nil {
		return fmt.Errorf("unit %d: %w", e.UnitID, err)
	}
	return nil
}
