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

import "errors"

// Domain validation errors
var (
	// ErrInvalidArgument indicates a caller supplied a malformed request.
	// It is the only error a retrieval call returns.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyQuery indicates the query was empty after trimming whitespace.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidTopK indicates topK was less than 1.
	ErrInvalidTopK = errors.New("topK must be at least 1")

	// ErrDimensionMismatch indicates a vector does not have the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyVector indicates an embedding has no components.
	ErrEmptyVector = errors.New("embedding vector cannot be empty")
)
