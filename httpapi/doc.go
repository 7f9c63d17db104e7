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


// Package httpapi exposes retrieval over HTTP.
//
// Routes:
//
//	POST /v1/retrieve  {"query": "...", "top_k": 5}
//	GET  /healthz
//
// Invalid requests get 400 with {"error": "..."}; every other retrieval
// outcome, including an offline store, is a 200 with a possibly empty
// results array.
package httpapi
