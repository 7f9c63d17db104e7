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


package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/poiesic/lectio/core"
	"github.com/poiesic/lectio/search"
)

const (
	// DefaultTopK is used when a request omits top_k.
	DefaultTopK = 5

	// DefaultMaxTopK bounds top_k per request.
	DefaultMaxTopK = 100

	maxBodyBytes = 64 << 10
)

// Service is what the handlers need from a retriever.
// *search.Retriever and *lectio.Engine implement it.
type Service interface {
	Retrieve(ctx context.Context, query string, topK int) ([]core.Result, error)
	Health(ctx context.Context) search.Health
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// RetrieveResponse is the body of a successful retrieval.
type RetrieveResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Results   []core.Result `json:"results"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status       string        `json:"status"`
	Dependencies search.Health `json:"dependencies"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type handler struct {
	service        Service
	defaultTopK    int
	maxTopK        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

// Option configures the router.
type Option func(*handler)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithDefaultTopK sets top_k for requests that omit it.
func WithDefaultTopK(k int) Option {
	return func(h *handler) {
		if k > 0 {
			h.defaultTopK = k
		}
	}
}

// WithMaxTopK sets the largest top_k a request may ask for.
func WithMaxTopK(k int) Option {
	return func(h *handler) {
		if k > 0 {
			h.maxTopK = k
		}
	}
}

// WithRequestTimeout bounds each request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *handler) {
		h.requestTimeout = d
	}
}

// NewRouter returns the HTTP handler for svc.
func NewRouter(svc Service, opts ...Option) http.Handler {
	h := &handler{
		service:        svc,
		defaultTopK:    DefaultTopK,
		maxTopK:        DefaultMaxTopK,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "httpapi")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	if h.requestTimeout > 0 {
		r.Use(middleware.Timeout(h.requestTimeout))
	}

	r.Get("/healthz", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/retrieve", h.retrieve)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (h *handler) retrieve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "could not read request body")
		return
	}

	var req RetrieveRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	topK := h.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK > h.maxTopK {
		h.writeError(w, r, http.StatusBadRequest, "top_k exceeds the maximum of "+strconv.Itoa(h.maxTopK))
		return
	}

	results, err := h.service.Retrieve(r.Context(), req.Query, topK)
	if err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			h.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("retrieval failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
		h.writeError(w, r, http.StatusInternalServerError, "retrieval failed")
		return
	}

	h.writeJSON(w, http.StatusOK, RetrieveResponse{
		RequestID: middleware.GetReqID(r.Context()),
		Results:   results,
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	deps := h.service.Health(r.Context())
	status := "ok"
	if !deps.Embeddings.Usable() || !deps.Reranker.Usable() || !deps.Relationships.Usable() {
		status = "degraded"
	}
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: status, Dependencies: deps})
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     msg,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// logRequests logs one line per request at debug level, or warn for 5xx.
func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		h.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
