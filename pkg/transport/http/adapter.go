// Package http adapts the spielwerk service to HTTP. It owns routing,
// request decoding and validation, response envelopes, and the mapping of
// internal errors onto HTTP status codes.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/observability"
	"github.com/rhuss/spielwerk/pkg/retrieval"
	"github.com/rhuss/spielwerk/pkg/transport"
)

// Adapter serves the game generation API over HTTP.
type Adapter struct {
	generator  transport.GameGenerator
	store      transport.ConversationStore // nil when running stateless
	ingester   transport.DocumentIngester  // nil when retrieval is disabled
	mux        *http.ServeMux
	config     Config
	validation api.ValidationConfig
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	Validation  api.ValidationConfig
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		Validation:  api.DefaultValidationConfig(),
	}
}

// NewAdapter creates an HTTP adapter. The store and ingester are optional;
// their endpoints report the missing capability when nil.
func NewAdapter(generator transport.GameGenerator, store transport.ConversationStore, ingester transport.DocumentIngester, cfg Config) *Adapter {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if cfg.Validation.MaxPromptSize == 0 {
		cfg.Validation = api.DefaultValidationConfig()
	}

	a := &Adapter{
		generator:  generator,
		store:      store,
		ingester:   ingester,
		mux:        http.NewServeMux(),
		config:     cfg,
		validation: cfg.Validation,
	}

	a.route("POST /v1/games/generate", a.handleGenerate)
	a.route("POST /v1/games/iterate", a.handleIterate)
	a.route("GET /v1/conversations", a.handleListConversations)
	a.route("GET /v1/conversations/{id}", a.handleGetConversation)
	a.route("DELETE /v1/conversations/{id}", a.handleDeleteConversation)
	a.route("POST /v1/documents", a.handleIngestDocuments)
	a.route("GET /healthz", a.handleHealth)

	return a
}

// route registers a handler wrapped with per-route metrics. The registered
// pattern doubles as the metric route label.
func (a *Adapter) route(pattern string, handler http.HandlerFunc) {
	_, path, _ := strings.Cut(pattern, " ")
	a.mux.Handle(pattern, observability.MetricsMiddleware(path, handler))
}

// Handler returns the http.Handler for this adapter, for integration with
// an http.Server or httptest.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

func (a *Adapter) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if apiErr := api.ValidateGenerateRequest(&req, a.validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	result, err := a.generator.Generate(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeResult(w, result)
}

func (a *Adapter) handleIterate(w http.ResponseWriter, r *http.Request) {
	var req api.IterateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if apiErr := api.ValidateIterateRequest(&req, a.validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	result, err := a.generator.Iterate(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeResult(w, result)
}

func (a *Adapter) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("",
			"conversation storage is not configured"))
		return
	}

	opts := transport.ListOptions{
		After: r.URL.Query().Get("after"),
		Order: r.URL.Query().Get("order"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			transport.WriteAPIError(w, api.NewInvalidRequestError("limit",
				"limit must be a positive integer"))
			return
		}
		opts.Limit = limit
	}
	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("order",
			`order must be "asc" or "desc"`))
		return
	}

	list, err := a.store.ListConversations(r.Context(), opts)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *Adapter) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("",
			"conversation storage is not configured"))
		return
	}

	conv, err := a.store.GetConversation(r.Context(), r.PathValue("id"))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (a *Adapter) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("",
			"conversation storage is not configured"))
		return
	}

	id := r.PathValue("id")
	if err := a.store.DeleteConversation(r.Context(), id); err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"object":  "conversation.deleted",
		"deleted": true,
	})
}

// ingestRequest is the administrative payload loading documents into the
// retrieval index.
type ingestRequest struct {
	Documents []ingestDocument `json:"documents"`
}

type ingestDocument struct {
	ID      string `json:"id,omitempty"`
	Source  string `json:"source,omitempty"`
	Content string `json:"content"`
}

func (a *Adapter) handleIngestDocuments(w http.ResponseWriter, r *http.Request) {
	if a.ingester == nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("",
			"retrieval is not configured"))
		return
	}

	var req ingestRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		transport.WriteAPIError(w, api.NewInvalidRequestError("documents",
			"at least one document is required"))
		return
	}

	docs := make([]retrieval.Document, 0, len(req.Documents))
	for i, d := range req.Documents {
		if strings.TrimSpace(d.Content) == "" {
			transport.WriteAPIError(w, api.NewInvalidRequestError(
				fmt.Sprintf("documents[%d].content", i), "content is required"))
			return
		}
		docs = append(docs, retrieval.Document{
			ID:      d.ID,
			Source:  d.Source,
			Content: d.Content,
		})
	}

	chunks, err := a.ingester.Ingest(r.Context(), docs)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"object":         "ingestion.result",
		"documents":      len(docs),
		"chunks_indexed": chunks,
	})
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	checks := map[string]string{}

	if a.store != nil {
		if err := a.store.HealthCheck(r.Context()); err != nil {
			checks["storage"] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// decode reads and unmarshals a JSON request body, enforcing the size
// limit and content type. It writes the error response itself and reports
// success to the caller.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/json") {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("",
					fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)),
				http.StatusRequestEntityTooLarge)
			return false
		}
		transport.WriteAPIError(w,
			api.NewInvalidRequestError("", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// writeResult writes a successful generation response envelope.
func writeResult(w http.ResponseWriter, result *api.GameResult) {
	writeJSON(w, http.StatusOK, api.GenerateResponse{
		Success:   true,
		Data:      result,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
