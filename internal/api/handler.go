package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/ragroute/internal/ingest"
	"github.com/kalambet/ragroute/internal/router"
	"github.com/kalambet/ragroute/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Asker is the router as seen by the HTTP and MCP layers.
type Asker interface {
	Ask(ctx context.Context, sessionID, query string) (router.Turn, error)
	History(ctx context.Context, sessionID string) ([]router.Message, error)
	Forget(ctx context.Context, sessionID string) error
}

// Reindexer rebuilds the document index on demand.
type Reindexer interface {
	Reindex(ctx context.Context) (ingest.BuildResult, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Router Asker
	// Indexer enables POST /v1/index when set.
	Indexer Reindexer
	// Token, when non-empty, is required as a bearer token on /v1 and as
	// the form's token field (or its cookie) on POST /ask.
	Token string
}

// NewHandler returns the HTTP surface: the form UI at / and the JSON API
// under /v1.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/", handleIndex(deps.Token))
	r.Post("/ask", handleFormAsk(deps.Router, deps.Token))

	r.Route("/v1", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/ask", handleAsk(deps.Router))
		r.Get("/sessions/{id}", handleGetSession(deps.Router))
		r.Delete("/sessions/{id}", handleDeleteSession(deps.Router))
		if deps.Indexer != nil {
			r.Post("/index", handleReindex(deps.Indexer))
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// AskRequest is the body of POST /v1/ask. An empty SessionID starts a new
// session.
type AskRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

func handleAsk(a Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if strings.TrimSpace(req.Query) == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}

		turn, err := a.Ask(r.Context(), req.SessionID, req.Query)
		if err != nil {
			slog.Warn("ask failed", "session_id", req.SessionID, "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}

		writeJSON(w, http.StatusOK, turn)
	}
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []router.Message `json:"messages"`
}

func handleGetSession(a Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		msgs, err := a.History(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading session: %v", err)
			return
		}
		if msgs == nil {
			msgs = []router.Message{}
		}
		writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Messages: msgs})
	}
}

func handleDeleteSession(a Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := a.Forget(r.Context(), id)
		if errors.Is(err, session.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "session %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting session: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type reindexResponse struct {
	Fingerprint string `json:"fingerprint"`
	Chunks      int    `json:"chunks"`
	DurationMS  int64  `json:"duration_ms"`
}

func handleReindex(ix Reindexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		res, err := ix.Reindex(r.Context())
		if err != nil {
			slog.Error("reindex failed", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "rebuilding index: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, reindexResponse{
			Fingerprint: res.Fingerprint,
			Chunks:      res.Chunks,
			DurationMS:  time.Since(start).Milliseconds(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
