// Package handlers implements the dashboard's REST endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/internal/sessions"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

const maxMessageBytes = 16 << 10

// SessionsHandler serves the session history API and the HTTP chat fallback.
type SessionsHandler struct {
	store  sessions.Store
	runner conversation.TurnRunner
	logger *logging.Logger
	newID  func() string
}

func NewSessionsHandler(store sessions.Store, runner conversation.TurnRunner, logger *logging.Logger) *SessionsHandler {
	if store == nil {
		panic("handlers: session store cannot be nil")
	}
	if runner == nil {
		panic("handlers: turn runner cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionsHandler{store: store, runner: runner, logger: logger, newID: newSessionID}
}

func newSessionID() string {
	return "s_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// CreateSessionResponse is returned by POST /api/sessions.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionDetailResponse is a session with its finished packet, if any.
type SessionDetailResponse struct {
	sessions.Session
	Result json.RawMessage `json:"result"`
}

// MessageRequest is the body of POST /api/sessions/{id}/messages.
type MessageRequest struct {
	Message string `json:"message"`
}

// CreateSession handles POST /api/sessions.
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Create(r.Context(), h.newID())
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: sess.ID, CreatedAt: sess.CreatedAt})
}

// ListSessions handles GET /api/sessions?limit=N.
func (h *SessionsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if list == nil {
		list = []sessions.Session{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetSession handles GET /api/sessions/{sessionID}.
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := h.store.Get(r.Context(), id)
	if errors.Is(err, sessions.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	result, err := h.store.GetResult(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load session result", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if result == nil {
		result = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, SessionDetailResponse{Session: sess, Result: result})
}

// DeleteInactive handles DELETE /api/sessions/inactive.
func (h *SessionsHandler) DeleteInactive(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.DeleteInactive(r.Context())
	if err != nil {
		h.logger.Error("failed to delete inactive sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete sessions")
		return
	}
	h.logger.Info("deleted inactive sessions", "count", n)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// PostMessage handles POST /api/sessions/{sessionID}/messages and runs one
// turn synchronously. A failed turn answers 502 with the apology result so
// the client can show it and resend.
func (h *SessionsHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if id == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.runner.RunTurn(r.Context(), id, req.Message)
	if err != nil {
		h.logger.Error("chat turn failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusBadGateway, conversation.ApologyResult(id))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
