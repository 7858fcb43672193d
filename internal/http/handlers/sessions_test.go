package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/internal/sessions"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

type fakeRunner struct {
	calls  []string
	result *conversation.TurnResult
	err    error
}

func (f *fakeRunner) RunTurn(_ context.Context, sessionID, message string) (*conversation.TurnResult, error) {
	f.calls = append(f.calls, sessionID+":"+message)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.SessionID = sessionID
	return &res, nil
}

func newTestHandler(t *testing.T, runner *fakeRunner) (*SessionsHandler, *sessions.MemoryStore, http.Handler) {
	t.Helper()
	store := sessions.NewMemoryStore()
	h := NewSessionsHandler(store, runner, logging.New("error"))
	n := 0
	h.newID = func() string {
		n++
		return "s_test" + string(rune('0'+n))
	}

	r := chi.NewRouter()
	r.Post("/api/sessions", h.CreateSession)
	r.Get("/api/sessions", h.ListSessions)
	r.Delete("/api/sessions/inactive", h.DeleteInactive)
	r.Get("/api/sessions/{sessionID}", h.GetSession)
	r.Post("/api/sessions/{sessionID}/messages", h.PostMessage)
	return h, store, r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetSession(t *testing.T) {
	_, _, router := newTestHandler(t, &fakeRunner{})

	rec := do(t, router, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "s_test1", created.SessionID)
	assert.False(t, created.CreatedAt.IsZero())

	rec = do(t, router, http.MethodGet, "/api/sessions/s_test1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "s_test1", detail["session_id"])
	assert.Equal(t, "active", detail["status"])
	assert.Contains(t, detail, "result")
	assert.Nil(t, detail["result"])
}

func TestGetSession_WithResult(t *testing.T) {
	_, store, router := newTestHandler(t, &fakeRunner{})
	ctx := context.Background()
	_, err := store.Create(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, store.SaveResult(ctx, "s1", json.RawMessage(`{"self_pay":true}`)))

	rec := do(t, router, http.MethodGet, "/api/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, true, detail.Result["self_pay"])
}

func TestGetSession_NotFound(t *testing.T) {
	_, _, router := newTestHandler(t, &fakeRunner{})
	rec := do(t, router, http.MethodGet, "/api/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessions(t *testing.T) {
	_, _, router := newTestHandler(t, &fakeRunner{})

	rec := do(t, router, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	do(t, router, http.MethodPost, "/api/sessions", "")
	do(t, router, http.MethodPost, "/api/sessions", "")

	rec = do(t, router, http.MethodGet, "/api/sessions?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []sessions.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(t, router, http.MethodGet, "/api/sessions?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteInactive(t *testing.T) {
	_, store, router := newTestHandler(t, &fakeRunner{})
	ctx := context.Background()
	_, err := store.Create(ctx, "open")
	require.NoError(t, err)
	_, err = store.Create(ctx, "done")
	require.NoError(t, err)
	done := sessions.StatusCompleted
	require.NoError(t, store.Update(ctx, "done", sessions.Update{Status: &done}))

	rec := do(t, router, http.MethodDelete, "/api/sessions/inactive", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())

	_, err = store.Get(ctx, "done")
	require.NoError(t, err)
}

func TestPostMessage(t *testing.T) {
	runner := &fakeRunner{result: &conversation.TurnResult{Kind: conversation.TurnText, Content: "Do you have public insurance?"}}
	_, _, router := newTestHandler(t, runner)

	rec := do(t, router, http.MethodPost, "/api/sessions/s1/messages", `{"message":"  hej  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1:hej"}, runner.calls)

	var res conversation.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, conversation.TurnText, res.Kind)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, "Do you have public insurance?", res.Content)
}

func TestPostMessage_Invalid(t *testing.T) {
	runner := &fakeRunner{}
	_, _, router := newTestHandler(t, runner)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/sessions/s1/messages", `{"message":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/sessions/s1/messages", `not json`).Code)
	assert.Empty(t, runner.calls)
}

func TestPostMessage_TurnFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.Join(conversation.ErrExternalCall, errors.New("bedrock throttled"))}
	_, _, router := newTestHandler(t, runner)

	rec := do(t, router, http.MethodPost, "/api/sessions/s1/messages", `{"message":"hello"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var res conversation.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, *conversation.ApologyResult("s1"), res)
}
