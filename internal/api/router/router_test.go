package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/gyn-triage/internal/http/middleware"
	"github.com/wolfman30/gyn-triage/internal/sessions"
	"github.com/wolfman30/gyn-triage/internal/webchat"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

type echoRunner struct{}

func (echoRunner) RunTurn(_ context.Context, sessionID, message string) (*conversation.TurnResult, error) {
	return &conversation.TurnResult{SessionID: sessionID, Kind: conversation.TurnText, Content: "echo: " + message}, nil
}

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()
	logger := logging.New("error")
	store := sessions.NewMemoryStore()
	cfg := &Config{
		Logger:         logger,
		Sessions:       handlers.NewSessionsHandler(store, echoRunner{}, logger),
		Webchat:        webchat.NewHandler(echoRunner{}, store, logger),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterHealthDegraded(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.HealthChecks = map[string]HealthCheck{
			"redis":    func(context.Context) error { return errors.New("connection refused") },
			"postgres": func(context.Context) error { return nil },
		}
	})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, map[string]string{"redis": "connection refused"}, resp.Checks)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	rec := serve(newTestRouter(t, nil), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestRouterSessionFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created handlers.CreateSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/messages", strings.NewReader(`{"message":"hi"}`))
	rec = serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var turn conversation.TurnResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&turn))
	assert.Equal(t, "echo: hi", turn.Content)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []sessions.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, created.SessionID, list[0].ID)
}

func TestRouterStaffAuth(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.StaffAuthSecret = "secret" })

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/ws/s1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := httpmiddleware.IssueStaffToken("secret", "nurse", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, serve(router, req).Code)

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestRouterMessageRateLimit(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.MessageLimiter = httpmiddleware.NewRateLimiter(0.001, 1) })

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/messages", strings.NewReader(`{"message":"hi"}`))
		return serve(router, req).Code
	}
	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/api/sessions", nil)).Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.CORSAllowedOrigins = []string{"https://dash.clinic.test"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "https://dash.clinic.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(router, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.clinic.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
