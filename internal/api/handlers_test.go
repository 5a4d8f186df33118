package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsedesk/pulsedesk/internal/api"
	"github.com/pulsedesk/pulsedesk/internal/auth"
	"github.com/pulsedesk/pulsedesk/internal/core"
	"github.com/pulsedesk/pulsedesk/internal/feeds"
	"github.com/pulsedesk/pulsedesk/internal/ident"
	"github.com/pulsedesk/pulsedesk/internal/store"
	"github.com/pulsedesk/pulsedesk/internal/webhook"
)

// stubGateway answers every mode with the same canned result.
type stubGateway struct {
	result webhook.Result
}

func (g stubGateway) SendPlain(context.Context, string, string) webhook.Result    { return g.result }
func (g stubGateway) SendResearch(context.Context, string, string) webhook.Result { return g.result }
func (g stubGateway) SendReport(context.Context, string, string) webhook.Result   { return g.result }

type testEnv struct {
	server *httptest.Server
	store  store.Store
	token  string
}

func newTestEnv(t *testing.T, gw core.Gateway, newsURL, stocksURL string) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "chatSessions.json"), logger)
	controller := core.NewController(st, gw, &ident.Sequence{}, logger)
	modes := core.NewModeSelector(st)
	tokens := auth.NewTokens("test-secret", time.Hour)
	news := feeds.NewNewsClient(newsURL, time.Second, logger)
	stocks := feeds.NewStockClient(stocksURL, time.Second, logger)

	handler := api.NewAPIHandler(st, controller, modes, tokens, news, stocks, logger)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)

	token, err := tokens.Generate("test-client")
	require.NoError(t, err)

	return &testEnv{server: server, store: st, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLoginAndAuth(t *testing.T) {
	env := newTestEnv(t, stubGateway{}, "", "")

	t.Run("missing token is rejected", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/api/sessions")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("login issues a working token", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"client_id": "spa"})
		resp, err := http.Post(env.server.URL+"/api/login", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		issued := decode[map[string]string](t, resp)
		require.NotEmpty(t, issued["token"])

		req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+issued["token"])
		authed, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer authed.Body.Close()
		assert.Equal(t, http.StatusOK, authed.StatusCode)
	})

	t.Run("login requires a client id", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{})
		resp, err := http.Post(env.server.URL+"/api/login", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, stubGateway{result: webhook.Result{Success: true, Data: []byte(`{"reply":"hi there"}`)}}, "", "")

	// Create: greeting session, hidden from the listing.
	resp := env.do(t, http.MethodPost, "/api/sessions", map[string]string{"mode": ""})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess := decode[store.Session](t, resp)
	require.NotEmpty(t, sess.ID)

	resp = env.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Empty(t, decode[[]store.Session](t, resp))

	// Send: session becomes visible with the settled transcript.
	resp = env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/messages",
		map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sent := decode[api.PostMessageResponse](t, resp)
	assert.Equal(t, "hi there", sent.Reply.Content)
	assert.Empty(t, sent.Notice)

	resp = env.do(t, http.MethodGet, "/api/sessions", nil)
	listed := decode[[]store.Session](t, resp)
	require.Len(t, listed, 1)
	assert.Equal(t, "hello", listed[0].Title)
	assert.Equal(t, "hi there", listed[0].Preview)

	// Fetch the transcript by id.
	resp = env.do(t, http.MethodGet, "/api/sessions/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[store.Session](t, resp)
	assert.Len(t, fetched.Messages, 3) // greeting, user, assistant

	// Active session selection.
	resp = env.do(t, http.MethodPut, "/api/sessions/active", map[string]string{"id": sess.ID})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, sess.ID, env.store.ActiveSession())

	// Delete twice: idempotent.
	resp = env.do(t, http.MethodDelete, "/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, "/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearSessions(t *testing.T) {
	env := newTestEnv(t, stubGateway{result: webhook.Result{Success: true, Data: []byte(`{"reply":"ok"}`)}}, "", "")

	resp := env.do(t, http.MethodPost, "/api/sessions/new/messages", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/sessions", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Empty(t, decode[[]store.Session](t, resp))
}

func TestPostMessageValidation(t *testing.T) {
	env := newTestEnv(t, stubGateway{result: webhook.Result{Success: true, Data: []byte(`{}`)}}, "", "")

	resp := env.do(t, http.MethodPost, "/api/sessions/s1/messages", map[string]string{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/sessions/s1/messages",
		map[string]string{"content": "hi", "mode": "turbo"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostMessageFailureSurfacesNotice(t *testing.T) {
	env := newTestEnv(t, stubGateway{result: webhook.Result{Success: false, Error: "down"}}, "", "")

	resp := env.do(t, http.MethodPost, "/api/sessions/s1/messages", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sent := decode[api.PostMessageResponse](t, resp)
	assert.NotEmpty(t, sent.Notice)
	assert.Contains(t, sent.Reply.Content, "trouble connecting")
}

func TestToggleMode(t *testing.T) {
	env := newTestEnv(t, stubGateway{result: webhook.Result{Success: true, Data: []byte(`{"reply":"ok"}`)}}, "", "")

	resp := env.do(t, http.MethodPost, "/api/sessions", nil)
	sess := decode[store.Session](t, resp)

	resp = env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/mode", map[string]string{"mode": "research"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	toggled := decode[store.Session](t, resp)
	assert.Equal(t, store.ModeResearch, toggled.Type)

	// Two exchanges lock the mode.
	resp = env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/messages", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/mode", map[string]string{"mode": "report"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFeedProxies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":["headline"]}`))
	}))
	defer upstream.Close()

	env := newTestEnv(t, stubGateway{}, upstream.URL, "")

	resp := env.do(t, http.MethodGet, "/api/news", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode[map[string]any](t, resp)
	assert.Contains(t, payload, "items")

	// Stocks upstream not configured.
	resp = env.do(t, http.MethodGet, "/api/stocks", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
