package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/holdfast"
	"github.com/aretw0/holdfast/pkg/adapters/memory"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/aretw0/holdfast/pkg/realtime"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "secret"

type harness struct {
	svc *holdfast.Service
	srv *httptest.Server
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	svc, err := holdfast.New(memory.NewStore())
	require.NoError(t, err)
	all := append([]Option{WithAPIKey(testKey), WithGatherer(observability.NewRegistry())}, opts...)
	srv := httptest.NewServer(NewHandler(svc, all...))
	t.Cleanup(func() {
		svc.Close()
		srv.Close()
	})
	return &harness{svc: svc, srv: srv}
}

func (h *harness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+BasePath+path, r)
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, testKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSessionsCRUD(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/sessions", sessionRequest{ID: "s1", Name: "alpha"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[domain.Session](t, resp)
	assert.Equal(t, "s1", created.ID)
	assert.False(t, created.Locked)

	resp = h.do(t, http.MethodPost, "/sessions", sessionRequest{ID: "s1", Name: "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/sessions", sessionRequest{Name: "no id"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/sessions/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alpha", decode[domain.Session](t, resp).Name)

	resp = h.do(t, http.MethodPut, "/sessions/s1", sessionRequest{Name: "beta"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/sessions/by-name/beta", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s1", decode[domain.Session](t, resp).ID)

	resp = h.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Session](t, resp), 1)

	resp = h.do(t, http.MethodPost, "/sessions/s1/touch", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodDelete, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decode[errorBody](t, resp).Error)
}

func TestNotFoundRoutes(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPut, "/sessions/ghost", sessionRequest{Name: "x"}).StatusCode)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/sessions/ghost", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/sessions/ghost/touch", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/sessions/by-name/ghost", nil).StatusCode)
}

func TestLockRoutes(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/sessions", sessionRequest{ID: "a", Name: "a"})
	h.do(t, http.MethodPost, "/sessions", sessionRequest{ID: "b", Name: "b"})

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/sessions/a/lock", nil).StatusCode)
	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/sessions/b/lock", nil).StatusCode)
	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/sessions/ghost/lock", nil).StatusCode)

	status := decode[lockStatus](t, h.do(t, http.MethodGet, "/lock", nil))
	assert.True(t, status.Locked)
	assert.Equal(t, "a", status.Holder)
	assert.NotNil(t, status.AcquiredAt)

	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodDelete, "/sessions/b/lock", nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/sessions/a/lock", nil).StatusCode)

	status = decode[lockStatus](t, h.do(t, http.MethodGet, "/lock", nil))
	assert.False(t, status.Locked)
	assert.Empty(t, status.Holder)
}

func TestSweepRoute(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodPost, "/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[map[string]any](t, resp)
	assert.Contains(t, report, "released")
}

func TestAPIKey(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + BasePath + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+BasePath+"/sessions", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestAPIKeyDisabled(t *testing.T) {
	svc, err := holdfast.New(memory.NewStore())
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(svc, WithGatherer(observability.NewRegistry())))
	defer srv.Close()

	resp, err := http.Get(srv.URL + BasePath + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])

	h.do(t, http.MethodPost, "/ws/token", nil)

	resp, err = http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "holdfast_tokens_issued_total")
}

func TestWebSocketFlow(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/ws/token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode[tokenResponse](t, resp)
	require.NotEmpty(t, tok.Token)
	assert.Equal(t, 300, tok.ExpiresIn)

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + BasePath + "/ws?token=" + tok.Token
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return h.svc.Events().Len() == 1 }, time.Second, 5*time.Millisecond)

	_, err = h.svc.Sessions().Create(context.Background(), domain.Session{ID: "s1", Name: "alpha"})
	require.NoError(t, err)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg realtime.Message
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, realtime.TypeSessionChanged, msg.Type)
	assert.Equal(t, "added", msg.Action)

	_, resp2, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode, "tokens are single-use")
}
