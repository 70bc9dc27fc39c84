package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"translate-bridge/internal/services"
	"translate-bridge/internal/sse"
	"translate-bridge/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// siliconflowStub streams the given pieces in OpenAI chunk format
func siliconflowStub(t *testing.T, pieces ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, p := range pieces {
			fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", p)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingStub(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, siliconflowURL, difyURL string) *GinServer {
	t.Helper()
	t.Setenv("SILICONFLOW_API_KEY", "sk-test")
	t.Setenv("SILICONFLOW_BASE_URL", siliconflowURL)
	t.Setenv("DIFY_API_KEY", "app-test")
	t.Setenv("DIFY_BASE_URL", difyURL)
	t.Setenv("REQUEST_TIMEOUT", "2s")

	cfg, err := types.LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	svc, err := services.NewServices(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	server := NewGinServer(logger, svc)
	t.Cleanup(server.Close)
	return server
}

func do(s *GinServer, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(w, req)
	return w
}

func TestPingAndHealth(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	w := do(s, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())

	w = do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestTranslateSync(t *testing.T) {
	s := newTestServer(t, siliconflowStub(t, "你", "好").URL, "http://127.0.0.1:1")

	w := do(s, http.MethodPost, "/translate/sync", `{"text":"Hello","target_language":"zh-CN"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res types.TranslationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "你好", res.TranslatedText)
	assert.Equal(t, types.RolePrimary, res.ProviderUsed)
	assert.False(t, res.FromCache)

	w = do(s, http.MethodPost, "/translate/sync", `{"text":"Hello","target_language":"zh-CN"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.FromCache)

	w = do(s, http.MethodGet, "/cache/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":1`)

	w = do(s, http.MethodDelete, "/cache", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(s, http.MethodGet, "/cache/stats", "")
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestTranslateSync_Errors(t *testing.T) {
	s := newTestServer(t, failingStub(t, http.StatusInternalServerError).URL, failingStub(t, http.StatusBadGateway).URL)

	w := do(s, http.MethodPost, "/translate/sync", `{"text":"Hello","target_language":"fr"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "all translation providers failed")
	assert.Contains(t, w.Body.String(), "500")
	assert.Contains(t, w.Body.String(), "502")

	w = do(s, http.MethodPost, "/translate/sync", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/translate/sync", `{"text":"Hello","target_language":"auto"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/translate/sync", `{"text":"Hello","provider":"deepl"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/translate/sync", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranslateAndStream(t *testing.T) {
	s := newTestServer(t, failingStub(t, http.StatusServiceUnavailable).URL, "http://127.0.0.1:1")
	difyStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, p := range []string{"Bon", "jour"} {
			fmt.Fprintf(w, "data: {\"event\":\"message\",\"answer\":%q}\n\n", p)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"event\":\"message_end\"}\n\n")
	}))
	defer difyStub.Close()
	s.services.Config.Dify.BaseURL = difyStub.URL

	w := do(s, http.MethodPost, "/translate", `{"text":"Hello","target_language":"fr","request_id":"job-1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"id":"job-1"}`, w.Body.String())

	w = do(s, http.MethodGet, "/translate/stream/job-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var events []sse.Event
	var last string
	for _, line := range strings.Split(w.Body.String(), "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		last = payload
		if payload == sse.DoneSignal {
			continue
		}
		var ev sse.Event
		require.NoError(t, json.Unmarshal([]byte(payload), &ev))
		events = append(events, ev)
	}

	assert.Equal(t, sse.DoneSignal, last)
	require.Len(t, events, 3)
	assert.Equal(t, sse.Event{Type: sse.EventProgress, Text: "Bon"}, events[0])
	assert.Equal(t, sse.Event{Type: sse.EventProgress, Text: "Bonjour"}, events[1])
	assert.Equal(t, sse.EventComplete, events[2].Type)
	require.NotNil(t, events[2].Result)
	assert.Equal(t, types.RoleFallback, events[2].Result.ProviderUsed)
}

func TestTranslate_DuplicateRequestID(t *testing.T) {
	s := newTestServer(t, siliconflowStub(t, "A").URL, "http://127.0.0.1:1")

	w := do(s, http.MethodPost, "/translate", `{"text":"first","target_language":"fr","request_id":"dup"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	w = do(s, http.MethodGet, "/translate/stream/dup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"original_text":"first"`)

	w = do(s, http.MethodPost, "/translate", `{"text":"second","target_language":"fr","request_id":"dup"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = do(s, http.MethodGet, "/translate/stream/dup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "second")

	// the rejected job must not hold a concurrency slot
	slots := int64(s.services.Config.Translation.MaxConcurrentJobs)
	require.Eventually(t, func() bool { return s.jobs.TryAcquire(slots) }, time.Second, 10*time.Millisecond)
}

func TestStream_UnknownJob(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	w := do(s, http.MethodGet, "/translate/stream/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTestProvider(t *testing.T) {
	s := newTestServer(t, failingStub(t, http.StatusUnauthorized).URL, "http://127.0.0.1:1")

	w := do(s, http.MethodPost, "/providers/test", `{"provider":"siliconflow"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res types.ProbeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid API key", res.Message)

	w = do(s, http.MethodPost, "/providers/test", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLimits(t *testing.T) {
	s := newTestServer(t, siliconflowStub(t, "x").URL, "http://127.0.0.1:1")

	w := do(s, http.MethodPost, "/translate/sync", `{"text":"Hello","target_language":"de"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodGet, "/limits", "")
	require.Equal(t, http.StatusOK, w.Code)

	var limits map[string]struct {
		Used     int   `json:"used"`
		Max      int   `json:"max"`
		WindowMs int64 `json:"window_ms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &limits))
	assert.Equal(t, 1, limits["siliconflow"].Used)
	assert.Equal(t, 100, limits["siliconflow"].Max)
	assert.Equal(t, int64(60000), limits["siliconflow"].WindowMs)
	assert.Equal(t, 0, limits["dify"].Used)
}

func TestStatusFor(t *testing.T) {
	rl := func(id types.ProviderID) error { return &types.RateLimitError{Provider: id} }
	to := func(id types.ProviderID) error { return &types.TimeoutError{Provider: id} }

	assert.Equal(t, http.StatusTooManyRequests, statusFor(&types.AllProvidersFailedError{
		Primary:  types.AttemptFailure{Err: rl("siliconflow")},
		Fallback: types.AttemptFailure{Err: rl("dify")},
	}))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(&types.AllProvidersFailedError{
		Primary:  types.AttemptFailure{Err: to("siliconflow")},
		Fallback: types.AttemptFailure{Err: to("dify")},
	}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&types.AllProvidersFailedError{
		Primary:  types.AttemptFailure{Err: rl("siliconflow")},
		Fallback: types.AttemptFailure{Err: to("dify")},
	}))
	assert.Equal(t, http.StatusPreconditionFailed, statusFor(fmt.Errorf("x: %w", types.ErrMissingCredential)))
	assert.Equal(t, http.StatusBadRequest, statusFor(types.ErrEmptyText))
}
