package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/platform/metrics"
	"github.com/nulzo/generation-router/internal/router"
	"github.com/nulzo/generation-router/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// echoBackend answers every request with the last user message.
type echoBackend struct {
	*llm.Base
}

func (echoBackend) IsAvailable(context.Context) bool { return true }

func (e echoBackend) Generate(_ context.Context, req *llm.Request) (*llm.Result, error) {
	last := req.Messages[len(req.Messages)-1].Content
	return &llm.Result{
		Content: "echo: " + last,
		Model:   llm.ModelFor(e, req),
		Usage:   llm.Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Env: "test", AuthEnabled: true, APIKeys: []string{"sk-test"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b := echoBackend{llm.NewBase(config.BackendConfig{ID: "echo", DefaultModel: "echo-1", WindowSize: 10}, "echo", nil)}
	registry, err := router.NewRegistry(b)
	require.NoError(t, err)

	collector := metrics.NewCollector(registry.All)
	r := router.New(router.DefaultConfig(), registry, router.WithObserver(collector))

	return New(testConfig(), zap.NewNop(), Deps{Router: r, Metrics: collector})
}

func generate(s *Server, key string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(api.GenerateRequest{Messages: []api.Message{{Role: "user", Content: "ping"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_GenerateEndToEnd(t *testing.T) {
	s := newTestServer(t)

	w := generate(s, "sk-test")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "echo: ping", resp.Content)
	assert.Equal(t, "echo", resp.Backend)
	assert.Equal(t, "echo-1", resp.Model)
	assert.NotEmpty(t, resp.ID)
}

func TestServer_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := generate(s, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusUnauthorized, generate(s, "sk-wrong").Code)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, generate(s, "sk-test").Code)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `generation_router_attempts_total{backend="echo",outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), `generation_router_backend_average_latency_seconds{backend="echo"}`)
}

func TestServer_BackendsListed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/backends", nil)
	req.Header.Set("Authorization", "Bearer sk-test")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"echo"`)
}
