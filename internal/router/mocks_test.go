package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/tracker"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements llm.Backend with mocked remote calls and a real window.
type MockBackend struct {
	*llm.Base
	mock.Mock
}

func newMockBackend(id, model string, prices llm.Pricing) *MockBackend {
	return &MockBackend{
		Base: llm.NewBase(config.BackendConfig{ID: id, DefaultModel: model, WindowSize: 10}, "mock", prices),
	}
}

func (m *MockBackend) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// copy so retried calls never share a result
	res := *args.Get(0).(*llm.Result)
	return &res, args.Error(1)
}

func (m *MockBackend) IsAvailable(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

// seed fills the window so AverageLatency reports avg.
func (m *MockBackend) seed(avg time.Duration) {
	m.Record(tracker.Outcome{Latency: avg, Success: true, Timestamp: time.Now()})
}

// MockObserver records router events.
type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) AttemptFinished(ctx context.Context, a Attempt) {
	m.Called(ctx, a)
}

func (m *MockObserver) GenerationFinished(ctx context.Context, g Generation) {
	m.Called(ctx, g)
}

// sleepRecorder captures backoff delays instead of sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestRouter(t *testing.T, cfg Config, backends ...llm.Backend) (*Router, *sleepRecorder) {
	t.Helper()
	registry, err := NewRegistry(backends...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	rec := &sleepRecorder{}
	return New(cfg, registry, WithSleep(rec.sleep)), rec
}

func ok(content string) *llm.Result {
	return &llm.Result{
		Content: content,
		Usage:   llm.Usage{InputTokens: 600, OutputTokens: 400, TotalTokens: 1000},
	}
}

func userRequest() *Request {
	return &Request{
		RequestID: "req-1",
		Request: llm.Request{
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
		},
	}
}

func boolPtr(v bool) *bool { return &v }
