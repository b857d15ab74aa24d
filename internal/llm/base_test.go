package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/httpclient"
	"github.com/nulzo/generation-router/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_CostLookup(t *testing.T) {
	b := NewBase(config.BackendConfig{
		ID:           "primary",
		DefaultModel: "modelX",
		Pricing:      map[string]float64{"modelY": 0.01},
	}, "test", Pricing{"modelX": 0.001, "modelY": 0.5})

	assert.InDelta(t, 0.001, b.CostPerThousandTokens("modelX"), 1e-12)
	// configured prices win over built-in ones
	assert.InDelta(t, 0.01, b.CostPerThousandTokens("modelY"), 1e-12)
	// unknown models use the default model's price
	assert.InDelta(t, 0.001, b.CostPerThousandTokens("modelZ"), 1e-12)
}

func TestBase_CostWithoutAnyPrice(t *testing.T) {
	b := NewBase(config.BackendConfig{ID: "local", DefaultModel: "llama"}, "test", nil)
	assert.Zero(t, b.CostPerThousandTokens("anything"))
}

func TestBase_RecordFillsBackend(t *testing.T) {
	b := NewBase(config.BackendConfig{ID: "primary", WindowSize: 4}, "test", nil)
	assert.Equal(t, tracker.UnknownLatency, b.AverageLatency())

	b.Record(tracker.Outcome{Latency: 40 * time.Millisecond, Success: true})

	snap := b.Window().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "primary", snap[0].Backend)
	assert.Equal(t, 40*time.Millisecond, b.AverageLatency())
	assert.Equal(t, 4, b.Stats().Capacity)
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.0021, EstimateCost(Usage{TotalTokens: 2100}, 0.001), 1e-12)
	assert.InDelta(t, 0.003, EstimateCost(Usage{InputTokens: 1000, OutputTokens: 500}, 0.002), 1e-12)
}

func TestClassify(t *testing.T) {
	upstream := func(code int) error {
		return WrapUpstream("b", &httpclient.UpstreamError{StatusCode: code}, nil)
	}

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"rate limit", upstream(http.StatusTooManyRequests), KindRateLimit},
		{"auth", upstream(http.StatusUnauthorized), KindAuth},
		{"server", upstream(http.StatusBadGateway), KindServer},
		{"client", upstream(http.StatusBadRequest), KindClient},
		{"empty", Empty("b"), KindEmpty},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrapUpstream_UsesDetail(t *testing.T) {
	err := WrapUpstream("primary", &httpclient.UpstreamError{StatusCode: 500, Body: []byte("x")}, func([]byte) string {
		return "model overloaded"
	})
	assert.EqualError(t, err, "status 500: model overloaded")
}
