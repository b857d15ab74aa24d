package llm

import (
	"context"
	"time"

	"github.com/nulzo/generation-router/internal/tracker"
)

// BackendID identifies one configured backend. It is the registry key.
type BackendID string

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is what a backend needs to perform one generation call.
type Request struct {
	Messages    []Message
	Model       string
	Temperature *float64
	MaxTokens   int
	JSONMode    bool
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Result is a successful generation. Latency and Usage describe the winning attempt only.
type Result struct {
	Content      string
	Reasoning    string
	Backend      BackendID
	Model        string
	Usage        Usage
	FinishReason string
	Latency      time.Duration
	Cost         float64
}

// Backend is the capability contract every adapter satisfies.
type Backend interface {
	ID() BackendID
	Type() string
	DefaultModel() string

	// IsAvailable is a cheap liveness probe. It reports false on any failure.
	IsAvailable(ctx context.Context) bool

	// Generate performs one remote call. Empty content is an error.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// AverageLatency is the mean latency of recent successes, or tracker.UnknownLatency.
	AverageLatency() time.Duration

	// CostPerThousandTokens looks up a static price, falling back to the default model.
	CostPerThousandTokens(model string) float64

	Record(o tracker.Outcome)
	Stats() tracker.Stats
}

// ModelFor returns the model a request should run against on b.
func ModelFor(b Backend, req *Request) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return b.DefaultModel()
}

// EstimateCost prices a usage record at pricePer1k per thousand tokens.
func EstimateCost(u Usage, pricePer1k float64) float64 {
	total := u.TotalTokens
	if total == 0 {
		total = u.InputTokens + u.OutputTokens
	}
	return float64(total) / 1000 * pricePer1k
}
