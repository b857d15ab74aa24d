package api

import "time"

type WindowStats struct {
	Capacity  int `json:"capacity"`
	Size      int `json:"size"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// BackendInfo describes a registered backend and its recent performance.
type BackendInfo struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	DefaultModel string `json:"default_model"`
	// AverageLatencyMS is null until the backend has a successful attempt.
	AverageLatencyMS *float64    `json:"average_latency_ms"`
	CostPer1K        float64     `json:"cost_per_1k"`
	Window           WindowStats `json:"window"`
}

type ListResponse[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

type AttemptRecord struct {
	ID           string    `json:"id"`
	Backend      string    `json:"backend"`
	Model        string    `json:"model"`
	Attempt      int       `json:"attempt"`
	Success      bool      `json:"success"`
	LatencyMS    int64     `json:"latency_ms"`
	Error        string    `json:"error,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// GenerationHistory is the body of GET /v1/generations/:id.
type GenerationHistory struct {
	ID       string          `json:"id"`
	Attempts []AttemptRecord `json:"attempts"`
}

type BackendSummary struct {
	Backend      string  `json:"backend"`
	Attempts     int64   `json:"attempts"`
	Successes    int64   `json:"successes"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	TotalCost    float64 `json:"total_cost"`
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Backends int               `json:"backends"`
	Checks   map[string]string `json:"checks,omitempty"`
}
