package model

import "time"

// AttemptLog is one persisted backend attempt.
type AttemptLog struct {
	ID        string `db:"id" json:"id"`
	RequestID string `db:"request_id" json:"request_id"`
	BackendID string `db:"backend_id" json:"backend_id"`
	Model     string `db:"model" json:"model"`
	// Attempt is 1-based within the backend's retry sequence.
	Attempt      int       `db:"attempt" json:"attempt"`
	Success      bool      `db:"success" json:"success"`
	LatencyMS    int64     `db:"latency_ms" json:"latency_ms"`
	Error        string    `db:"error" json:"error,omitempty"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	Cost         float64   `db:"cost" json:"cost"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// BackendSummary aggregates attempt logs for one backend.
type BackendSummary struct {
	BackendID    string  `db:"backend_id" json:"backend_id"`
	Attempts     int64   `db:"attempts" json:"attempts"`
	Successes    int64   `db:"successes" json:"successes"`
	SuccessRate  float64 `db:"-" json:"success_rate"`
	AvgLatencyMS float64 `db:"avg_latency_ms" json:"avg_latency_ms"`
	TotalCost    float64 `db:"total_cost" json:"total_cost"`
}
