package api

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content" binding:"required"`
}

// RetryOptions overrides the router's retry defaults for one request.
type RetryOptions struct {
	Enabled     *bool `json:"enabled,omitempty"`
	MaxAttempts int   `json:"max_attempts,omitempty" binding:"omitempty,min=1,max=10"`
}

// GenerateRequest is the body of POST /v1/generate.
type GenerateRequest struct {
	Messages    []Message `json:"messages" binding:"required,min=1,dive"`
	Model       string    `json:"model,omitempty"`
	Temperature *float64  `json:"temperature,omitempty" binding:"omitempty,min=0,max=2"`
	MaxTokens   int       `json:"max_tokens,omitempty" binding:"omitempty,min=1"`
	JSONMode    bool      `json:"json_mode,omitempty"`

	// Strategy is ignored when Backend is set.
	Strategy string        `json:"strategy,omitempty" binding:"omitempty,strategy"`
	Backend  string        `json:"backend,omitempty"`
	Retry    *RetryOptions `json:"retry,omitempty"`
	// TimeoutMS bounds each attempt.
	TimeoutMS int `json:"timeout_ms,omitempty" binding:"omitempty,min=1"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// GenerateResponse is the body returned by POST /v1/generate.
type GenerateResponse struct {
	ID           string  `json:"id"`
	Content      string  `json:"content"`
	Reasoning    string  `json:"reasoning,omitempty"`
	Backend      string  `json:"backend"`
	Model        string  `json:"model"`
	Usage        Usage   `json:"usage"`
	LatencyMS    int64   `json:"latency_ms"`
	Cost         float64 `json:"cost"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// BackendFailure is one entry of the "failures" member when every backend failed.
type BackendFailure struct {
	Backend string `json:"backend"`
	Error   string `json:"error"`
}
