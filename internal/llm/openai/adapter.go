package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/httpclient"
	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/llm/processing"
)

const defaultBaseURL = "https://api.openai.com/v1"

func init() {
	llm.Register("openai", NewAdapter)
}

// prices are USD per thousand tokens, blended input/output.
var prices = llm.Pricing{
	"gpt-4o":        0.005,
	"gpt-4o-mini":   0.0003,
	"gpt-4.1":       0.004,
	"gpt-4.1-mini":  0.0008,
	"gpt-3.5-turbo": 0.001,
	"deepseek-chat": 0.0007,
}

type Adapter struct {
	*llm.Base
	config config.BackendConfig
	client httpclient.HTTPClient
}

// NewAdapter serves OpenAI and any OpenAI-compatible endpoint configured through base_url.
func NewAdapter(cfg config.BackendConfig) (llm.Backend, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{
		Base:   llm.NewBase(cfg, "openai", prices),
		config: cfg,
		client: httpclient.New(cfg.Timeout),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// upstreamErrorResponse mirrors the standard OpenAI error shape
type upstreamErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorDetail(body []byte) string {
	var apiErr upstreamErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return ""
	}
	return apiErr.Error.Message
}

func (a *Adapter) headers() map[string]string {
	headers := map[string]string{}
	if a.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + a.config.APIKey
	}
	if org, ok := a.config.Options["organization"]; ok {
		headers["OpenAI-Organization"] = org
	}
	return headers
}

func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	body := chatRequest{
		Model:       llm.ModelFor(a, req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	url := fmt.Sprintf("%s/chat/completions", a.config.BaseURL)
	if err := httpclient.SendJSON(ctx, a.client, http.MethodPost, url, a.headers(), body, &resp); err != nil {
		return nil, llm.WrapUpstream(a.ID(), err, errorDetail)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.Empty(a.ID())
	}
	content, reasoning := processing.SplitOutput(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, llm.Empty(a.ID())
	}

	model := resp.Model
	if model == "" {
		model = body.Model
	}

	return &llm.Result{
		Content:   content,
		Reasoning: reasoning,
		Backend:   a.ID(),
		Model:     model,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/models", a.config.BaseURL)
	return httpclient.Probe(ctx, a.client, url, a.headers()) == nil
}
