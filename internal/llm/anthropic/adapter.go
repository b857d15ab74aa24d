package anthropic

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

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	defaultVersion   = "2023-06-01"
	defaultMaxTokens = 4096
)

func init() {
	llm.Register("anthropic", NewAdapter)
}

var prices = llm.Pricing{
	"claude-3-5-haiku-latest":  0.0024,
	"claude-3-5-sonnet-latest": 0.009,
	"claude-sonnet-4-0":        0.009,
	"claude-3-haiku-20240307":  0.0007,
}

type Adapter struct {
	*llm.Base
	config config.BackendConfig
	client httpclient.HTTPClient
}

func NewAdapter(cfg config.BackendConfig) (llm.Backend, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{
		Base:   llm.NewBase(cfg, "anthropic", prices),
		config: cfg,
		client: httpclient.New(cfg.Timeout),
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type response struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorDetail(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error.Message
}

// jsonInstruction is appended to the system prompt since the messages API has no JSON mode.
const jsonInstruction = "Respond only with a single valid JSON document and no surrounding prose."

func toRequest(model string, req *llm.Request) request {
	out := request{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		out.Messages = append(out.Messages, message{Role: string(m.Role), Content: m.Content})
	}
	if req.JSONMode {
		system = append(system, jsonInstruction)
	}
	out.System = strings.Join(system, "\n")
	return out
}

func (a *Adapter) headers() map[string]string {
	version := defaultVersion
	if v, ok := a.config.Options["version"]; ok {
		version = v
	}
	return map[string]string{
		"x-api-key":         a.config.APIKey,
		"anthropic-version": version,
	}
}

func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	body := toRequest(llm.ModelFor(a, req), req)

	var resp response
	url := fmt.Sprintf("%s/messages", a.config.BaseURL)
	if err := httpclient.SendJSON(ctx, a.client, http.MethodPost, url, a.headers(), body, &resp); err != nil {
		return nil, llm.WrapUpstream(a.ID(), err, errorDetail)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	content, reasoning := processing.SplitOutput(text.String())
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
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: resp.StopReason,
	}, nil
}

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/models?limit=1", a.config.BaseURL)
	return httpclient.Probe(ctx, a.client, url, a.headers()) == nil
}
