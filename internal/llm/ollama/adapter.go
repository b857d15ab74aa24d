package ollama

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

func init() {
	llm.Register("ollama", NewAdapter)
}

// Adapter talks to Ollama's native chat API. Local models are free unless
// the configuration prices them.
type Adapter struct {
	*llm.Base
	config config.BackendConfig
	client httpclient.HTTPClient
}

func NewAdapter(cfg config.BackendConfig) (llm.Backend, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	// accept the OpenAI-compatible base as well as the root
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")

	return &Adapter{
		Base:   llm.NewBase(cfg, "ollama", nil),
		config: cfg,
		client: httpclient.New(cfg.Timeout),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *options      `json:"options,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	// DoneReason is only reported by newer servers.
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func errorDetail(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error
}

func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	body := chatRequest{Model: llm.ModelFor(a, req)}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.JSONMode {
		body.Format = "json"
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = &options{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	var resp chatResponse
	url := fmt.Sprintf("%s/api/chat", a.config.BaseURL)
	if err := httpclient.SendJSON(ctx, a.client, http.MethodPost, url, nil, body, &resp); err != nil {
		return nil, llm.WrapUpstream(a.ID(), err, errorDetail)
	}

	content, reasoning := processing.SplitOutput(resp.Message.Content)
	if content == "" {
		return nil, llm.Empty(a.ID())
	}

	model := resp.Model
	if model == "" {
		model = body.Model
	}
	finish := resp.DoneReason
	if finish == "" && resp.Done {
		finish = "stop"
	}

	return &llm.Result{
		Content:   content,
		Reasoning: reasoning,
		Backend:   a.ID(),
		Model:     model,
		Usage: llm.Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
			TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
		},
		FinishReason: finish,
	}, nil
}

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return httpclient.Probe(ctx, a.client, fmt.Sprintf("%s/api/tags", a.config.BaseURL), nil) == nil
}
