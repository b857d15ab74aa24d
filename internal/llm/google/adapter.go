package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/httpclient"
	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/llm/processing"
)

const pn string = "google"

func init() {
	llm.Register(pn, NewAdapter)
}

var prices = llm.Pricing{
	"gemini-2.0-flash":      0.00025,
	"gemini-2.5-flash":      0.0014,
	"gemini-2.5-pro":        0.0056,
	"gemini-1.5-flash":      0.0002,
	"gemini-2.0-flash-lite": 0.0002,
}

type Adapter struct {
	*llm.Base
	config config.BackendConfig
	client httpclient.HTTPClient
}

func NewAdapter(cfg config.BackendConfig) (llm.Backend, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{
		Base:   llm.NewBase(cfg, pn, prices),
		config: cfg,
		client: httpclient.New(cfg.Timeout),
	}, nil
}

type Part struct {
	Text string `json:"text,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type Request struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type Response struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// Shape converts a generation request into Gemini's content layout.
// Assistant turns become "model" turns and system messages move to systemInstruction.
func Shape(req *llm.Request) Request {
	var out Request
	var system []Part

	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, Part{Text: m.Content})
		case llm.RoleAssistant:
			out.Contents = append(out.Contents, Content{Role: "model", Parts: []Part{{Text: m.Content}}})
		default:
			out.Contents = append(out.Contents, Content{Role: "user", Parts: []Part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		out.SystemInstruction = &Content{Parts: system}
	}

	if req.Temperature != nil || req.MaxTokens > 0 || req.JSONMode {
		gc := &GenerationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
		if req.JSONMode {
			gc.ResponseMimeType = "application/json"
		}
		out.GenerationConfig = gc
	}
	return out
}

func errorDetail(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error.Message
}

func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	model := llm.ModelFor(a, req)
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", a.config.BaseURL, url.PathEscape(model))

	var resp Response
	if err := httpclient.SendJSON(ctx, a.client, http.MethodPost, endpoint, a.headers(), Shape(req), &resp); err != nil {
		return nil, llm.WrapUpstream(a.ID(), err, errorDetail)
	}

	if len(resp.Candidates) == 0 {
		return nil, llm.Empty(a.ID())
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	content, reasoning := processing.SplitOutput(text.String())
	if content == "" {
		return nil, llm.Empty(a.ID())
	}

	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}

	return &llm.Result{
		Content:   content,
		Reasoning: reasoning,
		Backend:   a.ID(),
		Model:     model,
		Usage: llm.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		},
		FinishReason: strings.ToLower(resp.Candidates[0].FinishReason),
	}, nil
}

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return httpclient.Probe(ctx, a.client, a.config.BaseURL+"/models?pageSize=1", a.headers()) == nil
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{"x-goog-api-key": a.config.APIKey}
}
