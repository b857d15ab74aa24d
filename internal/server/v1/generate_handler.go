package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/router"
	"github.com/nulzo/generation-router/internal/server/middleware"
	"github.com/nulzo/generation-router/internal/server/validator"
	"github.com/nulzo/generation-router/pkg/api"
)

// Generator is the part of the router the handler needs.
type Generator interface {
	Generate(ctx context.Context, req *router.Request) (*llm.Result, error)
}

type GenerateHandler struct {
	router Generator
}

func NewGenerateHandler(r Generator) *GenerateHandler {
	return &GenerateHandler{router: r}
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	var body api.GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	req := toRouterRequest(middleware.GetRequestID(c), &body)

	res, err := h.router.Generate(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(routingProblem(err))
		return
	}

	c.JSON(http.StatusOK, api.GenerateResponse{
		ID:        req.RequestID,
		Content:   res.Content,
		Reasoning: res.Reasoning,
		Backend:   string(res.Backend),
		Model:     res.Model,
		Usage: api.Usage{
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
			TotalTokens:  res.Usage.TotalTokens,
		},
		LatencyMS:    res.Latency.Milliseconds(),
		Cost:         res.Cost,
		FinishReason: res.FinishReason,
	})
}

func toRouterRequest(id string, body *api.GenerateRequest) *router.Request {
	msgs := make([]llm.Message, len(body.Messages))
	for i, m := range body.Messages {
		msgs[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}

	req := &router.Request{
		Request: llm.Request{
			Messages:    msgs,
			Model:       body.Model,
			Temperature: body.Temperature,
			MaxTokens:   body.MaxTokens,
			JSONMode:    body.JSONMode,
		},
		RequestID: id,
		Strategy:  router.Strategy(body.Strategy),
		Backend:   llm.BackendID(body.Backend),
		Timeout:   time.Duration(body.TimeoutMS) * time.Millisecond,
	}
	if body.Retry != nil {
		req.EnableRetry = body.Retry.Enabled
		req.MaxRetries = body.Retry.MaxAttempts
	}
	return req
}
