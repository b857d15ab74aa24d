package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/internal/analytics"
	"github.com/nulzo/generation-router/internal/store"
	"github.com/nulzo/generation-router/pkg/api"
)

type GenerationHandler struct {
	analytics analytics.Service
}

func NewGenerationHandler(svc analytics.Service) *GenerationHandler {
	return &GenerationHandler{analytics: svc}
}

// GetGeneration returns every persisted attempt for one request ID. Attempts
// are written asynchronously, so a very recent request may not be visible yet.
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	id := c.Param("id")

	logs, err := h.analytics.RequestAttempts(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		_ = c.Error(api.NotFoundError("No attempts recorded for generation " + id))
		return
	}
	if err != nil {
		_ = c.Error(api.InternalError("Failed to load generation", err))
		return
	}

	out := api.GenerationHistory{ID: id, Attempts: make([]api.AttemptRecord, len(logs))}
	for i, l := range logs {
		out.Attempts[i] = api.AttemptRecord{
			ID:           l.ID,
			Backend:      l.BackendID,
			Model:        l.Model,
			Attempt:      l.Attempt,
			Success:      l.Success,
			LatencyMS:    l.LatencyMS,
			Error:        l.Error,
			InputTokens:  l.InputTokens,
			OutputTokens: l.OutputTokens,
			Cost:         l.Cost,
			CreatedAt:    l.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, out)
}
