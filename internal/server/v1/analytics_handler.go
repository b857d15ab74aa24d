package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/internal/analytics"
	"github.com/nulzo/generation-router/pkg/api"
)

type AnalyticsHandler struct {
	service analytics.Service
}

func NewAnalyticsHandler(service analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

func (h *AnalyticsHandler) BackendSummaries(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 365 {
		_ = c.Error(api.BadRequestError("'days' must be an integer between 1 and 365"))
		return
	}

	summaries, err := h.service.BackendSummaries(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to fetch analytics", err))
		return
	}

	data := make([]api.BackendSummary, len(summaries))
	for i, s := range summaries {
		data[i] = api.BackendSummary{
			Backend:      s.BackendID,
			Attempts:     s.Attempts,
			Successes:    s.Successes,
			SuccessRate:  s.SuccessRate,
			AvgLatencyMS: s.AvgLatencyMS,
			TotalCost:    s.TotalCost,
		}
	}
	c.JSON(http.StatusOK, api.ListResponse[api.BackendSummary]{Object: "list", Data: data})
}
