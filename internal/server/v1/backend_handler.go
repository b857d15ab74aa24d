package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/pkg/api"
)

// BackendLister returns the live backends. *router.Registry satisfies it.
type BackendLister interface {
	All() []llm.Backend
}

type BackendHandler struct {
	backends BackendLister
}

func NewBackendHandler(backends BackendLister) *BackendHandler {
	return &BackendHandler{backends: backends}
}

func (h *BackendHandler) ListBackends(c *gin.Context) {
	all := h.backends.All()
	data := make([]api.BackendInfo, 0, len(all))

	for _, b := range all {
		stats := b.Stats()
		info := api.BackendInfo{
			ID:           string(b.ID()),
			Type:         b.Type(),
			DefaultModel: b.DefaultModel(),
			CostPer1K:    b.CostPerThousandTokens(b.DefaultModel()),
			Window: api.WindowStats{
				Capacity:  stats.Capacity,
				Size:      stats.Size,
				Successes: stats.Successes,
				Failures:  stats.Failures,
			},
		}
		if stats.Known() {
			ms := float64(stats.Average.Microseconds()) / 1000
			info.AverageLatencyMS = &ms
		}
		data = append(data, info)
	}

	c.JSON(http.StatusOK, api.ListResponse[api.BackendInfo]{Object: "list", Data: data})
}
