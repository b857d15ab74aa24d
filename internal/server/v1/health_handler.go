package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/pkg/api"
)

// Pinger is satisfied by store.Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	backends BackendLister
	db       Pinger
}

func NewHealthHandler(backends BackendLister, db Pinger) *HealthHandler {
	return &HealthHandler{backends: backends, db: db}
}

// Health reports degraded when the database is unreachable or no backend is
// registered. Backends are not probed here.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := api.HealthResponse{
		Status:   "ok",
		Backends: len(h.backends.All()),
		Checks:   map[string]string{},
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks["database"] = err.Error()
		} else {
			resp.Checks["database"] = "ok"
		}
	}
	if resp.Backends == 0 {
		resp.Status = "degraded"
		resp.Checks["backends"] = "none registered"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
