package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error pushed with c.Error as an RFC 9457
// problem document. Unknown errors become a generic 500.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var problem *api.Problem
		if !errors.As(err, &problem) {
			logger.Error("Unhandled error",
				zap.String("request_id", GetRequestID(c)),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			problem = api.NewError(http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred.")
		} else if problem.Log != nil {
			logger.Warn("Request failed",
				zap.String("request_id", GetRequestID(c)),
				zap.Int("status", problem.Status),
				zap.Error(problem.Log),
			)
		}

		if problem.Instance == "" {
			problem.Instance = c.Request.URL.Path
		}
		c.Header("Content-Type", "application/problem+json")
		c.AbortWithStatusJSON(problem.Status, problem)
	}
}
