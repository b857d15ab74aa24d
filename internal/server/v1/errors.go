package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nulzo/generation-router/internal/router"
	"github.com/nulzo/generation-router/pkg/api"
)

// statusClientClosedRequest follows the nginx convention for a caller that
// went away before the response was ready.
const statusClientClosedRequest = 499

// routingProblem maps router errors onto problem documents.
func routingProblem(err error) *api.Problem {
	var (
		notFound  *router.BackendNotFoundError
		allFailed *router.AllBackendsFailedError
		attempt   *router.AttemptError
	)

	switch {
	case errors.Is(err, router.ErrInvalidStrategy):
		return api.BadRequestError(err.Error())

	case errors.As(err, &notFound):
		ids := make([]string, len(notFound.Available))
		for i, id := range notFound.Available {
			ids[i] = string(id)
		}
		return api.NotFoundError(fmt.Sprintf("backend %q is not configured", notFound.Backend),
			api.WithExtension("available", ids),
		)

	case errors.Is(err, router.ErrNoCandidates):
		return api.UnavailableError("No backend is available to serve the request", err)

	case errors.As(err, &allFailed):
		failures := make([]api.BackendFailure, len(allFailed.Failures))
		for i, f := range allFailed.Failures {
			failures[i] = api.BackendFailure{Backend: string(f.Backend), Error: f.Err.Error()}
		}
		return api.UpstreamError("All backends failed", err, api.WithExtension("failures", failures))

	case errors.Is(err, context.DeadlineExceeded):
		return api.TimeoutError("The backend did not answer in time", err)

	case errors.Is(err, context.Canceled):
		return api.NewError(statusClientClosedRequest, "Client Closed Request", "The request was cancelled", api.WithLog(err))

	case errors.As(err, &attempt):
		return api.UpstreamError(fmt.Sprintf("Backend %s failed: %v", attempt.Backend, attempt.Err), err,
			api.WithExtension("backend", string(attempt.Backend)),
			api.WithExtension("attempts", attempt.Attempts),
		)

	default:
		return api.NewError(http.StatusInternalServerError, "Internal Server Error", "Generation failed", api.WithLog(err))
	}
}
