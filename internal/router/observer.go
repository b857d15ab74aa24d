package router

import (
	"context"
	"time"

	"github.com/nulzo/generation-router/internal/llm"
)

// Generation summarises one call to Router.Generate.
type Generation struct {
	RequestID  string
	Strategy   Strategy
	Forced     bool
	Candidates []llm.BackendID
	// Tried lists the backends actually attempted, in order.
	Tried    []llm.BackendID
	Duration time.Duration
	Result   *llm.Result
	Err      error
}

// Fallbacks is the number of times the router moved on to another backend.
func (g Generation) Fallbacks() int {
	if len(g.Tried) == 0 {
		return 0
	}
	return len(g.Tried) - 1
}

// Observer is notified about attempts and finished generations. Implementations
// must be cheap and non-blocking since they run on the request path.
type Observer interface {
	AttemptFinished(ctx context.Context, a Attempt)
	GenerationFinished(ctx context.Context, g Generation)
}
