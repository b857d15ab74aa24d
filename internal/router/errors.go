package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nulzo/generation-router/internal/llm"
)

// Error kinds callers branch on with errors.Is.
var (
	// ErrBackendUnavailable is returned when a forced backend is not in the registry.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrNoCandidates is returned when selection produced nothing to try.
	ErrNoCandidates = errors.New("no backends available")

	// ErrAllBackendsFailed is returned when every candidate in the fallback chain failed.
	ErrAllBackendsFailed = errors.New("all backends failed")

	// ErrInvalidStrategy is returned for an unknown strategy name.
	ErrInvalidStrategy = errors.New("invalid routing strategy")
)

// BackendNotFoundError names the missing backend and what was available instead.
type BackendNotFoundError struct {
	Backend   llm.BackendID
	Available []llm.BackendID
}

func (e *BackendNotFoundError) Error() string {
	names := make([]string, len(e.Available))
	for i, id := range e.Available {
		names[i] = string(id)
	}
	return fmt.Sprintf("backend %q unavailable (configured: %s)", e.Backend, strings.Join(names, ", "))
}

func (e *BackendNotFoundError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// AttemptError is the final failure of one backend after its retries ran out.
// Err is the last attempt's error; History holds every attempt's error in order.
type AttemptError struct {
	Backend  llm.BackendID
	Attempts int
	Err      error
	History  []error
}

func (e *AttemptError) Error() string {
	return e.Err.Error()
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// BackendFailure pairs a backend with its final failure.
type BackendFailure struct {
	Backend llm.BackendID
	Err     error
}

// AllBackendsFailedError aggregates the final failure of every candidate tried.
type AllBackendsFailedError struct {
	Failures []BackendFailure
}

func (e *AllBackendsFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Backend, f.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAllBackendsFailed, strings.Join(parts, "; "))
}

func (e *AllBackendsFailedError) Is(target error) bool {
	return target == ErrAllBackendsFailed
}

func (e *AllBackendsFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
