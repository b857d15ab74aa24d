package store

import (
	"context"
	"errors"
	"time"

	"github.com/nulzo/generation-router/internal/store/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Repository is the main contract for the data layer.
type Repository interface {
	Attempts() AttemptRepository

	// WithTx runs fn against a repository bound to a single transaction.
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

type AttemptRepository interface {
	Log(ctx context.Context, log *model.AttemptLog) error
	// LogBatch inserts all logs in one statement.
	LogBatch(ctx context.Context, logs []model.AttemptLog) error
	// ListByRequest returns the attempts of one request in the order they ran.
	ListByRequest(ctx context.Context, requestID string) ([]model.AttemptLog, error)
	// Summaries aggregates attempts created at or after since, per backend.
	Summaries(ctx context.Context, since time.Time) ([]model.BackendSummary, error)
	// DeleteBefore removes attempts older than cutoff and reports how many went.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
