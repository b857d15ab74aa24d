package analytics

import (
	"context"
	"time"

	"github.com/nulzo/generation-router/internal/store"
	"github.com/nulzo/generation-router/internal/store/model"
)

const defaultDays = 7

// Service answers read queries over persisted attempts.
type Service interface {
	// BackendSummaries aggregates the last days of attempts per backend.
	// Non-positive days default to a week.
	BackendSummaries(ctx context.Context, days int) ([]model.BackendSummary, error)
	// RequestAttempts returns every attempt made for one request.
	RequestAttempts(ctx context.Context, requestID string) ([]model.AttemptLog, error)
}

type service struct {
	repo store.Repository
	now  func() time.Time
}

func NewService(repo store.Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) BackendSummaries(ctx context.Context, days int) ([]model.BackendSummary, error) {
	if days <= 0 {
		days = defaultDays
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	return s.repo.Attempts().Summaries(ctx, since)
}

func (s *service) RequestAttempts(ctx context.Context, requestID string) ([]model.AttemptLog, error) {
	return s.repo.Attempts().ListByRequest(ctx, requestID)
}
