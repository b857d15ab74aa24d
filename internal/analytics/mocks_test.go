package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/nulzo/generation-router/internal/store"
	"github.com/nulzo/generation-router/internal/store/model"
	"github.com/stretchr/testify/mock"
)

// MockAttempts is a testify mock of store.AttemptRepository.
type MockAttempts struct {
	mock.Mock

	mu      sync.Mutex
	batches [][]model.AttemptLog
}

func (m *MockAttempts) Log(ctx context.Context, log *model.AttemptLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *MockAttempts) LogBatch(ctx context.Context, logs []model.AttemptLog) error {
	m.mu.Lock()
	m.batches = append(m.batches, append([]model.AttemptLog(nil), logs...))
	m.mu.Unlock()
	return m.Called(ctx, logs).Error(0)
}

func (m *MockAttempts) ListByRequest(ctx context.Context, requestID string) ([]model.AttemptLog, error) {
	args := m.Called(ctx, requestID)
	logs, _ := args.Get(0).([]model.AttemptLog)
	return logs, args.Error(1)
}

func (m *MockAttempts) Summaries(ctx context.Context, since time.Time) ([]model.BackendSummary, error) {
	args := m.Called(ctx, since)
	out, _ := args.Get(0).([]model.BackendSummary)
	return out, args.Error(1)
}

func (m *MockAttempts) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttempts) logged() []model.AttemptLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttemptLog
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func (m *MockAttempts) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// fakeRepo hands out the same MockAttempts for every call.
type fakeRepo struct {
	attempts *MockAttempts
}

func (f *fakeRepo) Attempts() store.AttemptRepository { return f.attempts }

func (f *fakeRepo) WithTx(_ context.Context, fn func(store.Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }
