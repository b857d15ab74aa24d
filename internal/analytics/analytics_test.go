package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/router"
	"github.com/nulzo/generation-router/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIngestor_FlushesOnStop(t *testing.T) {
	attempts := &MockAttempts{}
	attempts.On("LogBatch", mock.Anything, mock.Anything).Return(nil)

	ing := NewIngestor(zap.NewNop(), &fakeRepo{attempts: attempts}, WithFlushInterval(time.Hour))
	ing.Start(context.Background())

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ing.AttemptFinished(context.Background(), router.Attempt{
		RequestID: "req-1", Backend: "openai", Model: "gpt-4o", Number: 1,
		Started: started, Latency: 1500 * time.Millisecond, Err: errors.New("timeout"),
	})
	ing.AttemptFinished(context.Background(), router.Attempt{
		RequestID: "req-1", Backend: "anthropic", Model: "claude", Number: 1,
		Started: started, Latency: 200 * time.Millisecond,
		Result: &llm.Result{Usage: llm.Usage{InputTokens: 12, OutputTokens: 30}, Cost: 0.02},
	})
	ing.Stop()

	logs := attempts.logged()
	require.Len(t, logs, 2)

	assert.Equal(t, "openai", logs[0].BackendID)
	assert.False(t, logs[0].Success)
	assert.Equal(t, "timeout", logs[0].Error)
	assert.Equal(t, int64(1500), logs[0].LatencyMS)
	assert.Equal(t, started, logs[0].CreatedAt)
	assert.NotEmpty(t, logs[0].ID)

	assert.True(t, logs[1].Success)
	assert.Equal(t, 30, logs[1].OutputTokens)
	assert.Equal(t, 0.02, logs[1].Cost)
}

func TestIngestor_StoresUTC(t *testing.T) {
	attempts := &MockAttempts{}
	attempts.On("LogBatch", mock.Anything, mock.Anything).Return(nil)

	ing := NewIngestor(zap.NewNop(), &fakeRepo{attempts: attempts}, WithFlushInterval(time.Hour))
	ing.Start(context.Background())

	tokyo := time.FixedZone("JST", 9*60*60)
	started := time.Date(2025, 3, 1, 21, 0, 0, 0, tokyo)
	ing.AttemptFinished(context.Background(), router.Attempt{
		RequestID: "req-1", Backend: "openai", Number: 1, Started: started,
	})
	ing.Stop()

	logs := attempts.logged()
	require.Len(t, logs, 1)
	assert.Equal(t, time.UTC, logs[0].CreatedAt.Location())
	assert.True(t, started.Equal(logs[0].CreatedAt))
	assert.Equal(t, 12, logs[0].CreatedAt.Hour())
}

func TestIngestor_BatchesBySize(t *testing.T) {
	attempts := &MockAttempts{}
	attempts.On("LogBatch", mock.Anything, mock.Anything).Return(nil)

	ing := NewIngestor(zap.NewNop(), &fakeRepo{attempts: attempts},
		WithBatchSize(2),
		WithFlushInterval(time.Hour),
	)
	ing.Start(context.Background())

	for n := 1; n <= 4; n++ {
		ing.AttemptFinished(context.Background(), router.Attempt{RequestID: "r", Backend: "x", Number: n})
	}

	assert.Eventually(t, func() bool { return attempts.batchCount() == 2 }, time.Second, 5*time.Millisecond)
	ing.Stop()
	assert.Len(t, attempts.logged(), 4)
}

func TestIngestor_FlushesOnInterval(t *testing.T) {
	attempts := &MockAttempts{}
	attempts.On("LogBatch", mock.Anything, mock.Anything).Return(nil)

	ing := NewIngestor(zap.NewNop(), &fakeRepo{attempts: attempts}, WithFlushInterval(10*time.Millisecond))
	ing.Start(context.Background())
	defer ing.Stop()

	ing.AttemptFinished(context.Background(), router.Attempt{RequestID: "r", Backend: "x", Number: 1})

	assert.Eventually(t, func() bool { return len(attempts.logged()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestIngestor_DropsWhenFull(t *testing.T) {
	attempts := &MockAttempts{}
	attempts.On("LogBatch", mock.Anything, mock.Anything).Return(nil)

	// not started: nothing drains the buffer until Stop
	ing := NewIngestor(zap.NewNop(), &fakeRepo{attempts: attempts}, WithBufferSize(2))
	for n := 1; n <= 5; n++ {
		ing.AttemptFinished(context.Background(), router.Attempt{RequestID: "r", Backend: "x", Number: n})
	}

	ing.Start(context.Background())
	ing.Stop()
	assert.Len(t, attempts.logged(), 2)
}

func TestIngestor_StopsWithContext(t *testing.T) {
	attempts := &MockAttempts{}
	attempts.On("LogBatch", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	ing := NewIngestor(zap.NewNop(), &fakeRepo{attempts: attempts}, WithFlushInterval(time.Hour))
	ing.Start(ctx)

	ing.AttemptFinished(ctx, router.Attempt{RequestID: "r", Backend: "x", Number: 1})
	cancel()
	ing.Stop()

	assert.Len(t, attempts.logged(), 1)

	ing.AttemptFinished(ctx, router.Attempt{RequestID: "r", Backend: "x", Number: 2})
	assert.Len(t, attempts.logged(), 1, "entries after stop are ignored")
}

func TestService_BackendSummaries(t *testing.T) {
	attempts := &MockAttempts{}
	now := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	want := []model.BackendSummary{{BackendID: "openai", Attempts: 3}}
	attempts.On("Summaries", mock.Anything, now.Add(-7*24*time.Hour)).Return(want, nil).Once()
	attempts.On("Summaries", mock.Anything, now.Add(-24*time.Hour)).Return(want, nil).Once()

	svc := &service{repo: &fakeRepo{attempts: attempts}, now: func() time.Time { return now }}

	got, err := svc.BackendSummaries(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.BackendSummaries(context.Background(), 1)
	require.NoError(t, err)
	attempts.AssertExpectations(t)
}

func TestService_RequestAttempts(t *testing.T) {
	attempts := &MockAttempts{}
	attempts.On("ListByRequest", mock.Anything, "req-9").Return([]model.AttemptLog{{ID: "a"}}, nil)

	svc := NewService(&fakeRepo{attempts: attempts})
	logs, err := svc.RequestAttempts(context.Background(), "req-9")

	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRetention_Prune(t *testing.T) {
	attempts := &MockAttempts{}
	now := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	attempts.On("DeleteBefore", mock.Anything, now.Add(-48*time.Hour)).Return(int64(12), nil)

	r := NewRetention(&fakeRepo{attempts: attempts}, 48*time.Hour, "@hourly", zap.NewNop())
	r.now = func() time.Time { return now }

	n, err := r.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestRetention_Start(t *testing.T) {
	repo := &fakeRepo{attempts: &MockAttempts{}}

	bad := NewRetention(repo, time.Hour, "every now and then", zap.NewNop())
	assert.ErrorContains(t, bad.Start(context.Background()), "invalid prune schedule")

	disabled := NewRetention(repo, 0, "@hourly", zap.NewNop())
	assert.NoError(t, disabled.Start(context.Background()))

	ok := NewRetention(repo, time.Hour, "@daily", zap.NewNop())
	require.NoError(t, ok.Start(context.Background()))
	assert.Len(t, ok.cron.Entries(), 1)
	ok.Stop()
}
