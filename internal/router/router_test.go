package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nulzo/generation-router/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ForcedBackendBypassesStrategy(t *testing.T) {
	primary := newMockBackend("primary", "cheap", llm.Pricing{"cheap": 0.0001})
	secondary := newMockBackend("secondary", "pricey", llm.Pricing{"pricey": 0.1})
	secondary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	cfg := DefaultConfig()
	r, _ := newTestRouter(t, cfg, primary, secondary)

	req := userRequest()
	req.Strategy = StrategyCostFirst
	req.Backend = "secondary"
	req.EnableRetry = boolPtr(false)

	_, err := r.Generate(context.Background(), req)

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAllBackendsFailed))
	assert.EqualError(t, err, "boom")
	secondary.AssertNumberOfCalls(t, "Generate", 1)
	primary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_ForcedBackendMissing(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	r, _ := newTestRouter(t, DefaultConfig(), primary)

	req := userRequest()
	req.Backend = "ghost"

	_, err := r.Generate(context.Background(), req)

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	var nf *BackendNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, llm.BackendID("ghost"), nf.Backend)
	assert.Equal(t, []llm.BackendID{"primary"}, nf.Available)
	primary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_RetryBound(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	primary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("flaky"))

	cfg := DefaultConfig()
	cfg.EnableFallback = false
	r, _ := newTestRouter(t, cfg, primary)

	req := userRequest()
	req.EnableRetry = boolPtr(true)
	req.MaxRetries = 3

	_, err := r.Generate(context.Background(), req)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, 3, attemptErr.Attempts)
	assert.Len(t, attemptErr.History, 3)
	primary.AssertNumberOfCalls(t, "Generate", 3)
}

func TestGenerate_RetryDisabledIgnoresMaxRetries(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	primary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("flaky"))

	cfg := DefaultConfig()
	cfg.MaxRetries = 5
	r, rec := newTestRouter(t, cfg, primary)

	req := userRequest()
	req.EnableRetry = boolPtr(false)

	_, err := r.Generate(context.Background(), req)

	require.Error(t, err)
	primary.AssertNumberOfCalls(t, "Generate", 1)
	assert.Equal(t, []time.Duration{0}, rec.delays)
}

func TestGenerate_BackoffSchedule(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	primary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Second
	cfg.RetryMaxDelay = 10 * time.Second
	r, rec := newTestRouter(t, cfg, primary)

	req := userRequest()
	req.MaxRetries = 6

	_, err := r.Generate(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		0,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}, rec.delays)
}

func TestGenerate_FallbackDisabledStopsImmediately(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	secondary := newMockBackend("secondary", "m", nil)
	primary.seed(10 * time.Millisecond)
	secondary.seed(20 * time.Millisecond)
	primary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("auth error"))
	secondary.On("Generate", mock.Anything, mock.Anything).Return(ok("unused"), nil)

	cfg := DefaultConfig()
	cfg.EnableFallback = false
	r, _ := newTestRouter(t, cfg, primary, secondary)

	req := userRequest()
	req.EnableRetry = boolPtr(false)

	_, err := r.Generate(context.Background(), req)

	require.Error(t, err)
	assert.EqualError(t, err, "auth error")
	assert.False(t, errors.Is(err, ErrAllBackendsFailed))
	secondary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_FallsBackToNextCandidate(t *testing.T) {
	primary := newMockBackend("primary", "m", llm.Pricing{"m": 0.002})
	secondary := newMockBackend("secondary", "m2", llm.Pricing{"m2": 0.004})
	primary.seed(10 * time.Millisecond)
	secondary.seed(90 * time.Millisecond)
	primary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
	secondary.On("Generate", mock.Anything, mock.Anything).Return(ok("hi there"), nil)

	observer := &MockObserver{}
	observer.On("AttemptFinished", mock.Anything, mock.Anything).Return()
	observer.On("GenerationFinished", mock.Anything, mock.MatchedBy(func(g Generation) bool {
		return g.Fallbacks() == 1 && g.Err == nil && g.Strategy == StrategyLatencyFirst
	})).Return().Once()

	registry, err := NewRegistry(primary, secondary)
	require.NoError(t, err)
	rec := &sleepRecorder{}
	r := New(DefaultConfig(), registry, WithSleep(rec.sleep), WithObserver(observer))

	req := userRequest()
	req.MaxRetries = 2

	res, err := r.Generate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "hi there", res.Content)
	assert.Equal(t, llm.BackendID("secondary"), res.Backend)
	// 1000 tokens at 0.004 per thousand
	assert.InDelta(t, 0.004, res.Cost, 1e-12)

	primary.AssertNumberOfCalls(t, "Generate", 2)
	secondary.AssertNumberOfCalls(t, "Generate", 1)
	observer.AssertNumberOfCalls(t, "AttemptFinished", 3)
	observer.AssertExpectations(t)
}

func TestGenerate_RecordsEveryAttempt(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	primary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("flaky")).Once()
	primary.On("Generate", mock.Anything, mock.Anything).Return(ok("done"), nil).Once()

	r, _ := newTestRouter(t, DefaultConfig(), primary)

	res, err := r.Generate(context.Background(), userRequest())
	require.NoError(t, err)

	snap := primary.Window().Snapshot()
	require.Len(t, snap, 2)
	assert.False(t, snap[0].Success)
	assert.Equal(t, "flaky", snap[0].Error)
	assert.True(t, snap[1].Success)
	assert.Equal(t, "primary", snap[1].Backend)
	assert.Equal(t, "m", snap[1].Model)
	// the result's latency is the winning attempt's, not the whole sequence
	assert.Equal(t, snap[1].Latency, res.Latency)
}

func TestGenerate_TrackingDisabled(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	primary.On("Generate", mock.Anything, mock.Anything).Return(ok("done"), nil)

	cfg := DefaultConfig()
	cfg.TrackLatency = false
	r, _ := newTestRouter(t, cfg, primary)

	_, err := r.Generate(context.Background(), userRequest())
	require.NoError(t, err)
	assert.Empty(t, primary.Window().Snapshot())
}

func TestGenerate_TotalFailure(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	secondary := newMockBackend("secondary", "m", nil)
	primary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("auth error"))
	secondary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	r, _ := newTestRouter(t, DefaultConfig(), primary, secondary)

	_, err := r.Generate(context.Background(), userRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllBackendsFailed)
	msg := err.Error()
	assert.Contains(t, msg, "primary")
	assert.Contains(t, msg, "secondary")
	assert.Contains(t, msg, "auth error")
	assert.Contains(t, msg, "timeout")
	assert.Equal(t, "all backends failed: primary: auth error; secondary: timeout", msg)

	var all *AllBackendsFailedError
	require.ErrorAs(t, err, &all)
	assert.Len(t, all.Failures, 2)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, 3, attemptErr.Attempts)
}

func TestGenerate_NoCandidates(t *testing.T) {
	r, _ := newTestRouter(t, DefaultConfig())

	_, err := r.Generate(context.Background(), userRequest())
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGenerate_UnknownStrategy(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	r, _ := newTestRouter(t, DefaultConfig(), primary)

	req := userRequest()
	req.Strategy = "random"

	_, err := r.Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidStrategy)
	primary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_SkipsUnavailableBackends(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	secondary := newMockBackend("secondary", "m", nil)
	primary.seed(time.Millisecond)
	primary.On("IsAvailable", mock.Anything).Return(false)
	secondary.On("IsAvailable", mock.Anything).Return(true)
	secondary.On("Generate", mock.Anything, mock.Anything).Return(ok("from secondary"), nil)

	cfg := DefaultConfig()
	cfg.CheckAvailability = true
	r, _ := newTestRouter(t, cfg, primary, secondary)

	res, err := r.Generate(context.Background(), userRequest())

	require.NoError(t, err)
	assert.Equal(t, llm.BackendID("secondary"), res.Backend)
	primary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_AllUnavailableMeansNoCandidates(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	primary.On("IsAvailable", mock.Anything).Return(false)

	cfg := DefaultConfig()
	cfg.CheckAvailability = true
	r, _ := newTestRouter(t, cfg, primary)

	_, err := r.Generate(context.Background(), userRequest())
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	secondary := newMockBackend("secondary", "m", nil)
	primary.seed(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	primary.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, errors.New("slow"))

	r, _ := newTestRouter(t, DefaultConfig(), primary, secondary)

	_, err := r.Generate(ctx, userRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "slow")
	primary.AssertNumberOfCalls(t, "Generate", 1)
	secondary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_PerAttemptTimeout(t *testing.T) {
	primary := newMockBackend("primary", "m", nil)
	primary.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("x")).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(250*time.Millisecond), deadline, 200*time.Millisecond)
	})

	r, _ := newTestRouter(t, DefaultConfig(), primary)

	req := userRequest()
	req.Timeout = 250 * time.Millisecond
	req.EnableRetry = boolPtr(false)

	_, err := r.Generate(context.Background(), req)
	require.Error(t, err)
	primary.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGenerate_ModelOverrideReachesBackend(t *testing.T) {
	primary := newMockBackend("primary", "default-model", llm.Pricing{"default-model": 0.001, "big-model": 0.01})
	primary.On("Generate", mock.Anything, mock.MatchedBy(func(req *llm.Request) bool {
		return req.Model == "big-model"
	})).Return(ok("big answer"), nil)

	r, _ := newTestRouter(t, DefaultConfig(), primary)

	req := userRequest()
	req.Model = "big-model"

	res, err := r.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, res.Cost, 1e-12)
}
