package router

import (
	"context"
	"fmt"
	"time"

	"github.com/nulzo/generation-router/internal/llm"
)

// DefaultMaxDelay caps the backoff between attempts.
const DefaultMaxDelay = 10 * time.Second

// Backoff computes exponential delays: min(Base * 2^retry, Max).
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the pause before the attempt with 0-indexed number retry.
// The first attempt (retry 0) never waits.
func (b Backoff) Delay(retry int) time.Duration {
	if retry <= 0 || b.Base <= 0 {
		return 0
	}
	limit := b.Max
	if limit <= 0 {
		limit = DefaultMaxDelay
	}

	d := b.Base
	for i := 0; i < retry; i++ {
		if d >= limit/2 {
			return limit
		}
		d *= 2
	}
	return min(d, limit)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy is the resolved retry setting for one backend.
type RetryPolicy struct {
	Enabled     bool
	MaxAttempts int
	// Timeout bounds each attempt separately. Zero means no per-attempt bound.
	Timeout time.Duration
}

func (p RetryPolicy) attempts() int {
	if !p.Enabled || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Attempt describes one call to one backend.
type Attempt struct {
	RequestID string
	Backend   llm.BackendID
	Model     string
	// Number is 1-based within the backend's retry sequence.
	Number  int
	Started time.Time
	Latency time.Duration
	Result  *llm.Result
	Err     error
}

// Executor runs a single backend with bounded retries.
type Executor struct {
	backoff Backoff
	sleep   SleepFunc
	now     func() time.Time
}

func NewExecutor(backoff Backoff, sleep SleepFunc) *Executor {
	if sleep == nil {
		sleep = sleepContext
	}
	return &Executor{backoff: backoff, sleep: sleep, now: time.Now}
}

// Execute calls b until it succeeds or policy's attempts run out. onAttempt,
// when set, observes every attempt. On exhaustion the returned *AttemptError
// carries the last error.
func (e *Executor) Execute(ctx context.Context, requestID string, b llm.Backend, req *llm.Request, policy RetryPolicy, onAttempt func(Attempt)) (*llm.Result, error) {
	maxAttempts := policy.attempts()
	model := llm.ModelFor(b, req)
	history := make([]error, 0, maxAttempts)

	fail := func(err error) *AttemptError {
		return &AttemptError{Backend: b.ID(), Attempts: len(history), Err: err, History: history}
	}

	for retry := 0; retry < maxAttempts; retry++ {
		if err := e.sleep(ctx, e.backoff.Delay(retry)); err != nil {
			return nil, fail(cancelled(err, history))
		}

		attempt := e.call(ctx, b, req, policy.Timeout)
		attempt.RequestID = requestID
		attempt.Backend = b.ID()
		attempt.Model = model
		attempt.Number = retry + 1
		if attempt.Result != nil && attempt.Result.Model != "" {
			attempt.Model = attempt.Result.Model
		}
		if onAttempt != nil {
			onAttempt(attempt)
		}

		if attempt.Err == nil {
			return attempt.Result, nil
		}
		history = append(history, attempt.Err)
	}

	return nil, fail(history[len(history)-1])
}

func (e *Executor) call(ctx context.Context, b llm.Backend, req *llm.Request, timeout time.Duration) Attempt {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := e.now()
	res, err := b.Generate(ctx, req)
	latency := e.now().Sub(started)

	if err == nil && res == nil {
		err = llm.Empty(b.ID())
	}
	if err != nil {
		return Attempt{Started: started, Latency: latency, Err: err}
	}

	res.Latency = latency
	res.Cost = llm.EstimateCost(res.Usage, b.CostPerThousandTokens(llm.ModelFor(b, req)))
	if res.Backend == "" {
		res.Backend = b.ID()
	}
	return Attempt{Started: started, Latency: latency, Result: res}
}

func cancelled(err error, history []error) error {
	if len(history) == 0 {
		return err
	}
	return fmt.Errorf("%w after %d attempts, last error: %v", err, len(history), history[len(history)-1])
}
