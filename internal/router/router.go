package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/tracker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/nulzo/generation-router/internal/router"

// Config holds process-wide routing defaults. It is fixed at construction.
type Config struct {
	DefaultStrategy   Strategy
	EnableFallback    bool
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	TrackLatency      bool
	CheckAvailability bool
	AttemptTimeout    time.Duration
}

// DefaultConfig mirrors the configuration file defaults.
func DefaultConfig() Config {
	return Config{
		DefaultStrategy: StrategyLatencyFirst,
		EnableFallback:  true,
		MaxRetries:      3,
		RetryBaseDelay:  time.Second,
		RetryMaxDelay:   DefaultMaxDelay,
		TrackLatency:    true,
		AttemptTimeout:  30 * time.Second,
	}
}

// ConfigFrom converts the router section of the service configuration.
func ConfigFrom(c config.RouterConfig) (Config, error) {
	strategy, err := ParseStrategy(c.DefaultStrategy)
	if err != nil {
		return Config{}, err
	}
	return Config{
		DefaultStrategy:   strategy,
		EnableFallback:    c.EnableFallback,
		MaxRetries:        c.MaxRetries,
		RetryBaseDelay:    c.RetryBaseDelay,
		RetryMaxDelay:     c.RetryMaxDelay,
		TrackLatency:      c.TrackLatency,
		CheckAvailability: c.CheckAvailability,
		AttemptTimeout:    c.AttemptTimeout,
	}, nil
}

// Request is a generation request plus its routing controls.
type Request struct {
	llm.Request

	RequestID string
	// Strategy is ignored when Backend is set.
	Strategy Strategy
	// Backend forces a single backend with no fallback.
	Backend llm.BackendID
	// EnableRetry and MaxRetries override the router defaults when set.
	EnableRetry *bool
	MaxRetries  int
	// Timeout bounds each attempt, not the whole request.
	Timeout time.Duration
}

type Option func(*Router)

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func WithObserver(o ...Observer) Option {
	return func(r *Router) { r.observers = append(r.observers, o...) }
}

func WithAvailabilityChecker(c AvailabilityChecker) Option {
	return func(r *Router) { r.checker = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(s SleepFunc) Option {
	return func(r *Router) { r.sleep = s }
}

// Router picks backends for a request, retries them and falls back between them.
type Router struct {
	cfg       Config
	registry  *Registry
	executor  *Executor
	checker   AvailabilityChecker
	observers []Observer
	logger    *zap.Logger
	tracer    trace.Tracer
	sleep     SleepFunc
}

func New(cfg Config, registry *Registry, opts ...Option) *Router {
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = StrategyLatencyFirst
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	r := &Router{
		cfg:      cfg,
		registry: registry,
		checker:  DirectChecker{},
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.executor = NewExecutor(Backoff{Base: cfg.RetryBaseDelay, Max: cfg.RetryMaxDelay}, r.sleep)
	return r
}

func (r *Router) Config() Config {
	return r.cfg
}

func (r *Router) Registry() *Registry {
	return r.registry
}

// Generate serves req from the first backend that succeeds.
func (r *Router) Generate(ctx context.Context, req *Request) (*llm.Result, error) {
	ctx, span := r.tracer.Start(ctx, "router.Generate", trace.WithAttributes(
		attribute.String("request.id", req.RequestID),
	))
	defer span.End()

	started := time.Now()
	gen := Generation{RequestID: req.RequestID}

	res, err := r.generate(ctx, req, &gen)

	gen.Duration = time.Since(started)
	gen.Result = res
	gen.Err = err

	span.SetAttributes(
		attribute.String("router.strategy", string(gen.Strategy)),
		attribute.Int("router.fallbacks", gen.Fallbacks()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("backend.id", string(res.Backend)),
			attribute.String("backend.model", res.Model),
		)
	}

	for _, o := range r.observers {
		o.GenerationFinished(ctx, gen)
	}
	return res, err
}

func (r *Router) generate(ctx context.Context, req *Request, gen *Generation) (*llm.Result, error) {
	candidates, fallback, err := r.candidates(ctx, req, gen)
	if err != nil {
		return nil, err
	}
	for _, b := range candidates {
		gen.Candidates = append(gen.Candidates, b.ID())
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for strategy %s", ErrNoCandidates, gen.Strategy)
	}

	policy := r.policy(req)
	failures := make([]BackendFailure, 0, len(candidates))

	for i, b := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, stopped(err, failures)
		}
		if i > 0 {
			r.logger.Info("Falling back to next backend",
				zap.String("request_id", req.RequestID),
				zap.String("from", string(candidates[i-1].ID())),
				zap.String("to", string(b.ID())),
			)
		}

		gen.Tried = append(gen.Tried, b.ID())
		res, err := r.try(ctx, req, b, policy)
		if err == nil {
			return res, nil
		}

		failures = append(failures, BackendFailure{Backend: b.ID(), Err: err})
		if !fallback {
			return nil, err
		}
	}

	return nil, &AllBackendsFailedError{Failures: failures}
}

// candidates resolves the ordered candidate list and whether fallback applies.
func (r *Router) candidates(ctx context.Context, req *Request, gen *Generation) ([]llm.Backend, bool, error) {
	if req.Backend != "" {
		gen.Forced = true
		b, ok := r.registry.Get(req.Backend)
		if !ok {
			return nil, false, &BackendNotFoundError{Backend: req.Backend, Available: r.registry.IDs()}
		}
		return []llm.Backend{b}, false, nil
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = r.cfg.DefaultStrategy
	}
	gen.Strategy = strategy

	pool := r.registry.All()
	if r.cfg.CheckAvailability && len(pool) > 0 {
		pool = filterAvailable(ctx, r.checker, pool)
	}

	ranked, err := Rank(strategy, pool)
	if err != nil {
		return nil, false, err
	}
	return ranked, r.cfg.EnableFallback, nil
}

func (r *Router) policy(req *Request) RetryPolicy {
	p := RetryPolicy{
		Enabled:     true,
		MaxAttempts: r.cfg.MaxRetries,
		Timeout:     r.cfg.AttemptTimeout,
	}
	if req.EnableRetry != nil {
		p.Enabled = *req.EnableRetry
	}
	if req.MaxRetries > 0 {
		p.MaxAttempts = req.MaxRetries
	}
	if req.Timeout > 0 {
		p.Timeout = req.Timeout
	}
	return p
}

func (r *Router) try(ctx context.Context, req *Request, b llm.Backend, policy RetryPolicy) (*llm.Result, error) {
	ctx, span := r.tracer.Start(ctx, "router.backend", trace.WithAttributes(
		attribute.String("backend.id", string(b.ID())),
		attribute.String("backend.type", b.Type()),
	))
	defer span.End()

	res, err := r.executor.Execute(ctx, req.RequestID, b, &req.Request, policy, func(a Attempt) {
		r.attemptFinished(ctx, span, b, a)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Router) attemptFinished(ctx context.Context, span trace.Span, b llm.Backend, a Attempt) {
	outcome := tracker.Outcome{
		Backend:   string(a.Backend),
		Timestamp: a.Started,
		Latency:   a.Latency,
		Model:     a.Model,
		Success:   a.Err == nil,
	}
	if a.Err != nil {
		outcome.Error = a.Err.Error()
	}
	if r.cfg.TrackLatency {
		b.Record(outcome)
	}

	span.AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt.number", a.Number),
		attribute.Bool("attempt.success", outcome.Success),
		attribute.Int64("attempt.latency_ms", a.Latency.Milliseconds()),
	))

	if a.Err != nil {
		r.logger.Warn("Backend attempt failed",
			zap.String("request_id", a.RequestID),
			zap.String("backend", string(a.Backend)),
			zap.Int("attempt", a.Number),
			zap.Duration("latency", a.Latency),
			zap.String("kind", string(llm.Classify(a.Err))),
			zap.Error(a.Err),
		)
	}

	for _, o := range r.observers {
		o.AttemptFinished(ctx, a)
	}
}

// stopped reports a cancellation that happened between candidates.
func stopped(err error, failures []BackendFailure) error {
	if len(failures) == 0 {
		return err
	}
	last := failures[len(failures)-1]
	if errors.Is(last.Err, err) {
		return last.Err
	}
	return fmt.Errorf("%w after %d backends, last error from %s: %v", err, len(failures), last.Backend, last.Err)
}
