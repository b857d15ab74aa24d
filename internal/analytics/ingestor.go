package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/generation-router/internal/router"
	"github.com/nulzo/generation-router/internal/store"
	"github.com/nulzo/generation-router/internal/store/model"
	"go.uber.org/zap"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	writeTimeout         = 10 * time.Second
)

// Ingestor persists backend attempts asynchronously. It implements
// router.Observer; enqueueing never blocks the request path and drops the
// entry when the buffer is full.
type Ingestor struct {
	logger        *zap.Logger
	repo          store.Repository
	queue         chan model.AttemptLog
	batchSize     int
	flushInterval time.Duration
	now           func() time.Time

	stopped  atomic.Bool
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type IngestorOption func(*Ingestor)

func WithBatchSize(n int) IngestorOption {
	return func(i *Ingestor) { i.batchSize = n }
}

func WithFlushInterval(d time.Duration) IngestorOption {
	return func(i *Ingestor) { i.flushInterval = d }
}

func WithBufferSize(n int) IngestorOption {
	return func(i *Ingestor) { i.queue = make(chan model.AttemptLog, n) }
}

func NewIngestor(logger *zap.Logger, repo store.Repository, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		logger:        logger,
		repo:          repo,
		queue:         make(chan model.AttemptLog, defaultBufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		now:           time.Now,
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Ingestor) AttemptFinished(_ context.Context, a router.Attempt) {
	entry := model.AttemptLog{
		ID:        uuid.NewString(),
		RequestID: a.RequestID,
		BackendID: string(a.Backend),
		Model:     a.Model,
		Attempt:   a.Number,
		Success:   a.Err == nil,
		LatencyMS: a.Latency.Milliseconds(),
		CreatedAt: a.Started.UTC(),
	}
	if a.Started.IsZero() {
		entry.CreatedAt = i.now().UTC()
	}
	if a.Err != nil {
		entry.Error = a.Err.Error()
	}
	if a.Result != nil {
		entry.InputTokens = a.Result.Usage.InputTokens
		entry.OutputTokens = a.Result.Usage.OutputTokens
		entry.Cost = a.Result.Cost
	}
	i.enqueue(entry)
}

// GenerationFinished is a no-op; every attempt is persisted as it finishes.
func (i *Ingestor) GenerationFinished(context.Context, router.Generation) {}

func (i *Ingestor) enqueue(entry model.AttemptLog) {
	if i.stopped.Load() {
		return
	}
	select {
	case i.queue <- entry:
	default:
		i.logger.Warn("Analytics buffer full, dropping attempt log",
			zap.String("request_id", entry.RequestID),
			zap.String("backend", entry.BackendID),
		)
	}
}

// Start runs the background writer until ctx is done or Stop is called.
func (i *Ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

// Stop flushes everything queued so far and waits for the writer to exit.
func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() {
		i.stopped.Store(true)
		close(i.quit)
	})
	<-i.done
}

func (i *Ingestor) worker(ctx context.Context) {
	defer close(i.done)

	batch := make([]model.AttemptLog, 0, i.batchSize)
	ticker := time.NewTicker(i.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := i.repo.Attempts().LogBatch(wctx, batch); err != nil {
			i.logger.Error("Failed to persist attempt logs",
				zap.Int("count", len(batch)),
				zap.Error(err),
			)
		}
		batch = batch[:0]
	}

	drain := func() {
		for {
			select {
			case entry := <-i.queue:
				batch = append(batch, entry)
				if len(batch) >= i.batchSize {
					flush()
				}
			default:
				flush()
				return
			}
		}
	}

	for {
		select {
		case entry := <-i.queue:
			batch = append(batch, entry)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-i.quit:
			drain()
			return
		case <-ctx.Done():
			i.stopped.Store(true)
			drain()
			return
		}
	}
}
