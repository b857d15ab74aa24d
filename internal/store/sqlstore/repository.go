package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/store"
	"github.com/nulzo/generation-router/internal/store/model"
	"github.com/nulzo/generation-router/internal/store/postgres"
	"github.com/nulzo/generation-router/internal/store/sqlite"
)

// DB is satisfied by both *sqlx.DB and *sqlx.Tx.
type DB interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// Repository implements store.Repository on top of sqlx. Queries are written
// with ? placeholders and rebound for the connected driver.
type Repository struct {
	db   *sqlx.DB
	exec DB
}

// Open connects to the configured database, applies migrations and wraps it.
func Open(cfg config.DatabaseConfig) (*Repository, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite", "sqlite3", "":
		db, err = sqlite.Open(cfg.DSN)
	case "postgres", "postgresql":
		db, err = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func New(db *sqlx.DB) *Repository {
	return &Repository{db: db, exec: db}
}

func (r *Repository) Attempts() store.AttemptRepository {
	return &attemptRepo{db: r.exec}
}

func (r *Repository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&Repository{db: r.db, exec: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type attemptRepo struct {
	db DB
}

// maxBatchRows keeps a multi-row insert under the bound parameter limits of
// SQLite (32766) and Postgres (65535) at 12 columns per row.
const maxBatchRows = 500

const insertAttempt = `
INSERT INTO attempt_logs (
	id, request_id, backend_id, model, attempt, success, latency_ms, error,
	input_tokens, output_tokens, cost, created_at
) VALUES (
	:id, :request_id, :backend_id, :model, :attempt, :success, :latency_ms, :error,
	:input_tokens, :output_tokens, :cost, :created_at
)`

// Timestamps are stored in UTC. SQLite keeps them as text, so rows written
// with different offsets would not compare correctly.

func (r *attemptRepo) Log(ctx context.Context, log *model.AttemptLog) error {
	entry := *log
	entry.CreatedAt = entry.CreatedAt.UTC()
	_, err := r.db.NamedExecContext(ctx, insertAttempt, &entry)
	return err
}

func (r *attemptRepo) LogBatch(ctx context.Context, logs []model.AttemptLog) error {
	if len(logs) == 0 {
		return nil
	}
	rows := make([]model.AttemptLog, len(logs))
	for i, l := range logs {
		l.CreatedAt = l.CreatedAt.UTC()
		rows[i] = l
	}
	for chunk := range slices.Chunk(rows, maxBatchRows) {
		if _, err := r.db.NamedExecContext(ctx, insertAttempt, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (r *attemptRepo) ListByRequest(ctx context.Context, requestID string) ([]model.AttemptLog, error) {
	query := r.db.Rebind(`
	SELECT id, request_id, backend_id, model, attempt, success, latency_ms, error,
		input_tokens, output_tokens, cost, created_at
	FROM attempt_logs
	WHERE request_id = ?
	ORDER BY created_at, attempt`)

	logs := []model.AttemptLog{}
	if err := r.db.SelectContext(ctx, &logs, query, requestID); err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, store.ErrNotFound
	}
	return logs, nil
}

func (r *attemptRepo) Summaries(ctx context.Context, since time.Time) ([]model.BackendSummary, error) {
	query := r.db.Rebind(`
	SELECT
		backend_id,
		COUNT(*) AS attempts,
		COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successes,
		COALESCE(AVG(CASE WHEN success THEN latency_ms END), 0) AS avg_latency_ms,
		COALESCE(SUM(cost), 0) AS total_cost
	FROM attempt_logs
	WHERE created_at >= ?
	GROUP BY backend_id
	ORDER BY backend_id`)

	summaries := []model.BackendSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query, since.UTC()); err != nil {
		return nil, err
	}
	for i := range summaries {
		s := &summaries[i]
		if s.Attempts > 0 {
			s.SuccessRate = float64(s.Successes) / float64(s.Attempts)
		}
	}
	return summaries, nil
}

func (r *attemptRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM attempt_logs WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
