// File: internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrRunNotFound is returned when a run id has no stored record.
var ErrRunNotFound = errors.New("run not found")

// DBPool abstracts pgxpool.Pool to allow mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunRecord is one finished plan execution as stored in the run history.
type RunRecord struct {
	RunID         string          `json:"run_id"`
	Goal          string          `json:"goal"`
	Report        json.RawMessage `json:"report"`
	StepsTotal    int             `json:"steps_total"`
	StepsExecuted int             `json:"steps_executed"`
	Failed        bool            `json:"failed"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// Store provides a PostgreSQL-backed run history.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlCreateRuns = `
    CREATE TABLE IF NOT EXISTS runs (
        run_id         TEXT PRIMARY KEY,
        goal           TEXT NOT NULL,
        report         JSONB NOT NULL,
        steps_total    INTEGER NOT NULL,
        steps_executed INTEGER NOT NULL,
        failed         BOOLEAN NOT NULL,
        started_at     TIMESTAMPTZ NOT NULL,
        finished_at    TIMESTAMPTZ NOT NULL
    );
`

// EnsureSchema creates the runs table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateRuns); err != nil {
		return fmt.Errorf("failed to ensure runs schema: %w", err)
	}
	return nil
}

const sqlInsertRun = `
    INSERT INTO runs (run_id, goal, report, steps_total, steps_executed, failed, started_at, finished_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`

// SaveRun inserts one run record.
func (s *Store) SaveRun(ctx context.Context, rec *RunRecord) error {
	report := rec.Report
	if len(report) == 0 || string(report) == "null" {
		report = json.RawMessage("{}")
	}

	_, err := s.pool.Exec(ctx, sqlInsertRun,
		rec.RunID, rec.Goal, report,
		rec.StepsTotal, rec.StepsExecuted, rec.Failed,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.RunID, err)
	}
	return nil
}

const sqlSelectRun = `
    SELECT run_id, goal, report, steps_total, steps_executed, failed, started_at, finished_at
    FROM runs
    WHERE run_id = $1;
`

// GetRun retrieves one run record by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	err := s.pool.QueryRow(ctx, sqlSelectRun, runID).Scan(
		&rec.RunID, &rec.Goal, &rec.Report,
		&rec.StepsTotal, &rec.StepsExecuted, &rec.Failed,
		&rec.StartedAt, &rec.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	return &rec, nil
}

const sqlListRuns = `
    SELECT run_id, goal, report, steps_total, steps_executed, failed, started_at, finished_at
    FROM runs
    ORDER BY started_at DESC
    LIMIT $1;
`

// ListRuns returns the most recent run records, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.RunID, &rec.Goal, &rec.Report,
			&rec.StepsTotal, &rec.StepsExecuted, &rec.Failed,
			&rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
