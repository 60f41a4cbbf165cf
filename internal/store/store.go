// Package store implements the Durable Job Store (DJS): the authoritative
// record of every job, backed by Postgres via pgx.
package store

import (
	"context"
	_ "embed"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crawlctl/crawlctl/internal/apperr"
	"github.com/crawlctl/crawlctl/internal/job"
)

//go:embed schema.sql
var schemaSQL string

// Store is the DJS's public surface.
type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperr.StoreError("failed to open durable store", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate runs the embedded schema script idempotently: the minimum
// needed to run against a fresh database without a migration framework.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return apperr.StoreError("failed to run schema migration", err)
	}
	return nil
}

// CreatePending inserts the initial PENDING row for a newly submitted job.
// This must complete before the task record is published to the
// transport, so a status query right after submit always finds the job.
func (s *Store) CreatePending(ctx context.Context, j job.Job) error {
	const q = `
INSERT INTO job (id, status, urls_submitted, urls_succeeded, urls_failed, user_id, created_at, updated_at)
VALUES ($1, $2, $3, 0, 0, $4, $5, $5)`
	var userID any
	if j.UserID != "" {
		userID = j.UserID
	}
	_, err := s.pool.Exec(ctx, q, j.ID, job.EStatus.Pending().String(), j.UrlsSubmitted, userID, j.CreatedAt)
	if err != nil {
		return apperr.StoreError("failed to create job row", err)
	}
	return nil
}

// MarkRunning transitions a job PENDING -> RUNNING.
func (s *Store) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	const q = `UPDATE job SET status = $2, started_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`
	tag, err := s.pool.Exec(ctx, q, jobID, job.EStatus.Running().String(), startedAt, job.EStatus.Pending().String())
	if err != nil {
		return apperr.StoreError("failed to mark job running", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.JobNotFound(jobID)
	}
	return nil
}

// MarkSucceeded performs the terminal SUCCEEDED write, recording the
// result artifact and execution duration.
func (s *Store) MarkSucceeded(ctx context.Context, jobID, resultArtifact string, urlsSucceeded, urlsFailed int, executionDurationMs int64, completedAt time.Time) error {
	const q = `
UPDATE job SET status = $2, result_html = $3, urls_succeeded = $4, urls_failed = $5,
	execution_time_ms = $6, completed_at = $7, updated_at = $7
WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, jobID, job.EStatus.Succeeded().String(), resultArtifact, urlsSucceeded, urlsFailed, executionDurationMs, completedAt)
	if err != nil {
		return apperr.StoreError("failed to mark job succeeded", err)
	}
	return nil
}

// MarkFailed performs the terminal FAILED write.
func (s *Store) MarkFailed(ctx context.Context, jobID string, urlsSucceeded, urlsFailed int, executionDurationMs int64, completedAt time.Time) error {
	const q = `
UPDATE job SET status = $2, urls_succeeded = $3, urls_failed = $4,
	execution_time_ms = $5, completed_at = $6, updated_at = $6
WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, jobID, job.EStatus.Failed().String(), urlsSucceeded, urlsFailed, executionDurationMs, completedAt)
	if err != nil {
		return apperr.StoreError("failed to mark job failed", err)
	}
	return nil
}

// Get returns the persisted row for jobID, or an apperr.JobNotFound error.
func (s *Store) Get(ctx context.Context, jobID string) (*job.Job, error) {
	const q = `
SELECT id, status, urls_submitted, urls_succeeded, urls_failed, COALESCE(user_id, ''),
	COALESCE(result_html, ''), COALESCE(execution_time_ms, 0), created_at, started_at, completed_at
FROM job WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, jobID)

	var j job.Job
	var status string
	if err := row.Scan(&j.ID, &status, &j.UrlsSubmitted, &j.UrlsSucceeded, &j.UrlsFailed, &j.UserID,
		&j.ResultArtifact, &j.ExecutionDurationMs, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		return nil, apperr.JobNotFound(jobID)
	}
	if err := j.Status.Parse(status); err != nil {
		return nil, apperr.Internal("failed to parse stored job status", err)
	}
	return &j, nil
}
