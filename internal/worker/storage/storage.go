package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tdhoang/clipsvc/internal/clip"
)

// Storage handles all database operations for the worker. Every write
// refreshes expires_at so a job's retention window is measured from its
// last activity, not its creation.
type Storage struct {
	db        *sqlx.DB
	retention time.Duration
	logger    *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, retention time.Duration, logger *slog.Logger) *Storage {
	return &Storage{
		db:        db,
		retention: retention,
		logger:    logger,
	}
}

// ClaimJob attempts to claim a queued job using optimistic locking.
// Returns full job details on success, ErrJobAlreadyClaimed when the row
// is missing or no longer queued. This is the only queued→working path,
// so a job is owned by at most one worker.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*clip.Job, error) {
	query := `
		UPDATE clip_jobs
		SET status = $1,
		    worker_id = $2,
		    expires_at = NOW() + $3 * INTERVAL '1 second'
		WHERE job_id = $4
		  AND status = $5
		RETURNING job_id, source_url, start_sec, end_sec, format_id, resolution,
		          status, progress, stage, error_code, error_message, object_key,
		          worker_id, created_at, expires_at
	`

	var job clip.Job
	err := s.db.GetContext(ctx, &job, query,
		clip.StatusWorking, workerID, s.retention.Seconds(), jobID, clip.StatusQueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, clip.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)

	return &job, nil
}

// UpdateProgress writes a progress milestone for a working job. Rows in a
// terminal state are never touched; the state machine only moves forward.
func (s *Storage) UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error {
	query := `
		UPDATE clip_jobs
		SET progress = $1,
		    stage = $2,
		    expires_at = NOW() + $3 * INTERVAL '1 second'
		WHERE job_id = $4
		  AND status = $5
	`

	_, err := s.db.ExecContext(ctx, query, progress, stage, s.retention.Seconds(), jobID, clip.StatusWorking)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	return nil
}

// MarkDone transitions a working job to done with its object key.
func (s *Storage) MarkDone(ctx context.Context, jobID, objectKey string) error {
	query := `
		UPDATE clip_jobs
		SET status = $1,
		    progress = 100,
		    stage = 'done',
		    object_key = $2,
		    expires_at = NOW() + $3 * INTERVAL '1 second'
		WHERE job_id = $4
		  AND status = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		clip.StatusDone, objectKey, s.retention.Seconds(), jobID, clip.StatusWorking)
	if err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		s.logger.Warn("Done write affected no rows - job not in working state",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// MarkError transitions a working job to error with a classified code and
// a truncated message.
func (s *Storage) MarkError(ctx context.Context, jobID string, code clip.ErrorCode, message string) error {
	query := `
		UPDATE clip_jobs
		SET status = $1,
		    stage = 'error',
		    error_code = $2,
		    error_message = $3,
		    expires_at = NOW() + $4 * INTERVAL '1 second'
		WHERE job_id = $5
		  AND status = $6
	`

	_, err := s.db.ExecContext(ctx, query,
		clip.StatusError, string(code), clip.TruncateMessage(message),
		s.retention.Seconds(), jobID, clip.StatusWorking)
	if err != nil {
		return fmt.Errorf("failed to mark job error: %w", err)
	}

	s.logger.Info("Job marked as error",
		slog.String("job_id", jobID),
		slog.String("code", string(code)),
	)

	return nil
}

// ReleaseJob hands an interrupted working job back to the queue so it can
// be claimed again after the broker redelivers it. Only shutdown uses this;
// jobs that ran to any outcome never move backwards.
func (s *Storage) ReleaseJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE clip_jobs
		SET status = $1,
		    worker_id = NULL,
		    progress = 0,
		    stage = 'queued',
		    expires_at = NOW() + $2 * INTERVAL '1 second'
		WHERE job_id = $3
		  AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		clip.StatusQueued, s.retention.Seconds(), jobID, clip.StatusWorking)
	if err != nil {
		return fmt.Errorf("failed to release job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		s.logger.Warn("Release affected no rows - job not in working state",
			slog.String("job_id", jobID),
		)
		return nil
	}

	s.logger.Info("Job released back to queue",
		slog.String("job_id", jobID),
	)

	return nil
}

// PurgeExpired deletes terminal jobs past their retention window and
// returns the object keys of the deleted rows so their stored clips can
// be removed as well.
func (s *Storage) PurgeExpired(ctx context.Context) ([]string, error) {
	query := `
		DELETE FROM clip_jobs
		WHERE expires_at < NOW()
		  AND status IN ($1, $2)
		RETURNING object_key
	`

	var keys []sql.NullString
	err := s.db.SelectContext(ctx, &keys, query, clip.StatusDone, clip.StatusError)
	if err != nil {
		return nil, fmt.Errorf("failed to purge expired jobs: %w", err)
	}

	var objectKeys []string
	for _, key := range keys {
		if key.Valid && key.String != "" {
			objectKeys = append(objectKeys, key.String)
		}
	}

	if len(keys) > 0 {
		s.logger.Info("Purged expired jobs",
			slog.Int("rows", len(keys)),
			slog.Int("objects", len(objectKeys)),
		)
	}

	return objectKeys, nil
}
