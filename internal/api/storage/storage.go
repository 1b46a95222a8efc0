package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tdhoang/clipsvc/internal/clip"
	"github.com/tdhoang/clipsvc/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *clip.Job) error {
	query := `
		INSERT INTO clip_jobs (
			job_id, source_url, start_sec, end_sec,
			format_id, resolution, status, progress,
			stage, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.SourceURL,
		job.StartSec,
		job.EndSec,
		job.FormatID,
		job.Resolution,
		job.Status,
		job.Progress,
		job.Stage,
		job.CreatedAt,
		job.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create clip job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*clip.Job, error) {
	var job clip.Job
	query := `
		SELECT
			job_id, source_url, start_sec, end_sec,
			format_id, resolution, status, progress,
			stage, error_code, error_message, object_key,
			worker_id, created_at, expires_at
		FROM clip_jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clip.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get clip job: %w", err)
	}

	return &job, nil
}

// CountActive counts jobs still moving through the pipeline. The intake
// backpressure check compares this against the configured ceiling.
func (s *Storage) CountActive(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM clip_jobs WHERE status IN ($1, $2)`

	err := s.db.GetContext(ctx, &count, query, clip.StatusQueued, clip.StatusWorking)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}

	return count, nil
}

type ClipFilter struct {
	Status   string
	PageSize int
	Cursor   *ClipCursor
}

type ClipCursor struct {
	CreatedAt time.Time
	JobID     string
}

func (s *Storage) ListJobs(ctx context.Context, filter ClipFilter) ([]clip.Job, error) {
	query := `
        SELECT
            job_id, source_url, start_sec, end_sec,
            format_id, resolution, status, progress,
            stage, error_code, error_message, object_key,
            worker_id, created_at, expires_at
        FROM clip_jobs
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []clip.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clip jobs: %w", err)
	}

	return jobs, nil
}
