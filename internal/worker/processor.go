package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tdhoang/clipsvc/internal/clip"
)

// releaseTimeout bounds the claim-release write during shutdown, when the
// worker's own context is already canceled.
const releaseTimeout = 10 * time.Second

// processJob claims one job and drives it through the pipeline under the
// configured wall-clock timeout. A nil return means the delivery should be
// acked: the job reached a terminal state, or can never be processed (for
// example it was claimed by another consumer of a redelivered message).
// Shutdown interruptions release the claim and requeue the delivery.
func (w *Worker) processJob(ctx context.Context, msg *jobMessage) error {
	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, clip.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		// Database error before any state change - transient, safe to requeue
		return &retryableError{err: fmt.Errorf("failed to claim job: %w", err)}
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	start := time.Now()
	if err := w.pipeline.Run(jobCtx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			// Worker shutdown interrupted the job before any outcome. Hand
			// the claim back and requeue so another worker picks it up.
			releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer releaseCancel()
			if relErr := w.storage.ReleaseJob(releaseCtx, job.JobID); relErr != nil {
				w.logger.Error("Failed to release interrupted job",
					slog.String("job_id", job.JobID),
					slog.String("error", relErr.Error()),
				)
			}
			return &retryableError{err: fmt.Errorf("job interrupted by shutdown: %w", err)}
		}

		// The pipeline already wrote the terminal error state; the message
		// is acked so the job is never retried past a terminal outcome.
		w.logger.Warn("Job finished with error",
			slog.String("job_id", job.JobID),
			slog.String("code", string(clip.CodeOf(err))),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil
	}

	w.logger.Info("Job finished successfully",
		slog.String("job_id", job.JobID),
		slog.Duration("elapsed", time.Since(start)),
	)

	return nil
}

// janitorLoop periodically removes expired terminal jobs and their stored
// clips.
func (w *Worker) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(w.janitorInterval)
	defer ticker.Stop()

	w.logger.Info("Janitor started",
		slog.Duration("interval", w.janitorInterval),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Janitor stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Janitor stopped")
			return

		case <-ticker.C:
			w.runJanitor(ctx)
		}
	}
}

func (w *Worker) runJanitor(ctx context.Context) {
	keys, err := w.storage.PurgeExpired(ctx)
	if err != nil {
		w.logger.Error("Janitor purge failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if w.objectStore == nil {
		return
	}

	for _, key := range keys {
		if err := w.objectStore.Remove(ctx, key); err != nil {
			// The row is gone but the object lingers until the next pass of
			// a bucket lifecycle rule; log and move on.
			w.logger.Warn("Failed to remove expired clip object",
				slog.String("object_key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}
