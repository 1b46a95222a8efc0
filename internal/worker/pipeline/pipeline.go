package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/tdhoang/clipsvc/internal/clip"
)

// statusWriteTimeout bounds terminal status writes. Terminal writes run on
// a context detached from the job deadline: a job that exhausted its
// wall-clock budget must still have its error persisted, or the row would
// sit in working forever.
const statusWriteTimeout = 10 * time.Second

// StatusWriter is the job-state-store surface the pipeline writes through.
// Write failures are logged and swallowed by the pipeline; a job's actual
// outcome is never lost because a status write failed.
type StatusWriter interface {
	UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error
	MarkDone(ctx context.Context, jobID, objectKey string) error
	MarkError(ctx context.Context, jobID string, code clip.ErrorCode, message string) error
}

// Pipeline sequences download, rotation analysis, trim, and upload for one
// job, enforcing the forward-only state machine.
type Pipeline struct {
	downloader     *Downloader
	prober         MediaProber
	trimmer        *Trimmer
	uploader       *Uploader
	status         StatusWriter
	workRoot       string
	cookieFile     string
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// Config holds pipeline assembly parameters.
type Config struct {
	Downloader     *Downloader
	Prober         MediaProber
	Trimmer        *Trimmer
	Uploader       *Uploader
	Status         StatusWriter
	WorkRoot       string
	CookieFile     string
	AttemptTimeout time.Duration
	Logger         *slog.Logger
}

func New(cfg *Config) *Pipeline {
	workRoot := cfg.WorkRoot
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	return &Pipeline{
		downloader:     cfg.Downloader,
		prober:         cfg.Prober,
		trimmer:        cfg.Trimmer,
		uploader:       cfg.Uploader,
		status:         cfg.Status,
		workRoot:       workRoot,
		cookieFile:     cfg.CookieFile,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         cfg.Logger,
	}
}

// Run executes the full pipeline for an already-claimed job. It writes the
// terminal outcome (done or error) to the state store before returning,
// with one exception: when worker shutdown cancels the context mid-stage,
// no terminal state is written and the returned error wraps
// context.Canceled so the caller can release the claim for redelivery.
func (p *Pipeline) Run(ctx context.Context, job *clip.Job) error {
	workDir, err := os.MkdirTemp(p.workRoot, fmt.Sprintf("clip_%s_%s_", job.JobID, shortuuid.New()[:8]))
	if err != nil {
		wrapped := clip.NewPipelineError(clip.ErrCodeDownloadUnknown,
			fmt.Errorf("failed to create working directory: %w", err))
		p.fail(ctx, job.JobID, wrapped)
		return wrapped
	}
	// The working directory is private to this execution and must be gone
	// on every exit path, success and failure alike.
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			p.logger.Warn("Failed to remove working directory",
				slog.String("job_id", job.JobID),
				slog.String("dir", workDir),
				slog.String("error", err.Error()),
			)
		}
	}()

	platform := clip.DetectPlatform(job.SourceURL)
	selector := clip.ResolveFormat(platform, job.Resolution, job.FormatID)
	configs := clip.BuildConfigs(platform, clip.BuildOptions{
		CookieOverride: p.cookieFile,
		AttemptTimeout: p.attemptTimeout,
		TempDir:        workDir,
	})

	p.logger.Info("Pipeline started",
		slog.String("job_id", job.JobID),
		slog.String("platform", string(platform)),
		slog.String("selector", selector),
		slog.Int("configs", len(configs)),
	)

	p.writeProgress(ctx, job.JobID, 10, "downloading")
	asset, err := p.downloader.Fetch(ctx, job.SourceURL, selector, configs, workDir)
	if err != nil {
		return p.stageFailed(ctx, job.JobID, err)
	}

	info, err := p.prober.Inspect(ctx, asset.Path)
	if err != nil {
		// The asset never reached the trim stage; report this as a download
		// problem so operators look at the extractor output, not ffmpeg.
		wrapped := clip.NewPipelineError(clip.ErrCodeDownloadUnknown,
			fmt.Errorf("downloaded asset failed inspection: %w", err))
		return p.stageFailed(ctx, job.JobID, wrapped)
	}
	analysis := AnalyzeRotation(info)
	if analysis.Transform != TransformNone {
		p.logger.Info("Rotation correction required",
			slog.String("job_id", job.JobID),
			slog.Int("degrees", analysis.Degrees),
			slog.String("transform", string(analysis.Transform)),
		)
	}
	if analysis.LikelyMobile {
		p.logger.Debug("Asset looks mobile-recorded",
			slog.String("job_id", job.JobID),
		)
	}

	p.writeProgress(ctx, job.JobID, 50, "trimming")
	outPath := filepath.Join(workDir, "clip.mp4")
	if err := p.trimmer.Cut(ctx, asset.Path, job.StartSec, job.EndSec, analysis.Transform, outPath); err != nil {
		return p.stageFailed(ctx, job.JobID, err)
	}

	p.writeProgress(ctx, job.JobID, 80, "uploading")
	key, err := p.uploader.Store(ctx, job.JobID, outPath)
	if err != nil {
		return p.stageFailed(ctx, job.JobID, err)
	}

	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancelWrite()
	if err := p.status.MarkDone(writeCtx, job.JobID, key); err != nil {
		p.logger.Error("Failed to write terminal done status",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	p.logger.Info("Pipeline completed",
		slog.String("job_id", job.JobID),
		slog.String("object_key", key),
	)
	return nil
}

func (p *Pipeline) writeProgress(ctx context.Context, jobID string, progress int, stage string) {
	if err := p.status.UpdateProgress(ctx, jobID, progress, stage); err != nil {
		p.logger.Warn("Failed to write progress",
			slog.String("job_id", jobID),
			slog.Int("progress", progress),
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
	}
}

// stageFailed handles a stage error. A cancellation from worker shutdown
// is not a job outcome: the error propagates untouched so the caller can
// release the claim and requeue. Everything else is terminal and persisted.
func (p *Pipeline) stageFailed(ctx context.Context, jobID string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		p.logger.Info("Job interrupted by shutdown",
			slog.String("job_id", jobID),
		)
		return fmt.Errorf("job interrupted: %w", context.Canceled)
	}
	p.fail(ctx, jobID, err)
	return err
}

func (p *Pipeline) fail(ctx context.Context, jobID string, err error) {
	code := clip.CodeOf(err)
	message := clip.TruncateMessage(err.Error())

	// Detached from the job deadline: the write must outlive the timeout
	// that produced the error being recorded.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if writeErr := p.status.MarkError(writeCtx, jobID, code, message); writeErr != nil {
		p.logger.Error("Failed to write terminal error status",
			slog.String("job_id", jobID),
			slog.String("code", string(code)),
			slog.String("error", writeErr.Error()),
		)
	}

	p.logger.Error("Pipeline failed",
		slog.String("job_id", jobID),
		slog.String("code", string(code)),
		slog.String("error", message),
	)
}
