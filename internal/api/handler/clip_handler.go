package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tdhoang/clipsvc/internal/api/dto"
	"github.com/tdhoang/clipsvc/internal/api/storage"
	"github.com/tdhoang/clipsvc/internal/clip"
)

// CreateClip handles POST /api/v1/clips
// Validates the request, persists the queued job, and dispatches it.
func (h *ClipHandler) CreateClip(c *gin.Context) {
	var req dto.CreateClipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeValidationFailed),
			Error:     "invalid request body: " + err.Error(),
		})
		return
	}

	if err := clip.ValidateRequest(req.URL, req.Start, req.End, h.maxClipDuration); err != nil {
		h.logger.Warn("Clip request rejected",
			slog.String("url", req.URL),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeValidationFailed),
			Error:     err.Error(),
		})
		return
	}

	active, err := h.store.CountActive(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count active jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeDownloadUnknown),
			Error:     "failed to check queue capacity",
		})
		return
	}
	if active >= h.maxActiveJobs {
		h.logger.Warn("Queue over capacity",
			slog.Int("active", active),
			slog.Int("max", h.maxActiveJobs),
		)
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeQueueFull),
			Error:     "too many active jobs, try again later",
		})
		return
	}

	now := time.Now().UTC()
	job := clip.Job{
		JobID:      uuid.New().String(),
		SourceURL:  req.URL,
		StartSec:   req.Start,
		EndSec:     req.End,
		FormatID:   req.FormatID,
		Resolution: req.Resolution,
		Status:     clip.StatusQueued,
		Progress:   0,
		Stage:      "queued",
		CreatedAt:  now,
		ExpiresAt:  now.Add(h.retention),
	}

	if err := h.store.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeDownloadUnknown),
			Error:     "failed to create job",
		})
		return
	}

	if err := h.queue.PublishJob(c.Request.Context(), job.JobID); err != nil {
		// The row stays queued and is purged by the janitor once expired.
		h.logger.Error("Failed to dispatch job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeQueueFull),
			Error:     "failed to enqueue job, try again later",
		})
		return
	}

	h.logger.Info("Clip job accepted",
		slog.String("job_id", job.JobID),
		slog.String("url", job.SourceURL),
		slog.Float64("start", job.StartSec),
		slog.Float64("end", job.EndSec),
	)

	c.JSON(http.StatusAccepted, dto.CreateClipResponse{
		JobID:  job.JobID,
		Status: job.Status,
	})
}

// GetClip handles GET /api/v1/clips/:job_id
// Returns job status; for done jobs a presigned download URL is attached.
func (h *ClipHandler) GetClip(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeValidationFailed),
			Error:     "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, clip.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				ErrorCode: string(clip.ErrCodeValidationFailed),
				Error:     "job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeDownloadUnknown),
			Error:     "failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, h.toDTO(c, job))
}

// ListClips handles GET /api/v1/clips
// Lists jobs with optional status filtering and cursor pagination.
func (h *ClipHandler) ListClips(c *gin.Context) {
	var req dto.ListClipsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeValidationFailed),
			Error:     "invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeClipCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeValidationFailed),
			Error:     "invalid cursor",
		})
		return
	}

	filter := storage.ClipFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			ErrorCode: string(clip.ErrCodeDownloadUnknown),
			Error:     "failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	clips := make([]dto.ClipDTO, len(jobs))
	for i := range jobs {
		clips[i] = h.toDTO(c, &jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeClipCursor(&storage.ClipCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListClipsResponse{
		Clips:      clips,
		NextCursor: nextCursor,
	})
}

func (h *ClipHandler) toDTO(c *gin.Context, job *clip.Job) dto.ClipDTO {
	out := dto.ClipDTO{
		JobID:        job.JobID,
		Status:       job.Status,
		Progress:     job.Progress,
		Stage:        job.Stage,
		ErrorCode:    job.ErrorCode,
		ErrorMessage: job.ErrorMessage,
		ObjectKey:    job.ObjectKey,
		Start:        job.StartSec,
		End:          job.EndSec,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
	}
	if !job.ExpiresAt.IsZero() {
		out.ExpiresAt = job.ExpiresAt.Format(time.RFC3339)
	}

	if job.Status == clip.StatusDone && job.ObjectKey != "" {
		url, err := h.signer.PresignGet(c.Request.Context(), job.ObjectKey)
		if err != nil {
			// The poll response is still useful without the link; the
			// client retries and gets a fresh one.
			h.logger.Warn("Failed to presign download URL",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
		} else {
			out.DownloadURL = url
		}
	}

	return out
}
