package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tdhoang/clipsvc/internal/api/storage"
	"github.com/tdhoang/clipsvc/internal/clip"
)

// ClipStore is the job-state-store surface the API needs.
type ClipStore interface {
	CreateJob(ctx context.Context, job *clip.Job) error
	GetJobByID(ctx context.Context, jobID string) (*clip.Job, error)
	CountActive(ctx context.Context) (int, error)
	ListJobs(ctx context.Context, filter storage.ClipFilter) ([]clip.Job, error)
}

// JobPublisher dispatches a queued job id to the worker pool.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// URLSigner produces a time-bounded download reference for a stored clip.
type URLSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger          *slog.Logger
	Store           ClipStore
	Queue           JobPublisher
	Signer          URLSigner
	MaxClipDuration time.Duration
	MaxActiveJobs   int
	Retention       time.Duration
}

// ClipHandler handles clip-related HTTP requests
type ClipHandler struct {
	logger          *slog.Logger
	store           ClipStore
	queue           JobPublisher
	signer          URLSigner
	maxClipDuration time.Duration
	maxActiveJobs   int
	retention       time.Duration
}

// NewClipHandler creates a new ClipHandler instance
func NewClipHandler(deps *Dependencies) *ClipHandler {
	return &ClipHandler{
		logger:          deps.Logger,
		store:           deps.Store,
		queue:           deps.Queue,
		signer:          deps.Signer,
		maxClipDuration: deps.MaxClipDuration,
		maxActiveJobs:   deps.MaxActiveJobs,
		retention:       deps.Retention,
	}
}
