package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tdhoang/clipsvc/internal/clip"
)

// ObjectStore is the object-storage surface the upload stage needs: a put
// with a content-disposition hint plus a time-bounded access reference.
type ObjectStore interface {
	Put(ctx context.Context, key, filePath, contentDisposition string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// Uploader pushes the trimmed artifact to object storage.
type Uploader struct {
	store  ObjectStore
	logger *slog.Logger
}

func NewUploader(store ObjectStore, logger *slog.Logger) *Uploader {
	return &Uploader{store: store, logger: logger}
}

// ObjectKey derives the deterministic storage key for a job's clip.
func ObjectKey(jobID string) string {
	return "clips/" + jobID + ".mp4"
}

// Store uploads the artifact under the job's deterministic key with an
// attachment disposition so browsers download rather than inline-play it.
func (u *Uploader) Store(ctx context.Context, jobID, filePath string) (string, error) {
	key := ObjectKey(jobID)
	disposition := fmt.Sprintf("attachment; filename=\"clip_%s.mp4\"", jobID)

	if err := u.store.Put(ctx, key, filePath, disposition); err != nil {
		return "", clip.NewPipelineError(clip.ErrCodeUploadFailed,
			fmt.Errorf("failed to upload clip: %w", err))
	}

	u.logger.Info("Clip uploaded",
		slog.String("job_id", jobID),
		slog.String("object_key", key),
	)
	return key, nil
}
