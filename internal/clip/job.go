package clip

import (
	"fmt"
	"net/url"
	"time"
)

// Job status constants
const (
	StatusQueued  = "queued"
	StatusWorking = "working"
	StatusDone    = "done"
	StatusError   = "error"
)

// Job is one clip request. It is created by the API service, claimed and
// mutated by exactly one worker, and polled read-only by clients until it
// reaches a terminal status (done or error).
type Job struct {
	JobID        string    `db:"job_id"`
	SourceURL    string    `db:"source_url"`
	StartSec     float64   `db:"start_sec"`
	EndSec       float64   `db:"end_sec"`
	FormatID     string    `db:"format_id"`
	Resolution   string    `db:"resolution"`
	Status       string    `db:"status"`
	Progress     int       `db:"progress"`
	Stage        string    `db:"stage"`
	ErrorCode    string    `db:"error_code"`
	ErrorMessage string    `db:"error_message"`
	ObjectKey    string    `db:"object_key"`
	WorkerID     string    `db:"worker_id"`
	CreatedAt    time.Time `db:"created_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Duration returns the requested clip length.
func (j *Job) Duration() time.Duration {
	return time.Duration((j.EndSec - j.StartSec) * float64(time.Second))
}

// Terminal reports whether the job has reached a state from which no
// further transition occurs.
func (j *Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

// ValidateRequest checks a clip request before it is allowed into the
// queue. Duration bounds and offset ordering are enforced here, not in the
// pipeline.
func ValidateRequest(rawURL string, startSec, endSec float64, maxDuration time.Duration) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute", ErrInvalidRequest)
	}

	if startSec < 0 {
		return fmt.Errorf("%w: start must be >= 0", ErrInvalidRequest)
	}

	if endSec <= startSec {
		return fmt.Errorf("%w: end must be greater than start", ErrInvalidRequest)
	}

	clipLen := time.Duration((endSec - startSec) * float64(time.Second))
	if maxDuration > 0 && clipLen > maxDuration {
		return fmt.Errorf("%w: clip duration %s exceeds maximum %s", ErrInvalidRequest, clipLen, maxDuration)
	}

	return nil
}
