package clip

import "errors"

// ErrorCode is the fixed failure taxonomy reported on terminal error jobs.
type ErrorCode string

const (
	ErrCodeDownloadAuthRequired ErrorCode = "DOWNLOAD_AUTH_REQUIRED"
	ErrCodeDownloadRateLimited  ErrorCode = "DOWNLOAD_RATE_LIMITED"
	ErrCodeDownloadUnavailable  ErrorCode = "DOWNLOAD_UNAVAILABLE"
	ErrCodeDownloadTimeout      ErrorCode = "DOWNLOAD_TIMEOUT"
	ErrCodeDownloadUnknown      ErrorCode = "DOWNLOAD_UNKNOWN"
	ErrCodeTrimFailed           ErrorCode = "TRIM_FAILED"
	ErrCodeUploadFailed         ErrorCode = "UPLOAD_FAILED"
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeQueueFull            ErrorCode = "QUEUE_FULL"
)

// MaxErrorMessageLen bounds the error_message field stored per job.
const MaxErrorMessageLen = 500

var errorCodes = map[ErrorCode]struct{}{
	ErrCodeDownloadAuthRequired: {},
	ErrCodeDownloadRateLimited:  {},
	ErrCodeDownloadUnavailable:  {},
	ErrCodeDownloadTimeout:      {},
	ErrCodeDownloadUnknown:      {},
	ErrCodeTrimFailed:           {},
	ErrCodeUploadFailed:         {},
	ErrCodeValidationFailed:     {},
	ErrCodeQueueFull:            {},
}

// Valid reports whether c is a member of the taxonomy.
func (c ErrorCode) Valid() bool {
	_, ok := errorCodes[c]
	return ok
}

var (
	// ErrJobNotFound is returned when a job cannot be found in the state store
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that's already owned
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in queued status")

	// ErrInvalidRequest wraps all intake validation failures
	ErrInvalidRequest = errors.New("invalid clip request")
)

// PipelineError attaches a taxonomy code to a stage failure so the worker
// can record it on the job before acking the message.
type PipelineError struct {
	Code ErrorCode
	Err  error
}

func (e *PipelineError) Error() string {
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError wraps err with a taxonomy code.
func NewPipelineError(code ErrorCode, err error) *PipelineError {
	return &PipelineError{Code: code, Err: err}
}

// CodeOf extracts the taxonomy code from err, falling back to
// DOWNLOAD_UNKNOWN for faults that escaped classification.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Code.Valid() {
		return pe.Code
	}
	return ErrCodeDownloadUnknown
}

// TruncateMessage bounds s to MaxErrorMessageLen for storage.
func TruncateMessage(s string) string {
	if len(s) <= MaxErrorMessageLen {
		return s
	}
	return s[:MaxErrorMessageLen]
}
