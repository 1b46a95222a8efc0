package dto

type CreateClipRequest struct {
	URL        string  `json:"url" binding:"required"`
	Start      float64 `json:"start"`
	End        float64 `json:"end" binding:"required"`
	FormatID   string  `json:"format_id"`
	Resolution string  `json:"resolution"`
}

type CreateClipResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type ClipDTO struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	Stage        string  `json:"stage,omitempty"`
	ErrorCode    string  `json:"error_code,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	ObjectKey    string  `json:"object_key,omitempty"`
	DownloadURL  string  `json:"download_url,omitempty"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	CreatedAt    string  `json:"created_at"`
	ExpiresAt    string  `json:"expires_at,omitempty"`
}

type ListClipsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListClipsResponse struct {
	Clips      []ClipDTO `json:"clips"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Error     string `json:"error"`
}
