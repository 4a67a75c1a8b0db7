package types

import "encoding/json"

// BackgroundJob is a serializable long-running production.
type BackgroundJob struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Lang      string          `json:"lang,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt int64           `json:"created_at"`
}

const (
	JOB_VIDEO      = "video"
	JOB_LONG_VIDEO = "long_video"
)

// JobOutcome is what a finished job reports back to its session.
type JobOutcome struct {
	Message string
	Result  *ToolResult
}
