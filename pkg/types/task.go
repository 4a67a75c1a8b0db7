package types

type TaskStatus string

const (
	TASK_PENDING     TaskStatus = "pending"
	TASK_IN_PROGRESS TaskStatus = "in_progress"
	TASK_COMPLETED   TaskStatus = "completed"
	TASK_FAILED      TaskStatus = "failed"
	TASK_CANCELLED   TaskStatus = "cancelled"
)

const (
	TASK_TYPE_ROADMAP = "roadmap"
	TASK_TYPE_STEP    = "step"
)

type Task struct {
	ID           string     `json:"id" db:"id"`
	SessionID    string     `json:"session_id" db:"session_id"`
	UserID       string     `json:"user_id" db:"user_id"`
	Type         string     `json:"type" db:"task_type"`
	Status       TaskStatus `json:"status" db:"status"`
	Priority     int        `json:"priority" db:"priority"`
	ParentID     string     `json:"parent_id,omitempty" db:"parent_id"`
	Title        string     `json:"title" db:"title"`
	InputData    JSONMap    `json:"input_data" db:"input_data"`
	OutputData   JSONMap    `json:"output_data" db:"output_data"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    int64      `json:"created_at" db:"created_at"`
	UpdatedAt    int64      `json:"updated_at" db:"updated_at"`
	StartedAt    int64      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  int64      `json:"completed_at,omitempty" db:"completed_at"`
}

type RoadmapProgress struct {
	RoadmapID  string `json:"roadmap_id"`
	Goal       string `json:"goal"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	InProgress int    `json:"in_progress"`
	Pending    int    `json:"pending"`
	Percent    int    `json:"percent"`
	IsComplete bool   `json:"is_complete"`
	HasFailure bool   `json:"has_failures"`
	Steps      []Task `json:"steps,omitempty"`
}
