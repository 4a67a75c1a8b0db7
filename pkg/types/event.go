package types

import "time"

type EventType string

const (
	EVENT_PROGRESS            EventType = "progress"
	EVENT_COMPLETE            EventType = "complete"
	EVENT_ERROR               EventType = "error"
	EVENT_TOKEN               EventType = "token"
	EVENT_ASSETS              EventType = "assets"
	EVENT_VIDEOS              EventType = "videos"
	EVENT_ENTITIES            EventType = "entities"
	EVENT_GENERATION_START    EventType = "generation_start"
	EVENT_GENERATION_COMPLETE EventType = "generation_complete"
	EVENT_STATUS              EventType = "status"
	EVENT_DONE                EventType = "done"
)

// Event is one message on the progress bus.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	TaskType  string    `json:"task_type,omitempty"`
	Progress  *float64  `json:"progress,omitempty"`
	Message   string    `json:"message,omitempty"`
	Details   any       `json:"details,omitempty"`
	Result    any       `json:"result,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func NewEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now().UnixMilli()}
}

// Payload is the body written after "data:" on the streaming wire.
func (e Event) Payload() any {
	switch e.Type {
	case EVENT_PROGRESS:
		return ProgressPayload{TaskType: e.TaskType, Progress: derefFloat(e.Progress), Message: e.Message, Details: e.Details}
	case EVENT_COMPLETE:
		return CompletePayload{TaskType: e.TaskType, Result: e.Result}
	case EVENT_ERROR:
		return ErrorPayload{TaskType: e.TaskType, Message: e.Message}
	case EVENT_DONE:
		return struct{}{}
	}
	return e.Data
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

type ProgressPayload struct {
	TaskType string  `json:"task_type"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Details  any     `json:"details,omitempty"`
}

type CompletePayload struct {
	TaskType string `json:"task_type"`
	Result   any    `json:"result"`
}

type ErrorPayload struct {
	TaskType string `json:"task_type"`
	Message  string `json:"message"`
}

type GenerationStartItem struct {
	Type     AssetType `json:"type"`
	Prompt   string    `json:"prompt"`
	Duration int       `json:"duration,omitempty"`
}

type AssetEventItem struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

type VideoEventItem struct {
	URL          string `json:"url"`
	Prompt       string `json:"prompt"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type EntityEventItem struct {
	ID   string     `json:"id"`
	Tag  string     `json:"tag"`
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

type GenerationCompleteItem struct {
	Type AssetType `json:"type"`
}
