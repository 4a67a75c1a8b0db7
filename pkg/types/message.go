package types

import (
	"database/sql/driver"
	"encoding/json"
)

type MessageRole string

const (
	ROLE_USER      MessageRole = "user"
	ROLE_ASSISTANT MessageRole = "assistant"
	ROLE_SYSTEM    MessageRole = "system"
	ROLE_TOOL      MessageRole = "tool"
)

type Message struct {
	ID        string      `json:"id" db:"id"`
	SessionID string      `json:"session_id" db:"session_id"`
	UserID    string      `json:"user_id" db:"user_id"`
	Role      MessageRole `json:"role" db:"role"`
	Content   string      `json:"content" db:"content"`
	Metadata  MessageMeta `json:"metadata" db:"metadata"`
	CreatedAt int64       `json:"created_at" db:"created_at"`
}

// MessageMeta is stored as a json column next to the message text.
type MessageMeta struct {
	ReferenceURLs     []string        `json:"reference_urls,omitempty"`
	UploadedImageURLs []string        `json:"uploaded_image_urls,omitempty"`
	GeneratedURLs     []string        `json:"generated_urls,omitempty"`
	AssetIDs          []string        `json:"asset_ids,omitempty"`
	ToolCalls         []ToolCallTrace `json:"tool_calls,omitempty"`
	TaskType          string          `json:"task_type,omitempty"`
	IsError           bool            `json:"is_error,omitempty"`
	Synthetic         bool            `json:"synthetic,omitempty"`
}

type ToolCallTrace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Success   bool   `json:"success"`
}

func (m MessageMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MessageMeta) Scan(src any) error {
	return scanJSON(src, m, "MessageMeta")
}

func (m *Message) IsUser() bool      { return m.Role == ROLE_USER }
func (m *Message) IsAssistant() bool { return m.Role == ROLE_ASSISTANT }
