package types

import (
	"context"
	"time"
)

type ToolChoice string

const (
	TOOL_CHOICE_AUTO     ToolChoice = "auto"
	TOOL_CHOICE_REQUIRED ToolChoice = "required"
	TOOL_CHOICE_NONE     ToolChoice = "none"
)

type ChatPartType string

const (
	PART_TEXT  ChatPartType = "text"
	PART_IMAGE ChatPartType = "image_url"
)

type ChatMessagePart struct {
	Type     ChatPartType `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL string       `json:"image_url,omitempty"`
}

// LLMMessage is the vendor-agnostic transcript entry sent to the chat model.
type LLMMessage struct {
	Role       MessageRole       `json:"role"`
	Content    string            `json:"content"`
	Parts      []ChatMessagePart `json:"parts,omitempty"`
	ToolCalls  []ToolCall        `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
}

type ToolCall struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// StreamChunk is one delta of a streaming completion. Exactly one of Text or
// ToolCall is set, except for the terminal chunk which carries FinishReason.
type StreamChunk struct {
	Text         string
	ToolCall     *ToolCallDelta
	FinishReason string
}

type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// StudioContext carries the identity of the request through tool handlers.
type StudioContext struct {
	context.Context

	UserID    string
	SessionID string
	Lang      string
}

func NewStudioContext(ctx context.Context, userID, sessionID, lang string) *StudioContext {
	return &StudioContext{Context: ctx, UserID: userID, SessionID: sessionID, Lang: lang}
}

func (sc *StudioContext) WithTimeout(timeout time.Duration) (*StudioContext, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(sc.Context, timeout)
	n := *sc
	n.Context = ctx
	return &n, cancel
}

// Detached returns a copy that survives the caller's cancellation, for
// background productions that outlive the request.
func (sc *StudioContext) Detached() *StudioContext {
	n := *sc
	n.Context = context.WithoutCancel(sc.Context)
	return &n
}
