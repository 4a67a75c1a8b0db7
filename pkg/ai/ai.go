package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/atelier-studio/atelier/pkg/types"
)

const (
	MODEL_BASE_LANGUAGE_EN = "en"
)

// ToolSpec is one function definition offered to the chat model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

type ChatRequest struct {
	System      string
	Messages    []types.LLMMessage
	Tools       []ToolSpec
	ToolChoice  types.ToolChoice
	Temperature float32
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ResponseChoice is one element of a streaming completion. The channel is
// closed after the terminal chunk or after a choice carrying Error.
type ResponseChoice struct {
	Chunk types.StreamChunk
	Usage *Usage
	Model string
	Error error
}

type Completion struct {
	Content      string
	ToolCalls    []types.ToolCall
	FinishReason string
	Usage        Usage
}

type ChatModel interface {
	ModelName() string
	Stream(ctx context.Context, req ChatRequest) (<-chan ResponseChoice, error)
	Complete(ctx context.Context, req ChatRequest) (*Completion, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type ReaderResult struct {
	Warning     string `json:"warning"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Url         string `json:"url"`
	Content     string `json:"content"`
	Usage       struct {
		Tokens int `json:"tokens"`
	} `json:"usage"`
}

type Reader interface {
	Reader(ctx context.Context, endpoint string) (*ReaderResult, error)
}

var ErrEmptyResponse = errors.New("ai: empty response")

// CompleteText runs a single system+user exchange and returns the trimmed text.
func CompleteText(ctx context.Context, m ChatModel, system, user string) (string, error) {
	if m == nil {
		return "", errors.New("ai: model not configured")
	}
	resp, err := m.Complete(ctx, ChatRequest{
		System: system,
		Messages: []types.LLMMessage{
			{Role: types.ROLE_USER, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ToolCallAccumulator merges streamed tool-call deltas by index.
type ToolCallAccumulator struct {
	mu    sync.Mutex
	calls map[int]*types.ToolCall
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{calls: map[int]*types.ToolCall{}}
}

func (a *ToolCallAccumulator) Add(d types.ToolCallDelta) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.calls[d.Index]
	if !ok {
		c = &types.ToolCall{Index: d.Index}
		a.calls[d.Index] = c
	}
	if d.ID != "" {
		c.ID = d.ID
	}
	c.Name += d.Name
	c.Arguments += d.Arguments
}

func (a *ToolCallAccumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// Calls returns the accumulated calls ordered by index. Calls without an id
// get a synthetic one so every call can be answered by a tool message.
func (a *ToolCallAccumulator) Calls() []types.ToolCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := make([]types.ToolCall, 0, len(a.calls))
	for _, c := range a.calls {
		v := *c
		if v.ID == "" {
			v.ID = fmt.Sprintf("call_%d", v.Index)
		}
		if strings.TrimSpace(v.Arguments) == "" {
			v.Arguments = "{}"
		}
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })
	return res
}

// NumTokens estimates the prompt size of messages with the cl100k encoding.
func NumTokens(messages []types.LLMMessage, model string) (numTokens int, err error) {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if tkm, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE); err != nil {
			return 0, fmt.Errorf("encoding for model: %w", err)
		}
	}

	const tokensPerMessage = 3
	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(tkm.Encode(message.Content, nil, nil))
		numTokens += len(tkm.Encode(string(message.Role), nil, nil))
		for _, p := range message.Parts {
			numTokens += len(tkm.Encode(p.Text, nil, nil))
		}
		for _, c := range message.ToolCalls {
			numTokens += len(tkm.Encode(c.Name+c.Arguments, nil, nil))
		}
	}
	numTokens += 3 // every reply is primed with <|start|>assistant<|message|>
	return numTokens, nil
}
