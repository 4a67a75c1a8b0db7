package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/safe"
	"github.com/atelier-studio/atelier/pkg/types"
)

const (
	NAME = "openai"
)

type Driver struct {
	client         *openai.Client
	model          string
	embeddingModel string
	dimensions     int
}

func NewClient(token, proxy string) *openai.Client {
	cfg := openai.DefaultConfig(token)
	if proxy != "" {
		cfg.BaseURL = proxy
	}

	return openai.NewClientWithConfig(cfg)
}

func New(token, proxy, model string) *Driver {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Driver{
		client: NewClient(token, proxy),
		model:  model,
	}
}

func NewEmbedder(token, proxy, model string, dimensions int) *Driver {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &Driver{
		client:         NewClient(token, proxy),
		embeddingModel: model,
		dimensions:     dimensions,
	}
}

func (s *Driver) ModelName() string {
	return s.model
}

func (s *Driver) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	slog.Debug("Embedding", slog.String("driver", NAME))
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(s.embeddingModel),
		Dimensions: s.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating embedding: %w", err)
	}
	return lo.Map(resp.Data, func(item openai.Embedding, _ int) []float32 {
		return item.Embedding
	}), nil
}

func (s *Driver) buildRequest(req ai.ChatRequest) openai.ChatCompletionRequest {
	r := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    ConvertMessages(req.System, req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		r.Tools = lo.Map(req.Tools, func(item ai.ToolSpec, _ int) openai.Tool {
			params := item.Parameters
			return openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        item.Name,
					Description: item.Description,
					Parameters:  &params,
				},
			}
		})
		if req.ToolChoice != "" {
			r.ToolChoice = string(req.ToolChoice)
		}
	}
	return r
}

// ConvertMessages maps the studio transcript onto the chat-completions wire format.
func ConvertMessages(system string, msgs []types.LLMMessage) []openai.ChatCompletionMessage {
	res := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		res = append(res, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		item := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		if len(m.Parts) > 0 {
			item.MultiContent = lo.Map(m.Parts, func(p types.ChatMessagePart, _ int) openai.ChatMessagePart {
				if p.Type == types.PART_IMAGE {
					return openai.ChatMessagePart{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: p.ImageURL, Detail: openai.ImageURLDetailAuto},
					}
				}
				return openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text}
			})
		} else {
			item.Content = m.Content
		}
		for _, c := range m.ToolCalls {
			item.ToolCalls = append(item.ToolCalls, openai.ToolCall{
				ID:   c.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      c.Name,
					Arguments: c.Arguments,
				},
			})
		}
		res = append(res, item)
	}
	return res
}

func (s *Driver) Complete(ctx context.Context, req ai.ChatRequest) (*ai.Completion, error) {
	slog.Debug("Complete", slog.String("driver", NAME), slog.String("model", s.model))
	resp, err := s.client.CreateChatCompletion(ctx, s.buildRequest(req))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ai.ErrEmptyResponse
	}

	choice := resp.Choices[0]
	res := &ai.Completion{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
	for i, v := range choice.Message.ToolCalls {
		res.ToolCalls = append(res.ToolCalls, types.ToolCall{
			Index:     i,
			ID:        v.ID,
			Name:      v.Function.Name,
			Arguments: v.Function.Arguments,
		})
	}
	return res, nil
}

func (s *Driver) Stream(ctx context.Context, req ai.ChatRequest) (<-chan ai.ResponseChoice, error) {
	r := s.buildRequest(req)
	r.Stream = true
	r.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	resp, err := s.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return nil, err
	}

	respChan := make(chan ai.ResponseChoice, 16)
	go safe.RunWithLog(func() {
		defer close(respChan)
		defer resp.Close()

		for {
			msg, err := resp.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				respChan <- ai.ResponseChoice{Error: err}
				return
			}

			if msg.Usage != nil {
				respChan <- ai.ResponseChoice{
					Usage: &ai.Usage{PromptTokens: msg.Usage.PromptTokens, CompletionTokens: msg.Usage.CompletionTokens},
					Model: msg.Model,
				}
			}

			for _, v := range msg.Choices {
				if v.Delta.Content != "" {
					respChan <- ai.ResponseChoice{Chunk: types.StreamChunk{Text: v.Delta.Content}}
				}
				for _, toolCall := range v.Delta.ToolCalls {
					var index int
					if toolCall.Index != nil {
						index = *toolCall.Index
					}
					respChan <- ai.ResponseChoice{Chunk: types.StreamChunk{ToolCall: &types.ToolCallDelta{
						Index:     index,
						ID:        toolCall.ID,
						Name:      toolCall.Function.Name,
						Arguments: toolCall.Function.Arguments,
					}}}
				}
				if v.FinishReason != "" {
					respChan <- ai.ResponseChoice{Chunk: types.StreamChunk{FinishReason: string(v.FinishReason)}}
				}
			}
		}
	}, "openai.Stream")

	return respChan, nil
}

var (
	_ ai.ChatModel = (*Driver)(nil)
	_ ai.Embedder  = (*Driver)(nil)
)
