package srv

import (
	"errors"
	"log/slog"
	"os"
	"strconv"

	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/ai/jina"
	"github.com/atelier-studio/atelier/pkg/ai/openai"
	"github.com/atelier-studio/atelier/pkg/types"
)

// AIConfig describes the OpenAI compatible endpoint used for every model role.
type AIConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`

	ChatModel      string `toml:"chat_model"`
	CheapModel     string `toml:"cheap_model"`
	VisionModel    string `toml:"vision_model"`
	EmbeddingModel string `toml:"embedding_model"`
	EmbeddingDims  int    `toml:"embedding_dimensions"`

	// MaxContextTokens bounds the transcript before the oldest turns are dropped.
	MaxContextTokens int `toml:"max_context_tokens"`

	Jina Jina `toml:"jina"`
}

type Jina struct {
	Token       string `toml:"token"`
	ApiEndpoint string `toml:"api_endpoint"`
}

func (c *AIConfig) FromENV() {
	c.BaseURL = os.Getenv("ATELIER_AI_BASE_URL")
	c.Token = os.Getenv("ATELIER_AI_TOKEN")
	c.ChatModel = os.Getenv("ATELIER_AI_CHAT_MODEL")
	c.CheapModel = os.Getenv("ATELIER_AI_CHEAP_MODEL")
	c.VisionModel = os.Getenv("ATELIER_AI_VISION_MODEL")
	c.EmbeddingModel = os.Getenv("ATELIER_AI_EMBEDDING_MODEL")
	if dims, err := strconv.Atoi(os.Getenv("ATELIER_AI_EMBEDDING_DIMENSIONS")); err == nil {
		c.EmbeddingDims = dims
	}
	c.Jina.Token = os.Getenv("ATELIER_JINA_TOKEN")
}

type AI struct {
	chat     ai.ChatModel
	cheap    ai.ChatModel
	vision   ai.ChatModel
	embedder ai.Embedder
	reader   ai.Reader

	maxContextTokens int
}

func SetupAI(cfg AIConfig) (*AI, error) {
	if cfg.Token == "" {
		return nil, errors.New("ai token is required")
	}
	a := &AI{
		chat:             openai.New(cfg.Token, cfg.BaseURL, cfg.ChatModel),
		maxContextTokens: cfg.MaxContextTokens,
	}
	a.cheap = a.chat
	if cfg.CheapModel != "" {
		a.cheap = openai.New(cfg.Token, cfg.BaseURL, cfg.CheapModel)
	}
	a.vision = a.chat
	if cfg.VisionModel != "" {
		a.vision = openai.New(cfg.Token, cfg.BaseURL, cfg.VisionModel)
	}
	if cfg.EmbeddingModel != "" {
		a.embedder = openai.NewEmbedder(cfg.Token, cfg.BaseURL, cfg.EmbeddingModel, cfg.EmbeddingDims)
	}
	a.reader = jina.New(cfg.Jina.Token, cfg.Jina.ApiEndpoint)
	if a.maxContextTokens <= 0 {
		a.maxContextTokens = 80000
	}
	return a, nil
}

// NewAI assembles the roles from already built models, mostly for tests.
func NewAI(chat, cheap, vision ai.ChatModel, embedder ai.Embedder, reader ai.Reader) *AI {
	return &AI{chat: chat, cheap: cheap, vision: vision, embedder: embedder, reader: reader, maxContextTokens: 80000}
}

func ApplyAI(cfg AIConfig) ApplyFunc {
	return func(s *Srv) {
		a, err := SetupAI(cfg)
		if err != nil {
			slog.Warn("ai services disabled", slog.Any("error", err))
			return
		}
		s.ai = a
	}
}

func ApplyAIDriver(a *AI) ApplyFunc {
	return func(s *Srv) {
		s.ai = a
	}
}

// Chat is the tool-calling model that drives every turn.
func (s *AI) Chat() ai.ChatModel {
	if s == nil {
		return nil
	}
	return s.chat
}

// Cheap serves summaries, translation and prompt enrichment.
func (s *AI) Cheap() ai.ChatModel {
	if s == nil {
		return nil
	}
	if s.cheap == nil {
		return s.chat
	}
	return s.cheap
}

func (s *AI) Vision() ai.ChatModel {
	if s == nil {
		return nil
	}
	if s.vision == nil {
		return s.chat
	}
	return s.vision
}

// Embedder is nil when no embedding model is configured.
func (s *AI) Embedder() ai.Embedder {
	if s == nil {
		return nil
	}
	return s.embedder
}

func (s *AI) Reader() ai.Reader {
	if s == nil {
		return nil
	}
	return s.reader
}

func (s *AI) MsgIsOverLimit(msgs []types.LLMMessage) bool {
	if s == nil || s.chat == nil || s.maxContextTokens <= 0 {
		return false
	}
	tokenNum, err := ai.NumTokens(msgs, s.chat.ModelName())
	if err != nil {
		slog.Error("Failed to tik request token", slog.String("error", err.Error()))
		return false
	}
	return tokenNum > s.maxContextTokens
}

func (s *AI) Status() map[string]any {
	return map[string]any{
		"chat_available":   s.chat != nil,
		"embed_available":  s.embedder != nil,
		"vision_available": s.vision != nil,
		"reader_available": s.reader != nil,
	}
}
