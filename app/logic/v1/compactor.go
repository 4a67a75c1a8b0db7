package v1

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
)

const compactionPrompt = `You compress the earlier part of a creative production chat.
Rules:
- Preserve every parameter the user specified verbatim: durations, sizes, aspect ratios, resolutions, model names, styles, counts.
- List the entities that were created with their @tags.
- List the URLs of media that was produced successfully.
- Omit failures, errors, retries and status notices.
Reply with the compressed notes only.`

// COMPACTION_WARNING prefixes the synthetic summary message.
const COMPACTION_WARNING = "[Summary of the earlier conversation. Parameters in it are historical: a new request must state its own parameters and must not reuse these implicitly.]"

// transient lines that only pollute the context
var compactionNoise = []string{
	"video generation started",
	"video üretimi başladı",
	"generation failed",
	"failed, try again",
	"tekrar deneyin",
	"please try again",
	"unexpected system error",
	"beklenmeyen bir sistem hatası",
	"too many requests",
	"reply stopped",
	"yanıt durduruldu",
}

// compactionTokenBudget caps the transcript handed to the summarizer.
const compactionTokenBudget = 6000

type Compactor struct {
	model     ai.ChatModel
	threshold int
	keep      int
	fallback  int
}

func NewCompactor(model ai.ChatModel, cfg core.StudioConfig) *Compactor {
	return &Compactor{
		model:     model,
		threshold: cfg.CompactionThreshold,
		keep:      cfg.CompactionKeep,
		fallback:  cfg.CompactionFallback,
	}
}

func (c *Compactor) Needed(history []*types.Message) bool {
	return len(history) > c.threshold
}

func isCompactionNoise(content string) bool {
	lower := strings.ToLower(content)
	for _, n := range compactionNoise {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// Compact returns the transcript for the model. Short histories pass through
// unchanged; long ones become one summary message plus the recent tail.
func (c *Compactor) Compact(ctx context.Context, history []*types.Message) []types.LLMMessage {
	if !c.Needed(history) {
		return toLLMMessages(history)
	}

	recent := history[len(history)-c.keep:]
	var older []*types.Message
	for _, m := range history[:len(history)-c.keep] {
		if m.Metadata.IsError || isCompactionNoise(m.Content) {
			continue
		}
		older = append(older, m)
	}
	if len(older) == 0 {
		return toLLMMessages(recent)
	}

	summary, err := ai.CompleteText(ctx, c.model, compactionPrompt, c.transcript(older))
	if err != nil {
		slog.Warn("conversation compaction failed, keeping recent messages", slog.Any("error", err))
		return toLLMMessages(history[max(0, len(history)-c.fallback):])
	}

	res := []types.LLMMessage{{
		Role:    types.ROLE_SYSTEM,
		Content: COMPACTION_WARNING + "\n" + summary,
	}}
	return append(res, toLLMMessages(recent)...)
}

func (c *Compactor) transcript(msgs []*types.Message) string {
	lines := make([]string, 0, len(msgs))
	size := 0
	for _, m := range msgs {
		line := string(m.Role) + ": " + m.Content
		lines = append(lines, line)
		size += len(line)
	}

	// only pay for tokenization when the text is plausibly over budget
	if size > compactionTokenBudget*3 {
		for len(lines) > 1 {
			n, err := ai.NumTokens([]types.LLMMessage{{Content: strings.Join(lines, "\n")}}, c.modelName())
			if err != nil || n <= compactionTokenBudget {
				break
			}
			lines = lines[1:]
		}
	}
	return strings.Join(lines, "\n")
}

func (c *Compactor) modelName() string {
	if c.model == nil {
		return ""
	}
	return c.model.ModelName()
}

// toLLMMessages converts stored messages. Tool traces are not replayed; the
// generated urls already live in the assistant text.
func toLLMMessages(history []*types.Message) []types.LLMMessage {
	res := make([]types.LLMMessage, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := m.Role
		if role == types.ROLE_TOOL {
			continue
		}
		res = append(res, types.LLMMessage{Role: role, Content: m.Content})
	}
	return res
}
