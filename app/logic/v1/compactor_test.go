package v1

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
)

var compactorCfg = core.StudioConfig{CompactionThreshold: 15, CompactionKeep: 5, CompactionFallback: 10}

func chatHistory(n int) []*types.Message {
	res := make([]*types.Message, 0, n)
	for i := 0; i < n; i++ {
		role := types.ROLE_USER
		if i%2 == 1 {
			role = types.ROLE_ASSISTANT
		}
		res = append(res, &types.Message{ID: fmt.Sprint(i), Role: role, Content: fmt.Sprintf("message %d", i)})
	}
	return res
}

func TestCompactShortHistoryPassesThrough(t *testing.T) {
	chat := &scriptedChat{complete: func(ai.ChatRequest) (string, error) {
		t.Fatal("summarizer must not run")
		return "", nil
	}}
	history := chatHistory(15)
	history = append(history, &types.Message{Role: types.ROLE_TOOL, Content: `{"success":true}`})

	// tool traces are dropped but do not count towards compaction
	out := NewCompactor(chat, compactorCfg).Compact(context.Background(), history[:15])
	require.Len(t, out, 15)
	assert.Equal(t, "message 0", out[0].Content)

	out = toLLMMessages(history)
	assert.Len(t, out, 15)
}

func TestCompactSummarizesOlderMessages(t *testing.T) {
	var transcript string
	chat := &scriptedChat{complete: func(req ai.ChatRequest) (string, error) {
		assert.Equal(t, compactionPrompt, req.System)
		transcript = req.Messages[0].Content
		return "user wants a 9:16 teaser, 8 seconds", nil
	}}
	history := chatHistory(20)
	history[2].Content = "❌ video generation failed: timeout"
	history[3].Metadata.IsError = true

	out := NewCompactor(chat, compactorCfg).Compact(context.Background(), history)
	require.Len(t, out, 6)
	assert.Equal(t, types.ROLE_SYSTEM, out[0].Role)
	assert.True(t, strings.HasPrefix(out[0].Content, COMPACTION_WARNING+"\n"))
	assert.Contains(t, out[0].Content, "9:16 teaser")
	assert.Equal(t, "message 15", out[1].Content)
	assert.Equal(t, "message 19", out[5].Content)

	assert.Contains(t, transcript, "user: message 0")
	assert.Contains(t, transcript, "assistant: message 14")
	assert.NotContains(t, transcript, "generation failed")
	assert.NotContains(t, transcript, "message 3")
	assert.NotContains(t, transcript, "message 15")
}

func TestCompactFallsBackToRecentMessages(t *testing.T) {
	chat := &scriptedChat{complete: func(ai.ChatRequest) (string, error) {
		return "", errors.New("model overloaded")
	}}

	out := NewCompactor(chat, compactorCfg).Compact(context.Background(), chatHistory(20))
	require.Len(t, out, 10)
	assert.Equal(t, "message 10", out[0].Content)
	for _, m := range out {
		assert.NotEqual(t, types.ROLE_SYSTEM, m.Role)
	}
}
