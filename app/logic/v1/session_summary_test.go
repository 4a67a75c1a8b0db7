package v1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
)

func TestSummarizeIdleSessions(t *testing.T) {
	f := newTestStudio(t)
	calls := 0
	f.chat.complete = func(req ai.ChatRequest) (string, error) {
		calls++
		return "Worked on a coffee brand teaser.", nil
	}

	busy := f.turnContext(t, "u1")
	_, err := NewMessageLogic(busy, f.studio.core).Append(types.Message{
		SessionID: busy.SessionID,
		UserID:    "u1",
		Role:      types.ROLE_USER,
		Content:   "make a teaser for @nova_coffee",
	})
	require.NoError(t, err)
	// sessions without messages produce no summary
	f.turnContext(t, "u2")

	ctx := context.Background()
	now := time.Now()

	n, err := f.studio.SummarizeIdleSessions(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is idle yet")

	later := now.Add(3 * time.Hour)
	n, err = f.studio.SummarizeIdleSessions(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)

	mem := f.studio.Memory().Get(ctx, "u1")
	require.Len(t, mem.Summaries, 1)
	assert.Equal(t, busy.SessionID, mem.Summaries[0].SessionID)
	assert.Equal(t, "Worked on a coffee brand teaser.", mem.Summaries[0].Summary)

	// unchanged sessions are not summarized twice
	n, err = f.studio.SummarizeIdleSessions(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, calls)

	// projects quiet for more than a week are left alone
	n, err = f.studio.SummarizeIdleSessions(ctx, now.Add(8*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
