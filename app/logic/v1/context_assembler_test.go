package v1

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func TestAssembleOrdersSections(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	ctx := context.Background()

	res := f.dispatch(t, tc, TOOL_CREATE_CHARACTER, `{"name":"Emre","description":"tall, curly hair"}`)
	require.True(t, res.Success, res.Error)
	res = f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	require.True(t, res.Success, res.Error)
	require.NoError(t, f.studio.Memory().AddCoreMemory(ctx, "u1", "runs a coffee roastery"))

	got := NewContextAssembler(f.studio).Assemble(ctx, TurnInput{
		UserID:    "u1",
		SessionID: tc.SessionID,
		Message:   "put @emre on a beach",
		Lang:      types.LANGUAGE_EN_KEY,
	})
	require.Len(t, got.Entities, 1)
	assert.Equal(t, "@emre", got.Entities[0].Tag)
	require.Len(t, got.WorkingMemory, 1)
	require.NotNil(t, got.Prefs)

	assert.True(t, strings.HasPrefix(got.Prompt, studioPersona))
	headers := []string{
		"## Referenced entities",
		"## Active project",
		"## Working memory",
		"## User preferences",
		"## Notable moments",
		"## Cross-project memory",
	}
	last := len(studioPersona)
	for _, h := range headers {
		i := strings.Index(got.Prompt, h)
		require.GreaterOrEqual(t, i, 0, h)
		assert.Greater(t, i, last, h)
		last = i
	}
	assert.Contains(t, got.Prompt, "- runs a coffee roastery")
}

func TestAssembleSkipsEmptySections(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	got := NewContextAssembler(f.studio).Assemble(context.Background(), TurnInput{
		UserID:    "u1",
		SessionID: tc.SessionID,
		Message:   "hello",
		Lang:      types.LANGUAGE_EN_KEY,
	})
	for _, h := range []string{"## Referenced entities", "## Working memory", "## Notable moments", "## Cross-project memory"} {
		assert.NotContains(t, got.Prompt, h)
	}
	assert.Contains(t, got.Prompt, "## Active project\n- title: test project")
	assert.Contains(t, got.Prompt, "## User preferences")
}
