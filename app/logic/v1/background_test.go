package v1

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func runJob(t *testing.T, f *studioFixture, tc *TurnContext, kind string, exec JobExecutor) ([]types.Event, []*types.Message) {
	t.Helper()
	runner := f.studio.Runner()
	runner.Register(kind, exec)

	sub := NewChanSubscriber(0)
	f.studio.Bus().Register(tc.SessionID, sub)
	defer f.studio.Bus().Unregister(tc.SessionID, sub)

	job, err := NewBackgroundJob(tc.StudioContext, kind, map[string]any{"prompt": "teaser"})
	require.NoError(t, err)
	require.NoError(t, runner.Submit(tc, job))
	require.NoError(t, runner.Wait(context.Background()))
	assert.Empty(t, runner.Running())

	history, err := NewMessageLogic(tc, f.studio.core).Recent(tc.SessionID, 0)
	require.NoError(t, err)
	return collect(sub), history
}

func TestBackgroundJobSuccess(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	var progressed bool
	events, history := runJob(t, f, tc, "test_render", func(sc *types.StudioContext, job types.BackgroundJob, progress ProgressFunc) (*types.JobOutcome, error) {
		assert.Equal(t, "u1", sc.UserID)
		assert.JSONEq(t, `{"prompt":"teaser"}`, string(job.Payload))
		progress(0.5, "halfway", nil)
		progressed = true
		return &types.JobOutcome{
			Message: "Render ready.",
			Result:  &types.ToolResult{Success: true, AssetID: "a1", AssetURL: "https://cdn.test/render.png"},
		}, nil
	})

	assert.True(t, progressed)
	assert.Equal(t, []types.EventType{types.EVENT_PROGRESS, types.EVENT_COMPLETE}, eventTypes(events))
	assert.Equal(t, "test_render", events[1].TaskType)

	require.Len(t, history, 1)
	msg := history[0]
	assert.Equal(t, types.ROLE_ASSISTANT, msg.Role)
	assert.Contains(t, msg.Content, "Render ready.")
	assert.Contains(t, msg.Content, GENERATED_MARKER+" https://cdn.test/render.png")
	assert.Equal(t, []string{"a1"}, msg.Metadata.AssetIDs)
	assert.Equal(t, "test_render", msg.Metadata.TaskType)
	assert.False(t, msg.Metadata.IsError)

	assert.Empty(t, f.studio.Bus().LastProgress(tc, tc.SessionID))
}

func TestBackgroundJobFailure(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	events, history := runJob(t, f, tc, "test_render", func(sc *types.StudioContext, job types.BackgroundJob, progress ProgressFunc) (*types.JobOutcome, error) {
		return nil, errors.New("vendor timeout")
	})

	require.Equal(t, []types.EventType{types.EVENT_ERROR}, eventTypes(events))
	assert.Equal(t, "❌ test_render generation failed: vendor timeout", events[0].Message)
	require.Len(t, history, 1)
	assert.Equal(t, events[0].Message, history[0].Content)
	assert.True(t, history[0].Metadata.IsError)
}

func TestBackgroundJobPanicIsContained(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	events, history := runJob(t, f, tc, "test_render", func(sc *types.StudioContext, job types.BackgroundJob, progress ProgressFunc) (*types.JobOutcome, error) {
		panic("nil frame")
	})

	require.Equal(t, []types.EventType{types.EVENT_ERROR}, eventTypes(events))
	assert.Equal(t, "❌ Unexpected system error. Please try again.", events[0].Message)
	require.Len(t, history, 1)
	assert.True(t, history[0].Metadata.IsError)
}

func TestBackgroundSubmitUnknownKind(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	job, err := NewBackgroundJob(tc.StudioContext, "unknown", nil)
	require.NoError(t, err)
	assert.Error(t, f.studio.Runner().Submit(tc, job))
	assert.ElementsMatch(t, []string{types.JOB_VIDEO, types.JOB_LONG_VIDEO}, f.studio.Runner().Kinds())
}
