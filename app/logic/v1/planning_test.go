package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func TestRoadmapProgression(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	logic := NewPlanningLogic(tc, f.studio.core)

	p, err := logic.CreateRoadmap(tc.SessionID, "Launch teaser", []string{"Moodboard", " ", "Hero image", "Teaser video"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.InProgress)
	assert.Equal(t, 2, p.Pending)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, "Moodboard", p.Steps[0].Title)
	assert.Equal(t, types.TASK_IN_PROGRESS, p.Steps[0].Status)

	p, err = logic.UpdateStep(p.Steps[0].ID, types.TASK_COMPLETED, map[string]any{"result": "board ready"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Completed)
	assert.Equal(t, 33, p.Percent)
	assert.Equal(t, types.TASK_IN_PROGRESS, p.Steps[1].Status)

	p, err = logic.UpdateStep(p.Steps[1].ID, types.TASK_FAILED, nil, "vendor down")
	require.NoError(t, err)
	assert.True(t, p.HasFailure)
	assert.False(t, p.IsComplete)

	for _, s := range p.Steps[1:] {
		p, err = logic.UpdateStep(s.ID, types.TASK_COMPLETED, nil, "")
		require.NoError(t, err)
	}
	assert.True(t, p.IsComplete)
	assert.Equal(t, 100, p.Percent)

	roadmap, err := f.studio.core.Store().TaskStore().Get(tc, p.RoadmapID)
	require.NoError(t, err)
	assert.Equal(t, types.TASK_COMPLETED, roadmap.Status)
	assert.Contains(t, roadmap.OutputData["summary"], "Completed 3 steps")
}

func TestRoadmapRequiresGoalAndSteps(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	_, err := NewPlanningLogic(tc, f.studio.core).CreateRoadmap(tc.SessionID, "Launch", []string{" "})
	assert.Error(t, err)

	res := f.dispatch(t, tc, "get_roadmap_progress", `{}`)
	assert.False(t, res.Success)
}

func TestRoadmapToolsOwnership(t *testing.T) {
	f := newTestStudio(t)
	owner := f.turnContext(t, "u1")

	res := f.dispatch(t, owner, TOOL_CREATE_ROADMAP, `{"goal":"Album cover","steps":["Sketch","Render"]}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "0/2 steps completed", res.Message)
	p := res.Data.(*types.RoadmapProgress)

	res = f.dispatch(t, owner, "update_roadmap_step", argsJSON(t, map[string]any{"step_id": p.Steps[0].ID, "status": "completed", "result": "sketch approved"}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "1/2 steps completed", res.Message)

	stranger := f.turnContext(t, "u2")
	res = f.dispatch(t, stranger, "update_roadmap_step", argsJSON(t, map[string]any{"step_id": p.Steps[1].ID, "status": "completed"}))
	assert.False(t, res.Success)
}
