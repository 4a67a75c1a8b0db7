package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func argsJSON(t *testing.T, v map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestDispatchUnknownTool(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, "paint_the_moon", `{}`)
	assert.False(t, res.Success)
	assert.Equal(t, errUnknownTool, res.Error)
}

func TestDispatchSchemaViolations(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, `not json`)
	assert.False(t, res.Success)
	assert.Equal(t, "schema violation: arguments are not a json object", res.Error)

	res = f.dispatch(t, tc, TOOL_GENERATE_IMAGE, `{}`)
	assert.False(t, res.Success)
	assert.Equal(t, "schema violation: prompt is required", res.Error)

	res = f.dispatch(t, tc, TOOL_GENERATE_IMAGE, `{"prompt":"a cat","aspect_ratio":"7:5"}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "schema violation: aspect_ratio must be one of")

	// nothing reached the vendor
	assert.Empty(t, f.vendor.endpoints())
}

func TestDispatchDisabledFamily(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_MANAGE_PLUGIN, `{"action":"disable","plugin":"search"}`)
	require.True(t, res.Success, res.Error)

	res = f.dispatch(t, tc, TOOL_SEARCH_WEB, `{"query":"brutalist architecture"}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "manage_plugin")
	assert.Empty(t, f.searcher.calls)

	// the switch is persisted, a fresh turn sees it too
	next := f.studio.NewTurnContext(tc, "u1", tc.SessionID, "en")
	assert.False(t, FamilyEnabled(next.Preferences(), FAMILY_SEARCH))

	res = f.dispatch(t, next, TOOL_MANAGE_PLUGIN, `{"action":"enable","plugin":"search"}`)
	require.True(t, res.Success, res.Error)
	f.searcher.hits = nil
	res = f.dispatch(t, next, TOOL_SEARCH_WEB, `{"query":"brutalist architecture"}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "search failed")
}

func TestDispatchRecordsProducedAsset(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt, "aspect_ratio": "16:9"}))
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Persisted)
	assert.Equal(t, "flux2", res.ModelUsed)
	assert.Equal(t, "https://cdn.test/flux-2-pro.png", res.AssetURL)
	require.NotEmpty(t, res.AssetID)

	asset, err := f.studio.core.Store().AssetStore().Get(tc, res.AssetID)
	require.NoError(t, err)
	assert.Equal(t, tc.SessionID, asset.SessionID)
	assert.Equal(t, types.ASSET_IMAGE, asset.Type)
	assert.Equal(t, longPrompt, asset.Prompt)
	assert.Equal(t, "16:9", asset.Params["aspect_ratio"])

	episodes := f.studio.Episodes().Recall("u1", types.EpisodeFilter{Limit: 10})
	require.NotEmpty(t, episodes)
	assert.Equal(t, types.EPISODE_CREATION, episodes[0].EventType)
}

func TestDispatchInjectsCurrentImage(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	tc.Refs.LastGenerated = "https://cdn.test/grid.png"

	res := f.dispatch(t, tc, "use_grid_panel", `{"panel":5}`)
	require.True(t, res.Success, res.Error)

	call, ok := f.vendor.lastCall("fal-ai/nano-banana/edit")
	require.True(t, ok)
	assert.Equal(t, []string{"https://cdn.test/grid.png"}, call.Args["image_urls"])
	assert.Contains(t, call.Args["prompt"], "row 2, column 2")
}

func TestDispatchFailureIsRemembered(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, "use_grid_panel", `{"panel":12,"image_url":"https://cdn.test/grid.png"}`)
	assert.False(t, res.Success)
	assert.Equal(t, "panel must be between 1 and 9", res.Error)

	episodes := f.studio.Episodes().Recall("u1", types.EpisodeFilter{EventType: types.EPISODE_ERROR})
	require.Len(t, episodes, 1)
	assert.Contains(t, episodes[0].Content, "use_grid_panel failed")
}
