package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

const (
	endpointFlux2      = "fal-ai/flux-2-pro"
	endpointSeedream   = "fal-ai/bytedance/seedream/v4/text-to-image"
	endpointNanoBanana = "fal-ai/nano-banana/edit"
	endpointSeedEdit   = "fal-ai/bytedance/seedream/v4/edit"
	endpointFaceSwap   = "fal-ai/face-swap"
)

func TestGenerateImageFallsBackAlongChain(t *testing.T) {
	f := newTestStudio(t)
	f.vendor.fail(endpointFlux2, 503)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "seedream", res.ModelUsed)
	assert.Equal(t, "flux2 unavailable, served by seedream", res.MethodNotes)
	require.Len(t, res.Attempts, 2)
	assert.False(t, res.Attempts[0].Success)
	assert.Contains(t, res.Attempts[0].Error, "503")
	assert.True(t, res.Attempts[1].Success)
	assert.Equal(t, []string{endpointFlux2, endpointSeedream}, f.vendor.endpoints())
}

func TestGenerateImageChainExhausted(t *testing.T) {
	f := newTestStudio(t)
	for _, e := range []string{endpointFlux2, endpointSeedream, "fal-ai/reve/text-to-image"} {
		f.vendor.fail(e, 500)
	}
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "flux2 failed")
	assert.Len(t, res.Attempts, 3)
	assert.Empty(t, res.AssetID)
}

func TestGenerateImageWithReferencesUsesIdentityModel(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	tc.Refs = types.ResolvedReferences{
		Primary:  "https://img.test/face.png",
		All:      []string{"https://img.test/face.png", "https://img.test/outfit.png"},
		Uploaded: []string{"https://img.test/face.png", "https://img.test/outfit.png"},
	}

	res := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "nano_banana", res.ModelUsed)
	assert.Contains(t, res.MethodNotes, "identity preserved from the first of 2 references")

	call, ok := f.vendor.lastCall(endpointNanoBanana)
	require.True(t, ok)
	assert.Equal(t, []string{"https://img.test/face.png", "https://img.test/outfit.png"}, call.Args["image_urls"])
	assert.Contains(t, call.Args["prompt"], identityInstruction)
}

func TestGenerateImageIdentityFallsBackToFaceSwap(t *testing.T) {
	f := newTestStudio(t)
	f.vendor.fail(endpointNanoBanana, 500)
	f.vendor.fail(endpointSeedEdit, 500)
	tc := f.turnContext(t, "u1")
	tc.Refs = types.ResolvedReferences{
		Primary:  "https://img.test/face.png",
		All:      []string{"https://img.test/face.png"},
		Uploaded: []string{"https://img.test/face.png"},
	}

	res := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "https://cdn.test/face-swap.png", res.AssetURL)
	assert.Equal(t, "rendered with flux2, face swapped from the first reference", res.MethodNotes)
	assert.Len(t, res.Attempts, 4)

	swap, ok := f.vendor.lastCall(endpointFaceSwap)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.test/flux-2-pro.png", swap.Args["base_image_url"])
	assert.Equal(t, "https://img.test/face.png", swap.Args["swap_image_url"])
}

func TestGenerateImageIdentityWithoutFaceSwap(t *testing.T) {
	f := newTestStudio(t)
	f.vendor.fail(endpointNanoBanana, 500)
	f.vendor.fail(endpointSeedEdit, 500)
	tc := f.turnContext(t, "u1")
	tc.Prefs = types.DefaultPreferences("u1")
	tc.Prefs.AutoFaceSwap = false
	tc.Refs = types.ResolvedReferences{Primary: "https://img.test/face.png", All: []string{"https://img.test/face.png"}}

	res := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "https://cdn.test/flux-2-pro.png", res.AssetURL)
	assert.Equal(t, "identity model failed, rendered without references", res.MethodNotes)
	_, swapped := f.vendor.lastCall(endpointFaceSwap)
	assert.False(t, swapped)
}

func TestGenerateImageRateLimited(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	args := argsJSON(t, map[string]any{"prompt": longPrompt})

	var limited *types.ToolResult
	for i := 0; i < 10 && limited == nil; i++ {
		if res := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, args); res.RateLimited {
			limited = res
		}
	}
	require.NotNil(t, limited)
	assert.False(t, limited.Success)
	assert.Positive(t, limited.WaitSeconds)

	// other users keep their own bucket
	other := f.turnContext(t, "u2")
	res := f.dispatch(t, other, TOOL_GENERATE_IMAGE, args)
	assert.True(t, res.Success, res.Error)
}

func TestGenerateCampaignRendersEveryFormat(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, "generate_campaign", argsJSON(t, map[string]any{
		"prompt":  longPrompt,
		"formats": []string{"1:1", "9:16"},
	}))
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Media, 2)
	for _, m := range res.Media {
		assert.NotEmpty(t, m.AssetID)
		assert.Equal(t, types.ASSET_IMAGE, m.Type)
	}
	assert.Equal(t, "2 of 2 campaign formats ready", res.Message)
}

func TestEditImageStages(t *testing.T) {
	f := newTestStudio(t)
	f.vendor.fail(endpointNanoBanana, 500)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_EDIT_IMAGE, argsJSON(t, map[string]any{
		"prompt":    "make the sky purple",
		"image_url": "https://img.test/canvas.png",
	}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "seedream_edit", res.ModelUsed)
	assert.Equal(t, "edited with seedream_edit at stage 2", res.MethodNotes)

	call, ok := f.vendor.lastCall(endpointSeedEdit)
	require.True(t, ok)
	assert.Equal(t, "https://img.test/canvas.png", call.Args["image_url"])
}

func TestGenerateVideoRunsInBackground(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	sub := NewChanSubscriber(0)
	f.studio.Bus().Register(tc.SessionID, sub)

	res := f.dispatch(t, tc, TOOL_GENERATE_VIDEO, argsJSON(t, map[string]any{"prompt": longPrompt, "duration": 5}))
	require.True(t, res.Success, res.Error)
	assert.True(t, res.IsBackgroundTask)
	require.NotNil(t, res.BgGeneration)
	assert.Equal(t, types.ASSET_VIDEO, res.BgGeneration.Type)

	require.NoError(t, f.studio.Runner().Wait(tc))

	events := collect(sub)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, types.EVENT_COMPLETE, last.Type)
	assert.Equal(t, types.JOB_VIDEO, last.TaskType)

	history, err := NewMessageLogic(tc, f.studio.core).Recent(tc.SessionID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Contains(t, history[len(history)-1].Content, "Your video is ready")

	videos, err := f.studio.core.Store().AssetStore().ListRecent(tc, types.ListAssetOptions{SessionID: tc.SessionID, Type: types.ASSET_VIDEO}, 10)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "kling", videos[0].ModelName)
}

func TestGenerateVideoRejectsLongDurations(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_GENERATE_VIDEO, argsJSON(t, map[string]any{"prompt": longPrompt, "duration": 30}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "generate_long_video")
	assert.Empty(t, f.studio.Runner().Running())
}

func TestGenerateLongVideoValidatesPlan(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	scene := func(prompt string, d int) map[string]any {
		return map[string]any{"prompt": prompt, "duration": d}
	}

	res := f.dispatch(t, tc, TOOL_GENERATE_LONG_VIDEO, argsJSON(t, map[string]any{
		"scene_descriptions": []any{scene("opening shot", 5)},
	}))
	assert.False(t, res.Success)

	var long []any
	for i := 0; i < 20; i++ {
		long = append(long, scene("scene", 10))
	}
	res = f.dispatch(t, tc, TOOL_GENERATE_LONG_VIDEO, argsJSON(t, map[string]any{"scene_descriptions": long}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "the limit is 180")

	// a valid plan still needs local media processing
	res = f.dispatch(t, tc, TOOL_GENERATE_LONG_VIDEO, argsJSON(t, map[string]any{
		"scene_descriptions": []any{scene("opening shot", 5), scene("closing shot", 5)},
	}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not configured")
	assert.Empty(t, f.studio.Runner().Running())
}
