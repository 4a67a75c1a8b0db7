package v1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func TestUndoLastAndRestore(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	gen := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	require.True(t, gen.Success, gen.Error)

	res := f.dispatch(t, tc, "undo_last", `{}`)
	require.True(t, res.Success, res.Error)
	data := res.Data.(map[string]any)
	assert.Equal(t, gen.AssetID, data["asset_id"])

	// trashed assets leave the working memory
	res = f.dispatch(t, tc, "get_past_assets", `{}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "0 assets", res.Message)

	res = f.dispatch(t, tc, "undo_last", `{}`)
	assert.False(t, res.Success)

	res = f.dispatch(t, tc, "manage_trash", `{"action":"list"}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "1 items in the trash", res.Message)

	res = f.dispatch(t, tc, "manage_trash", argsJSON(t, map[string]any{"action": "restore", "item_id": data["trash_id"]}))
	require.True(t, res.Success, res.Error)

	res = f.dispatch(t, tc, "get_past_assets", `{}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "1 assets", res.Message)

	// restoring twice is not possible
	_, err := NewTrashLogic(tc, f.studio.core).Restore(data["trash_id"].(string))
	assert.Error(t, err)
}

func TestEmptyTrashPurgesAssets(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	gen := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	require.True(t, gen.Success, gen.Error)
	require.True(t, f.dispatch(t, tc, "undo_last", `{}`).Success)

	res := f.dispatch(t, tc, "manage_trash", `{"action":"empty"}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "1 items deleted permanently", res.Message)

	asset, _ := f.studio.core.Store().AssetStore().Get(tc, gen.AssetID)
	assert.Nil(t, asset)
}

func TestPurgeExpired(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	c := f.studio.core

	gen := f.dispatch(t, tc, TOOL_GENERATE_IMAGE, argsJSON(t, map[string]any{"prompt": longPrompt}))
	require.True(t, gen.Success, gen.Error)
	require.True(t, f.dispatch(t, tc, "undo_last", `{}`).Success)

	n, err := PurgeExpired(context.Background(), c, time.Now(), 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = PurgeExpired(context.Background(), c, time.Now().Add(types.TRASH_RETENTION+time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := NewTrashLogic(tc, c).List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
