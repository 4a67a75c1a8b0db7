package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func TestCreateCharacterAndDuplicateTag(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_CREATE_CHARACTER, `{"name":"Emre","description":"tall, curly hair","attributes":{"age":"30"}}`)
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Entity)
	assert.Equal(t, "@emre", res.Entity.Tag)
	assert.Equal(t, types.ENTITY_CHARACTER, res.Entity.Type)
	assert.Equal(t, tc.SessionID, res.Entity.SessionID)

	res = f.dispatch(t, tc, TOOL_CREATE_CHARACTER, `{"name":"emre"}`)
	assert.False(t, res.Success)
	assert.True(t, res.Duplicate)
	assert.Equal(t, "The tag @emre is already taken. Try a different name such as @emre_2.", res.Error)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "@emre_2", data["Suggestion"])

	// a duplicate is not an error worth remembering
	assert.Empty(t, f.studio.Episodes().Recall("u1", types.EpisodeFilter{EventType: types.EPISODE_ERROR}))
}

func TestEntityTagsAreScopedPerUser(t *testing.T) {
	f := newTestStudio(t)

	res := f.dispatch(t, f.turnContext(t, "u1"), TOOL_CREATE_CHARACTER, `{"name":"Emre"}`)
	require.True(t, res.Success, res.Error)
	res = f.dispatch(t, f.turnContext(t, "u2"), TOOL_CREATE_CHARACTER, `{"name":"Emre"}`)
	assert.True(t, res.Success, res.Error)
}

func TestTaggedEntitiesReachTheTurn(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	res := f.dispatch(t, tc, "create_location", `{"name":"Old Harbor","description":"foggy stone pier"}`)
	require.True(t, res.Success, res.Error)

	assembled := NewContextAssembler(f.studio).Assemble(tc, TurnInput{UserID: "u1", SessionID: tc.SessionID, Message: "put @old_harbor behind her", Lang: "en"})
	require.Len(t, assembled.Entities, 1)
	assert.Equal(t, "@old_harbor", assembled.Entities[0].Tag)
	assert.Contains(t, assembled.Prompt, "foggy stone pier")
}

func TestManageWardrobe(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	require.True(t, f.dispatch(t, tc, TOOL_CREATE_CHARACTER, `{"name":"Emre"}`).Success)

	res := f.dispatch(t, tc, "manage_wardrobe", `{"character":"@emre","action":"add","outfit":"navy suit"}`)
	require.True(t, res.Success, res.Error)
	res = f.dispatch(t, tc, "manage_wardrobe", `{"character":"emre","action":"add","outfit":"rain coat"}`)
	require.True(t, res.Success, res.Error)

	res = f.dispatch(t, tc, "manage_wardrobe", `{"character":"@emre","action":"remove","outfit":"NAVY SUIT"}`)
	require.True(t, res.Success, res.Error)

	res = f.dispatch(t, tc, "manage_wardrobe", `{"character":"@emre","action":"list"}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"wardrobe": []string{"rain coat"}}, res.Data)

	res = f.dispatch(t, tc, "manage_wardrobe", `{"character":"@emre","action":"remove","outfit":"tuxedo"}`)
	assert.False(t, res.Success)

	res = f.dispatch(t, tc, "manage_wardrobe", `{"character":"@nobody","action":"list"}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no character named")
}

func TestDeleteEntityRestoreRoundTrip(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	require.True(t, f.dispatch(t, tc, "create_brand", `{"name":"Nova Coffee","attributes":{"colors":"teal"}}`).Success)

	res := f.dispatch(t, tc, "delete_entity", `{"tag":"@nova_coffee"}`)
	require.True(t, res.Success, res.Error)
	trashID := res.Data.(map[string]any)["trash_id"].(string)

	res = f.dispatch(t, tc, "get_entity", `{"tag":"@nova_coffee"}`)
	assert.False(t, res.Success)

	res = f.dispatch(t, tc, "manage_trash", argsJSON(t, map[string]any{"action": "restore", "item_id": trashID}))
	require.True(t, res.Success, res.Error)

	res = f.dispatch(t, tc, "get_entity", `{"tag":"@nova_coffee"}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "teal", res.Entity.Attributes["colors"])
}

func TestRestoreRefusesTakenTag(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")
	require.True(t, f.dispatch(t, tc, TOOL_CREATE_CHARACTER, `{"name":"Emre","description":"first"}`).Success)
	res := f.dispatch(t, tc, "delete_entity", `{"tag":"@emre"}`)
	require.True(t, res.Success, res.Error)
	trashID := res.Data.(map[string]any)["trash_id"].(string)

	require.True(t, f.dispatch(t, tc, TOOL_CREATE_CHARACTER, `{"name":"Emre","description":"second"}`).Success)

	_, err := NewTrashLogic(tc, f.studio.core).Restore(trashID)
	require.Error(t, err)
	res = toolError(tc, err)
	assert.True(t, res.Duplicate)

	// nothing changed: the item stays restorable and the new owner keeps the tag
	item, err := f.studio.core.Store().TrashStore().Get(tc, "u1", trashID)
	require.NoError(t, err)
	assert.Equal(t, types.TRASH_TRASHED, item.Status)
	res = f.dispatch(t, tc, "get_entity", `{"tag":"@emre"}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "second", res.Entity.Description)
}
