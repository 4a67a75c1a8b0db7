package centrifuge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/centrifugal/centrifuge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/app/store/memstore"
	"github.com/atelier-studio/atelier/pkg/types"
)

func TestAuthorizeChannels(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.SessionStore().Create(ctx, types.Session{ID: "s1", UserID: "u1"}))

	a := NewAuthHandler(st)
	assert.NoError(t, a.authorize(ctx, "u1", SessionChannel("s1")))
	assert.ErrorIs(t, a.authorize(ctx, "u2", SessionChannel("s1")), centrifuge.ErrorPermissionDenied)
	assert.ErrorIs(t, a.authorize(ctx, "u1", SessionChannel("missing")), centrifuge.ErrorPermissionDenied)
	assert.NoError(t, a.authorize(ctx, "u1", UserChannel("u1")))
	assert.ErrorIs(t, a.authorize(ctx, "u1", UserChannel("u2")), centrifuge.ErrorPermissionDenied)
	assert.ErrorIs(t, a.authorize(ctx, "u1", "other:x"), centrifuge.ErrorPermissionDenied)
}

func TestConnectingRequiresUser(t *testing.T) {
	a := NewAuthHandler(memstore.New())
	_, err := a.OnConnecting(context.Background(), centrifuge.ConnectEvent{})
	assert.Error(t, err)

	reply, err := a.OnConnecting(context.Background(), centrifuge.ConnectEvent{Token: "u9"})
	require.NoError(t, err)
	assert.Equal(t, "u9", reply.Credentials.UserID)
}

func TestConnectingEscapesUserInfo(t *testing.T) {
	a := NewAuthHandler(memstore.New())
	id := `u"1\evil`
	reply, err := a.OnConnecting(context.Background(), centrifuge.ConnectEvent{Token: id})
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal(reply.Credentials.Info, &info))
	assert.Equal(t, id, info["user_id"])
}
