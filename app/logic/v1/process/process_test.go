package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/atelier-studio/atelier/app/core"
	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/pkg/types"
)

func newTestProcess(t *testing.T) *Process {
	t.Helper()
	c := core.NewCore(core.CoreConfig{})
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return NewProcess(v1.NewStudio(c))
}

func TestPurgeTrash(t *testing.T) {
	p := newTestProcess(t)
	ctx := v1.WithUser(context.Background(), "u1", types.LANGUAGE_EN_KEY)
	assets := p.Core().Store().AssetStore()

	for _, id := range []string{"a1", "a2"} {
		asset := types.GeneratedAsset{ID: id, SessionID: "s1", UserID: "u1", Type: types.ASSET_IMAGE, URL: "https://cdn.test/" + id + ".png", CreatedAt: time.Now().Unix()}
		require.NoError(t, assets.Create(ctx, asset))
		_, err := v1.NewTrashLogic(ctx, p.Core()).TrashAsset(&asset)
		require.NoError(t, err)
	}

	n, err := PurgeTrash(ctx, p, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = PurgeTrash(ctx, p, time.Now().Add(types.TRASH_RETENTION+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, _ := assets.Get(ctx, "a1")
	assert.Nil(t, a)
}

func TestStartStopReleasesGoroutines(t *testing.T) {
	p := newTestProcess(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	assert.False(t, p.Durable())
	assert.Len(t, p.Cron().Entries(), 2)

	p.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Stop(ctx)
}
