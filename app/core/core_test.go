package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func TestNewCoreDefaults(t *testing.T) {
	c := NewCore(CoreConfig{})
	defer c.Shutdown(context.Background())

	require.NotNil(t, c.Store())
	require.NotNil(t, c.Cache())
	assert.Nil(t, c.Queue())
	assert.Equal(t, 15, c.Cfg().Studio.CompactionThreshold)

	_, err := c.FileStorage().Upload(context.Background(), "a.png", []byte("x"), "image/png")
	assert.ErrorIs(t, err, ErrStorageDisabled)

	// embedded redis backs the cache
	_, err = c.Cache().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrCacheMiss)
}
