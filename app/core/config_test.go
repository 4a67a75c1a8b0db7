package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupConfigFromEnv(t *testing.T) {
	addr := "localhost:11111"
	t.Setenv("ATELIER_API_SERVICE_ADDRESS", addr)
	t.Setenv("ATELIER_S3_BUCKET", "atelier")

	cfg := LoadBaseConfigFromENV()

	assert.Equal(t, addr, cfg.Addr)
	require.NotNil(t, cfg.ObjectStorage.S3)
	assert.Equal(t, "atelier", cfg.ObjectStorage.S3.Bucket)
	assert.Equal(t, 15, cfg.Studio.CompactionThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Studio.ProgressSnapshotTTL.Duration)
}

func TestLoadConfigFile(t *testing.T) {
	raw := `
addr = ":33033"

[log]
level = "info"

[studio]
compaction_threshold = 20
user_memory_ttl = "24h"

[limits]
max_concurrent_videos = 3
[limits.classes.video]
per_minute = 4
burst = 2
`
	path := filepath.Join(t.TempDir(), "service.toml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg := MustLoadBaseConfig(path)
	assert.Equal(t, ":33033", cfg.Addr)
	assert.Equal(t, 20, cfg.Studio.CompactionThreshold)
	assert.Equal(t, 5, cfg.Studio.CompactionKeep)
	assert.Equal(t, 24*time.Hour, cfg.Studio.UserMemoryTTL.Duration)
	assert.Equal(t, 3, cfg.Limits.MaxConcurrentVideos)
	assert.Equal(t, 4, cfg.Limits.Classes["video"].PerMinute)

	var custom struct {
		Studio struct {
			CompactionThreshold int `toml:"compaction_threshold"`
		} `toml:"studio"`
	}
	require.NoError(t, cfg.LoadCustomConfig(&custom))
	assert.Equal(t, 20, custom.Studio.CompactionThreshold)
}
