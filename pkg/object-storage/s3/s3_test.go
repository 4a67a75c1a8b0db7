package s3_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/object-storage/s3"
	"github.com/atelier-studio/atelier/pkg/testutils"
	"github.com/atelier-studio/atelier/pkg/types"
)

func TestPublicURL(t *testing.T) {
	cli := s3.NewS3Client("http://127.0.0.1:9000", "us-east-1", "media", "ak", "sk", s3.WithPathStyle(true))
	assert.Equal(t, "http://127.0.0.1:9000/media/studio/a.png", cli.PublicURL("/studio/a.png"))

	key, ok := cli.KeyFromURL("http://127.0.0.1:9000/media/studio/a.png")
	assert.True(t, ok)
	assert.Equal(t, "studio/a.png", key)

	cdn := s3.NewS3Client("http://127.0.0.1:9000", "us-east-1", "media", "ak", "sk", s3.WithPublicDomain("https://cdn.example.com/"))
	assert.Equal(t, "https://cdn.example.com/studio/a.png", cdn.PublicURL("studio/a.png"))
	_, ok = cdn.KeyFromURL("https://other.example.com/x.png")
	assert.False(t, ok)
}

func newClient(t *testing.T) *s3.S3 {
	endpoint := testutils.RequireEnv(t, "ATELIER_TEST_S3_ENDPOINT")
	return s3.NewS3Client(
		endpoint,
		os.Getenv("ATELIER_TEST_S3_REGION"),
		os.Getenv("ATELIER_TEST_S3_BUCKET"),
		os.Getenv("ATELIER_TEST_S3_ACCESS_KEY"),
		os.Getenv("ATELIER_TEST_S3_SECRET_KEY"),
		s3.WithPathStyle(os.Getenv("ATELIER_TEST_S3_PATH_STYLE") == "true"),
	)
}

func TestUploadRoundTrip(t *testing.T) {
	cli := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	key := types.GenS3FilePath("test", "reference", "pixel.txt")
	url, err := cli.Upload(ctx, key, []byte("hello"), "text/plain")
	require.NoError(t, err)
	assert.Contains(t, url, "pixel.txt")

	res, err := cli.GetObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.File))

	require.NoError(t, cli.Delete(ctx, key))
}
