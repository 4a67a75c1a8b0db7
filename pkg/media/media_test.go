package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls [][]string
	fail  int
}

func (r *recorder) run(ctx context.Context, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	if len(r.calls) <= r.fail {
		return errors.New("codec mismatch")
	}
	return nil
}

func TestConcatFallsBackToReencode(t *testing.T) {
	rec := &recorder{fail: 1}
	p := NewProcessor("", t.TempDir(), WithRunner(rec.run))

	dir, cleanup, err := p.Workspace()
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, p.Concat(context.Background(), []string{"a.mp4", "b.mp4"}, dir+"/out.mp4"))
	require.Len(t, rec.calls, 2)
	assert.Contains(t, strings.Join(rec.calls[0], " "), "-c copy")
	assert.Contains(t, strings.Join(rec.calls[1], " "), "libx264")
}

func TestMuxModes(t *testing.T) {
	rec := &recorder{}
	p := NewProcessor("ffmpeg", t.TempDir(), WithRunner(rec.run))

	require.NoError(t, p.Mux(context.Background(), "v.mp4", "a.mp3", "o.mp4", MUX_REPLACE))
	require.NoError(t, p.Mux(context.Background(), "v.mp4", "a.mp3", "o.mp4", MUX_MIX))

	assert.Contains(t, strings.Join(rec.calls[0], " "), "-map 1:a:0")
	assert.Contains(t, strings.Join(rec.calls[1], " "), "amix=inputs=2")
}

func TestDownloadAllKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	p := NewProcessor("", t.TempDir())
	dir, cleanup, err := p.Workspace()
	require.NoError(t, err)
	defer cleanup()

	paths, err := p.DownloadAll(context.Background(), dir, srv.URL+"/v.mp4", srv.URL+"/a.mp3")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.True(t, strings.HasSuffix(paths[0], ".mp4"))
	raw, _ := os.ReadFile(paths[1])
	assert.Equal(t, "/a.mp3", string(raw))
}

func TestFetchRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	p := NewProcessor("", t.TempDir())
	raw, mime, err := p.Fetch(context.Background(), srv.URL+"/x.png", 64)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(raw))
	assert.Equal(t, "image/png", mime)

	_, _, err = p.Fetch(context.Background(), srv.URL+"/x.png", 4)
	assert.Error(t, err)
}
