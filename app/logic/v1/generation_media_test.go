package v1

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/app/core/srv"
	"github.com/atelier-studio/atelier/pkg/media"
	"github.com/atelier-studio/atelier/pkg/types"
)

const (
	endpointKling       = "fal-ai/kling-video/v2.5-turbo/pro"
	endpointStableAudio = "fal-ai/stable-audio-25/text-to-audio"
	endpointMinimax     = "fal-ai/minimax-music/v1.5"
)

// fakeFFmpeg records invocations and writes the output file, which ffmpeg
// always takes as its last argument.
type fakeFFmpeg struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeFFmpeg) run(ctx context.Context, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, strings.Join(args, " "))
	r.mu.Unlock()
	return os.WriteFile(args[len(args)-1], []byte("rendered"), 0o600)
}

func (r *fakeFFmpeg) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

// echoTransport answers every download with the request path.
type echoTransport struct{}

func (echoTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"video/mp4"}},
		Body:       io.NopCloser(strings.NewReader(req.URL.Path)),
		Request:    req,
	}, nil
}

func withMedia(t *testing.T, ff *fakeFFmpeg) srv.ApplyFunc {
	return srv.ApplyMedia(srv.MediaConfig{WorkDir: t.TempDir()},
		media.WithRunner(ff.run),
		media.WithHTTPClient(&http.Client{Transport: echoTransport{}}))
}

func scenePlan(n int) []any {
	res := make([]any, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, map[string]any{"prompt": fmt.Sprintf("scene %d of a coffee brand teaser, morning light", i+1)})
	}
	return res
}

func TestLongVideoAsksForMoreScenesToReachTotal(t *testing.T) {
	ff := &fakeFFmpeg{}
	f := newTestStudio(t, withMedia(t, ff))
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_GENERATE_LONG_VIDEO, argsJSON(t, map[string]any{
		"total_duration":     60,
		"scene_descriptions": scenePlan(3),
	}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "at least 6 scenes")
	assert.Empty(t, f.studio.Runner().Running())
	assert.Empty(t, f.vendor.endpoints())
}

func TestLongVideoSpreadsTotalDuration(t *testing.T) {
	p := longVideoPayload{Scenes: []sceneSpec{{Duration: 10}, {}, {}, {}}}
	require.NoError(t, p.spread([]int{1, 2, 3}, 30, 10))
	assert.Equal(t, []int{10, 7, 7, 6}, sceneDurations(p))
	assert.Equal(t, 30, p.total())

	p = longVideoPayload{Scenes: []sceneSpec{{}, {}}}
	require.NoError(t, p.spread([]int{0, 1}, 0, 10))
	assert.Equal(t, []int{defaultVideoSeconds, defaultVideoSeconds}, sceneDurations(p))

	p = longVideoPayload{Scenes: []sceneSpec{{Duration: 10}, {}}}
	err := p.spread([]int{1}, 45, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 5 scenes")
}

func sceneDurations(p longVideoPayload) []int {
	res := make([]int, 0, len(p.Scenes))
	for _, sc := range p.Scenes {
		res = append(res, sc.Duration)
	}
	return res
}

func TestLongVideoJobJoinsScenes(t *testing.T) {
	ff := &fakeFFmpeg{}
	f := newTestStudio(t, withMedia(t, ff))
	tc := f.turnContext(t, "u1")
	sub := NewChanSubscriber(0)
	f.studio.Bus().Register(tc.SessionID, sub)
	defer f.studio.Bus().Unregister(tc.SessionID, sub)

	res := f.dispatch(t, tc, TOOL_GENERATE_LONG_VIDEO, argsJSON(t, map[string]any{
		"total_duration":     60,
		"scene_descriptions": scenePlan(6),
	}))
	require.True(t, res.Success, res.Error)
	assert.True(t, res.IsBackgroundTask)
	require.NotNil(t, res.BgGeneration)
	assert.Equal(t, types.JOB_LONG_VIDEO, res.BgGeneration.TaskType)
	assert.Equal(t, 60, res.BgGeneration.Duration)

	require.NoError(t, f.studio.Runner().Wait(tc))

	events := collect(sub)
	require.Len(t, events, 8)
	for i, ev := range events[:7] {
		assert.Equal(t, types.EVENT_PROGRESS, ev.Type, i)
		assert.Equal(t, types.JOB_LONG_VIDEO, ev.TaskType, i)
	}
	assert.Equal(t, "scene 1/6", events[0].Message)
	assert.Equal(t, "joining scenes", events[6].Message)

	done := events[7]
	assert.Equal(t, types.EVENT_COMPLETE, done.Type)
	assert.Equal(t, types.JOB_LONG_VIDEO, done.TaskType)
	result, ok := done.Result.(*types.ToolResult)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(result.AssetURL, "https://storage.test/"), result.AssetURL)
	assert.Equal(t, types.ASSET_VIDEO, result.AssetType)
	assert.NotEmpty(t, result.AssetID)
	assert.Equal(t, 1, f.storage.count())

	assert.Len(t, f.vendor.endpoints(), 6)
	call, ok := f.vendor.lastCall(endpointKling)
	require.True(t, ok)
	assert.Equal(t, "10", call.Args["duration"])

	cmds := ff.commands()
	require.Len(t, cmds, 1)
	assert.Contains(t, cmds[0], "-f concat")

	history, err := NewMessageLogic(tc, f.studio.core).Recent(tc.SessionID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, types.ROLE_ASSISTANT, last.Role)
	assert.Contains(t, last.Content, GENERATED_MARKER+" "+result.AssetURL)
	assert.Equal(t, types.JOB_LONG_VIDEO, last.Metadata.TaskType)
	assert.Equal(t, []string{result.AssetID}, last.Metadata.AssetIDs)

	// nothing left running
	assert.Empty(t, f.studio.Runner().Running())
}

func TestGenerateMusicRoutesVocalsAndInstrumentals(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, TOOL_GENERATE_MUSIC, argsJSON(t, map[string]any{"prompt": "calm lo-fi beat with piano and vinyl crackle", "duration": 45}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "instrumental track", res.MethodNotes)
	call, ok := f.vendor.lastCall(endpointStableAudio)
	require.True(t, ok)
	assert.EqualValues(t, 45, call.Args["seconds_total"])

	res = f.dispatch(t, tc, TOOL_GENERATE_MUSIC, argsJSON(t, map[string]any{"prompt": "summer pop anthem", "lyrics": "we run into the sun"}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "vocal track", res.MethodNotes)
	call, ok = f.vendor.lastCall(endpointMinimax)
	require.True(t, ok)
	assert.Equal(t, "we run into the sun", call.Args["lyrics_prompt"])
	assert.NotContains(t, call.Args, "seconds_total")

	res = f.dispatch(t, tc, TOOL_GENERATE_MUSIC, argsJSON(t, map[string]any{"prompt": "jazz ballad with female vocals"}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "vocal track", res.MethodNotes)
	assert.Equal(t, []string{endpointStableAudio, endpointMinimax, endpointMinimax}, f.vendor.endpoints())
}

func TestAddAudioToVideoModes(t *testing.T) {
	ff := &fakeFFmpeg{}
	f := newTestStudio(t, withMedia(t, ff))
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, "add_audio_to_video", argsJSON(t, map[string]any{
		"video_url": "https://cdn.test/clip.mp4",
		"audio_url": "https://cdn.test/track.mp3",
	}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, types.ASSET_VIDEO, res.AssetType)
	assert.Equal(t, "audio replace", res.MethodNotes)

	res = f.dispatch(t, tc, "add_audio_to_video", argsJSON(t, map[string]any{
		"video_url": "https://cdn.test/clip.mp4",
		"audio_url": "https://cdn.test/track.mp3",
		"mode":      "mix",
	}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "audio mix", res.MethodNotes)

	cmds := ff.commands()
	require.Len(t, cmds, 2)
	assert.Contains(t, cmds[0], "-map 1:a:0")
	assert.NotContains(t, cmds[0], "amix")
	assert.Contains(t, cmds[1], "amix=inputs=2")
	assert.Equal(t, 2, f.storage.count())
}

func TestAddAudioToVideoNeedsMedia(t *testing.T) {
	f := newTestStudio(t)
	tc := f.turnContext(t, "u1")

	res := f.dispatch(t, tc, "add_audio_to_video", argsJSON(t, map[string]any{
		"video_url": "https://cdn.test/clip.mp4",
		"audio_url": "https://cdn.test/track.mp3",
	}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not configured")
}
