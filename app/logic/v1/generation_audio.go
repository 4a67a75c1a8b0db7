package v1

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/media"
	"github.com/atelier-studio/atelier/pkg/types"
)

// generateMusic routes vocal requests to the vocal model and everything else
// to the instrumental one. Both chains end at the third model.
func (s *Studio) generateMusic(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_AUDIO); r != nil {
		return r
	}
	prompt := s.preparePrompt(tc, tc.Preferences(), args.String("prompt"), false)
	lyrics := args.String("lyrics")
	duration := args.Int("duration", 30)

	vocal := lyrics != "" || vocalCue.MatchString(args.String("prompt"))
	model := "stable_audio"
	vargs := map[string]any{"prompt": prompt, "seconds_total": duration}
	if vocal {
		model = "minimax_music"
		vargs = map[string]any{"prompt": prompt}
		if lyrics != "" {
			vargs["lyrics_prompt"] = lyrics
		}
	}

	res := s.runChain(tc, model, vargs, nil, types.ASSET_AUDIO)
	res.Prompt = prompt
	if res.Success {
		res.MethodNotes = lo.Ternary(vocal, "vocal track", "instrumental track")
		res.Params = map[string]any{"prompt": prompt, "lyrics": lyrics, "duration": duration, "vocal": vocal}
	}
	return res
}

// addAudioToVideo muxes an audio track onto a video locally and stores the
// result as a new video asset.
func (s *Studio) addAudioToVideo(tc *TurnContext, args Args) *types.ToolResult {
	processor := s.core.Srv().Media()
	if processor == nil {
		return types.ToolFailure("local media processing is not configured")
	}
	videoURL, audioURL := args.String("video_url"), args.String("audio_url")
	mode := media.MuxMode(args.StringOr("mode", string(media.MUX_REPLACE)))

	dir, cleanup, err := processor.Workspace()
	if err != nil {
		return types.ToolFailure(err.Error())
	}
	defer cleanup()

	paths, err := processor.DownloadAll(tc, dir, videoURL, audioURL)
	if err != nil {
		return types.ToolFailure("failed to download the sources: " + err.Error())
	}
	out := filepath.Join(dir, "muxed.mp4")
	if err = processor.Mux(tc, paths[0], paths[1], out, mode); err != nil {
		return types.ToolFailure("failed to merge audio: " + err.Error())
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		return types.ToolFailure(err.Error())
	}
	url, err := UploadBytes(tc, s.core, tc.UserID, UPLOAD_KIND_RENDER, raw, "video/mp4")
	if err != nil {
		return types.ToolFailure("failed to upload the merged video: " + err.Error())
	}

	var thumb string
	if parent, err := s.core.Store().AssetStore().GetByURL(tc, tc.SessionID, videoURL); err == nil && parent != nil {
		thumb = parent.ThumbnailURL
	}
	return &types.ToolResult{
		Success:      true,
		AssetURL:     url,
		ThumbnailURL: thumb,
		AssetType:    types.ASSET_VIDEO,
		ModelUsed:    "ffmpeg",
		MethodNotes:  fmt.Sprintf("audio %s", mode),
		Params:       map[string]any{"video_url": videoURL, "audio_url": audioURL, "mode": string(mode)},
	}
}
