package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
)

const defaultVideoSeconds = 5

// videoJobPayload is the serialized input of a short video job. VideoURL is
// set for edits of an existing clip.
type videoJobPayload struct {
	Prompt    string   `json:"prompt"`
	Model     string   `json:"model"`
	ImageURL  string   `json:"image_url,omitempty"`
	VideoURL  string   `json:"video_url,omitempty"`
	Duration  int      `json:"duration,omitempty"`
	Aspect    string   `json:"aspect_ratio,omitempty"`
	EntityIDs []string `json:"entity_ids,omitempty"`
}

func (s *Studio) generateVideo(tc *TurnContext, args Args) *types.ToolResult {
	duration := args.Int("duration", defaultVideoSeconds)
	if duration <= 0 {
		duration = defaultVideoSeconds
	}
	if duration > studioCfg(s.core).MaxVideoSeconds {
		return types.ToolFailure(tc.T(i18n.MESSAGE_VIDEO_TOO_LONG, map[string]any{"Duration": duration}))
	}
	if r := s.checkRate(tc, core.LIMIT_CLASS_VIDEO); r != nil {
		return r
	}

	model := s.resolveVideoModel(tc, args.String("model"))
	imageURL := args.String("image_url")
	if imageURL != "" && !s.videoModelTakesImage(model) {
		slog.Info("video model takes no frame, generating from text", slog.String("model", model))
		imageURL = ""
	}
	return s.startVideoJob(tc, videoJobPayload{
		Prompt:    s.preparePrompt(tc, tc.Preferences(), args.String("prompt"), true),
		Model:     model,
		ImageURL:  imageURL,
		Duration:  duration,
		Aspect:    args.StringOr("aspect_ratio", "16:9"),
		EntityIDs: tc.entityIDs(),
	})
}

// startVideoJob takes a production slot and hands the job to the runner. The
// slot is released by the job.
func (s *Studio) startVideoJob(tc *TurnContext, p videoJobPayload) *types.ToolResult {
	sem := s.core.Semaphores().Videos(tc.UserID)
	if !sem.TryAcquire(tc) {
		res := rateLimited(60)
		res.Error = "too many videos are already in production, retry when one finishes"
		return res
	}

	job, err := NewBackgroundJob(tc.StudioContext, types.JOB_VIDEO, p)
	if err == nil {
		err = s.runner.Submit(tc, job)
	}
	if err != nil {
		sem.Release(tc)
		slog.Error("failed to start video job", slog.String("session_id", tc.SessionID), slog.Any("error", err))
		return types.ToolFailure("failed to start the video: " + err.Error())
	}

	duration := p.Duration
	if duration == 0 {
		duration = defaultVideoSeconds
	}
	return &types.ToolResult{
		Success:          true,
		IsBackgroundTask: true,
		Prompt:           p.Prompt,
		Message:          tc.T(i18n.MESSAGE_VIDEO_STARTING, map[string]any{"Duration": duration}),
		BgGeneration: &types.BgGeneration{
			Type:         types.ASSET_VIDEO,
			TaskType:     types.JOB_VIDEO,
			PromptPrefix: promptPrefix(p.Prompt),
			Duration:     duration,
		},
	}
}

func (s *Studio) runVideoJob(sc *types.StudioContext, job types.BackgroundJob, progress ProgressFunc) (*types.JobOutcome, error) {
	defer s.core.Semaphores().Videos(job.UserID).Release(sc.Detached())

	var p videoJobPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode video job: %w", err)
	}

	progress(0.05, "video production started", map[string]any{"model": p.Model})
	var res *types.ToolResult
	if p.VideoURL != "" {
		res = s.runChain(sc, p.Model, map[string]any{"video_url": p.VideoURL, "prompt": p.Prompt}, nil, types.ASSET_VIDEO)
	} else {
		args := map[string]any{"prompt": p.Prompt, "duration": fmt.Sprint(p.Duration)}
		if p.Aspect != "" {
			args["aspect_ratio"] = p.Aspect
		}
		res = s.runChain(sc, p.Model, args, videoAdapter(p.ImageURL), types.ASSET_VIDEO)
	}
	if !res.Success {
		return nil, fmt.Errorf("%s", res.Error)
	}
	progress(0.9, "saving video", nil)

	asset := &types.GeneratedAsset{
		SessionID:     job.SessionID,
		UserID:        job.UserID,
		Type:          types.ASSET_VIDEO,
		URL:           res.AssetURL,
		ThumbnailURL:  res.ThumbnailURL,
		Prompt:        p.Prompt,
		ModelName:     res.ModelUsed,
		Params:        types.JSONMap{"duration": p.Duration, "aspect_ratio": p.Aspect, "image_url": p.ImageURL, "video_url": p.VideoURL},
		ParentAssetID: parentAssetID(sc, s.core, job.SessionID, p.ImageURL, p.VideoURL),
	}
	if err := recordAsset(sc.Detached(), s.core, asset, p.EntityIDs); err != nil {
		slog.Error("failed to record video asset", slog.String("job_id", job.ID), slog.Any("error", err), slog.String("component", "background"))
	} else {
		res.AssetID = asset.ID
		res.ParentAssetID = asset.ParentAssetID
	}
	res.Prompt = p.Prompt
	res.Persisted = true

	return &types.JobOutcome{
		Message: s.localizer.GetWithData(sc.Lang, i18n.MESSAGE_VIDEO_READY, map[string]any{"URL": res.AssetURL}),
		Result:  res,
	}, nil
}
