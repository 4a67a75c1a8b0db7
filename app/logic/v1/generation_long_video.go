package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
)

type sceneSpec struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url,omitempty"`
	Model    string `json:"model,omitempty"`
	Duration int    `json:"duration"`
}

type longVideoPayload struct {
	Scenes    []sceneSpec `json:"scenes"`
	Model     string      `json:"model"`
	Aspect    string      `json:"aspect_ratio,omitempty"`
	EntityIDs []string    `json:"entity_ids,omitempty"`
}

func (p longVideoPayload) total() int {
	total := 0
	for _, sc := range p.Scenes {
		total += sc.Duration
	}
	return total
}

// spread gives the scenes without a duration an even share of what total
// leaves after the fixed ones. Without a total they get the default length.
func (p *longVideoPayload) spread(open []int, total, maxScene int) error {
	if len(open) == 0 {
		return nil
	}
	if total <= 0 {
		for _, i := range open {
			p.Scenes[i].Duration = min(defaultVideoSeconds, maxScene)
		}
		return nil
	}
	remaining := total - p.total()
	fixed := len(p.Scenes) - len(open)
	if remaining > len(open)*maxScene {
		need := fixed + (remaining+maxScene-1)/maxScene
		return fmt.Errorf("a %d second video needs at least %d scenes of up to %d seconds each; split the plan into more scenes and call generate_long_video again", total, need, maxScene)
	}
	share, extra := remaining/len(open), remaining%len(open)
	for k, i := range open {
		d := share
		if k < extra {
			d++
		}
		p.Scenes[i].Duration = max(d, 1)
	}
	return nil
}

// generateLongVideo only runs an approved plan: at least two scenes.
func (s *Studio) generateLongVideo(tc *TurnContext, args Args) *types.ToolResult {
	cfg := studioCfg(s.core)
	var (
		p    longVideoPayload
		open []int
	)
	for _, scene := range args.Objects("scene_descriptions") {
		prompt := scene.String("prompt")
		if prompt == "" {
			continue
		}
		d := scene.Int("duration", 0)
		if d <= 0 {
			open = append(open, len(p.Scenes))
		}
		p.Scenes = append(p.Scenes, sceneSpec{
			Prompt:   prompt,
			ImageURL: scene.String("image_url"),
			Model:    scene.String("model"),
			Duration: min(d, cfg.MaxVideoSeconds),
		})
	}
	if len(p.Scenes) < 2 {
		return types.ToolFailure(tc.T(i18n.MESSAGE_LONG_VIDEO_NEEDS_PLAN, nil))
	}
	if err := p.spread(open, args.Int("total_duration", 0), cfg.MaxVideoSeconds); err != nil {
		return types.ToolFailure(err.Error())
	}
	if total := p.total(); total > cfg.MaxLongVideoSeconds {
		return types.ToolFailure(fmt.Sprintf("the plan runs %d seconds, the limit is %d; shorten or drop scenes", total, cfg.MaxLongVideoSeconds))
	}
	if r := s.checkRate(tc, core.LIMIT_CLASS_VIDEO); r != nil {
		return r
	}
	if s.core.Srv().Media() == nil {
		return types.ToolFailure("long videos need local media processing, which is not configured")
	}

	p.Model = s.resolveVideoModel(tc, args.String("model"))
	p.Aspect = args.StringOr("aspect_ratio", "16:9")
	p.EntityIDs = tc.entityIDs()

	sem := s.core.Semaphores().Videos(tc.UserID)
	if !sem.TryAcquire(tc) {
		res := rateLimited(60)
		res.Error = "too many videos are already in production, retry when one finishes"
		return res
	}
	job, err := NewBackgroundJob(tc.StudioContext, types.JOB_LONG_VIDEO, p)
	if err == nil {
		err = s.runner.Submit(tc, job)
	}
	if err != nil {
		sem.Release(tc)
		slog.Error("failed to start long video job", slog.String("session_id", tc.SessionID), slog.Any("error", err))
		return types.ToolFailure("failed to start the video: " + err.Error())
	}

	return &types.ToolResult{
		Success:          true,
		IsBackgroundTask: true,
		Prompt:           p.Scenes[0].Prompt,
		Message:          tc.T(i18n.MESSAGE_LONG_VIDEO_STARTING, map[string]any{"Scenes": len(p.Scenes)}),
		BgGeneration: &types.BgGeneration{
			Type:         types.ASSET_VIDEO,
			TaskType:     types.JOB_LONG_VIDEO,
			PromptPrefix: promptPrefix(p.Scenes[0].Prompt),
			Duration:     p.total(),
		},
	}
}

// runLongVideoJob renders the scenes one after another and joins them.
func (s *Studio) runLongVideoJob(sc *types.StudioContext, job types.BackgroundJob, progress ProgressFunc) (*types.JobOutcome, error) {
	defer s.core.Semaphores().Videos(job.UserID).Release(sc.Detached())

	var p longVideoPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode long video job: %w", err)
	}
	processor := s.core.Srv().Media()
	if processor == nil {
		return nil, fmt.Errorf("local media processing is not configured")
	}

	n := len(p.Scenes)
	steps := float64(n + 1)
	var (
		clips    []string
		attempts []types.Attempt
		thumb    string
	)
	for i, scene := range p.Scenes {
		progress(float64(i)/steps, fmt.Sprintf("scene %d/%d", i+1, n), map[string]any{"scene": i + 1, "total": n})

		model := scene.Model
		if model == "" {
			model = p.Model
		}
		args := map[string]any{"prompt": s.translate(sc, scene.Prompt), "duration": fmt.Sprint(scene.Duration)}
		if p.Aspect != "" {
			args["aspect_ratio"] = p.Aspect
		}
		res := s.runChain(sc, model, args, videoAdapter(scene.ImageURL), types.ASSET_VIDEO)
		attempts = append(attempts, res.Attempts...)
		if !res.Success {
			return nil, fmt.Errorf("scene %d: %s", i+1, res.Error)
		}
		if thumb == "" {
			thumb = res.ThumbnailURL
		}
		clips = append(clips, res.AssetURL)
	}

	progress(float64(n)/steps, "joining scenes", nil)
	dir, cleanup, err := processor.Workspace()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	paths, err := processor.DownloadAll(sc, dir, clips...)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, "final.mp4")
	if err = processor.Concat(sc, paths, out); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	url, err := UploadBytes(sc, s.core, job.UserID, UPLOAD_KIND_RENDER, raw, "video/mp4")
	if err != nil {
		return nil, fmt.Errorf("upload joined video: %w", err)
	}

	res := &types.ToolResult{
		Success:      true,
		AssetURL:     url,
		ThumbnailURL: thumb,
		AssetType:    types.ASSET_VIDEO,
		ModelUsed:    p.Model,
		MethodNotes:  fmt.Sprintf("%d scenes joined locally", n),
		Attempts:     attempts,
		Prompt:       p.Scenes[0].Prompt,
		Persisted:    true,
	}
	asset := &types.GeneratedAsset{
		SessionID:    job.SessionID,
		UserID:       job.UserID,
		Type:         types.ASSET_VIDEO,
		URL:          url,
		ThumbnailURL: thumb,
		Prompt:       res.Prompt,
		ModelName:    p.Model,
		Params:       types.JSONMap{"scenes": n, "scene_urls": clips, "duration": p.total(), "aspect_ratio": p.Aspect},
	}
	if err = recordAsset(sc.Detached(), s.core, asset, p.EntityIDs); err != nil {
		slog.Error("failed to record long video asset", slog.String("job_id", job.ID), slog.Any("error", err), slog.String("component", "background"))
	} else {
		res.AssetID = asset.ID
	}

	return &types.JobOutcome{
		Message: s.localizer.GetWithData(sc.Lang, i18n.MESSAGE_LONG_VIDEO_READY, map[string]any{"Scenes": n, "URL": url}),
		Result:  res,
	}, nil
}
