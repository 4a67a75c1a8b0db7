package v1

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/safe"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

const (
	errUnknownTool     = "unknown tool"
	errSchemaViolation = "schema violation"
)

// Dispatcher routes one tool call to its handler. Recoverable failures come
// back as unsuccessful results; the error return is reserved for panics.
type Dispatcher struct {
	studio *Studio
}

func NewDispatcher(s *Studio) *Dispatcher {
	return &Dispatcher{studio: s}
}

func (d *Dispatcher) Dispatch(tc *TurnContext, name, argumentsJSON string) (*types.ToolResult, error) {
	t, ok := d.studio.registry.Get(name)
	if !ok {
		return types.ToolFailure(errUnknownTool), nil
	}
	if !FamilyEnabled(tc.Preferences(), t.Family) {
		return types.ToolFailure(fmt.Sprintf("the %s tools are disabled, enable them with manage_plugin", t.Family)), nil
	}

	args, err := ParseArgs(argumentsJSON)
	if err != nil {
		return types.ToolFailure(errSchemaViolation + ": arguments are not a json object"), nil
	}
	d.inject(tc, t, args)
	if err = t.Validate(args); err != nil {
		return types.ToolFailure(errSchemaViolation + ": " + err.Error()), nil
	}

	metrics := d.studio.core.Metrics()
	timer := metrics.ToolCallTimer(t.Name)
	var res *types.ToolResult
	err = safe.Call(func() error {
		res = t.Handler(tc, args)
		return nil
	}, "tool."+t.Name)
	timer.ObserveDuration()
	if err != nil {
		metrics.ToolCallInc(t.Name, false)
		return nil, err
	}
	if res == nil {
		res = types.ToolFailure("tool returned no result")
	}

	if res.ProducedMedia() && !res.Persisted {
		d.record(tc, t, args, res)
	}
	d.learn(tc, t, args, res)
	metrics.ToolCallInc(t.Name, res.Success)
	return res, nil
}

// inject fills the implicit "this image" referent the model tends to drop.
func (d *Dispatcher) inject(tc *TurnContext, t *Tool, args Args) {
	if t.Is(TOOL_CAP_IMAGE_INPUT) && !args.Has("image_url") {
		if url := d.currentImage(tc, t); url != "" {
			args["image_url"] = url
		}
	}

	if t.Name != TOOL_EDIT_IMAGE {
		return
	}
	if !args.Has("face_reference_url") && len(tc.Refs.Uploaded) > 0 {
		args["face_reference_url"] = tc.Refs.Uploaded[0]
	}
	if !args.Has("all_reference_urls") && len(tc.Refs.All) > 0 {
		args["all_reference_urls"] = lo.Map(tc.Refs.All, func(u string, _ int) any { return u })
	}
}

func (d *Dispatcher) currentImage(tc *TurnContext, t *Tool) string {
	if t.Name == TOOL_GENERATE_VIDEO {
		// animate only what the user handed over, and only on models that take a frame
		if tc.Refs.Primary == "" {
			return ""
		}
		if !d.studio.videoModelTakesImage(d.studio.resolveVideoModel(tc, "")) {
			return ""
		}
		return tc.Refs.Primary
	}
	if len(tc.Refs.Uploaded) > 0 {
		return tc.Refs.Uploaded[0]
	}
	if tc.Refs.LastGenerated != "" {
		return tc.Refs.LastGenerated
	}
	return tc.Refs.Primary
}

// record persists what a handler produced and writes the ids back into res.
func (d *Dispatcher) record(tc *TurnContext, t *Tool, args Args, res *types.ToolResult) {
	entityIDs := lo.Uniq(append(append([]string{}, res.EntityIDs...), tc.entityIDs()...))
	params := res.Params
	if params == nil {
		params = lo.OmitByKeys(map[string]any(args), []string{"all_reference_urls"})
	}
	prompt := res.Prompt
	if prompt == "" {
		prompt = args.String("prompt")
	}

	if res.ParentAssetID == "" {
		res.ParentAssetID = parentAssetID(tc, tc.Core(), tc.SessionID, args.String("image_url"), args.String("video_url"))
	}

	if res.AssetURL != "" {
		assetType := res.AssetType
		if assetType == "" {
			assetType = lo.Ternary(t.Produces != "", t.Produces, types.ASSET_IMAGE)
		}
		asset := &types.GeneratedAsset{
			SessionID:     tc.SessionID,
			UserID:        tc.UserID,
			Type:          assetType,
			URL:           res.AssetURL,
			ThumbnailURL:  res.ThumbnailURL,
			Prompt:        prompt,
			ModelName:     res.ModelUsed,
			Params:        params,
			ParentAssetID: res.ParentAssetID,
		}
		if err := recordAsset(tc, tc.Core(), asset, entityIDs); err != nil {
			slog.Error("failed to record generated asset", slog.String("tool", t.Name), slog.String("session_id", tc.SessionID), slog.Any("error", err))
		} else {
			res.AssetID = asset.ID
			res.AssetType = asset.Type
		}
	}

	for i := range res.Media {
		item := &res.Media[i]
		if item.AssetID != "" || item.URL == "" {
			continue
		}
		asset := &types.GeneratedAsset{
			SessionID:     tc.SessionID,
			UserID:        tc.UserID,
			Type:          lo.Ternary(item.Type != "", item.Type, types.ASSET_IMAGE),
			URL:           item.URL,
			ThumbnailURL:  item.ThumbnailURL,
			Prompt:        lo.Ternary(item.Prompt != "", item.Prompt, prompt),
			ModelName:     res.ModelUsed,
			Params:        params,
			ParentAssetID: res.ParentAssetID,
		}
		if err := recordAsset(tc, tc.Core(), asset, entityIDs); err != nil {
			slog.Error("failed to record generated asset", slog.String("tool", t.Name), slog.String("session_id", tc.SessionID), slog.Any("error", err))
			continue
		}
		item.AssetID = asset.ID
	}
	res.Persisted = true
}

// parentAssetID finds the asset an edit started from, when the source is one of ours.
func parentAssetID(ctx context.Context, c *core.Core, sessionID string, urls ...string) string {
	for _, url := range urls {
		if url == "" {
			continue
		}
		parent, err := c.Store().AssetStore().GetByURL(ctx, sessionID, url)
		if err != nil {
			if err != sql.ErrNoRows {
				slog.Warn("failed to look up parent asset", slog.String("url", url), slog.Any("error", err))
			}
			continue
		}
		if parent != nil {
			return parent.ID
		}
	}
	return ""
}

// recordAsset stores a produced asset and links it to entityIDs in one transaction.
func recordAsset(ctx context.Context, c *core.Core, asset *types.GeneratedAsset, entityIDs []string) error {
	if asset.ID == "" {
		asset.ID = utils.GenUniqIDStr()
	}
	if asset.CreatedAt == 0 {
		asset.CreatedAt = time.Now().Unix()
	}
	asset.EntityIDs = entityIDs
	return c.Store().Transaction(ctx, func(ctx context.Context) error {
		if err := c.Store().AssetStore().Create(ctx, *asset); err != nil {
			return err
		}
		if len(entityIDs) == 0 {
			return nil
		}
		return c.Store().AssetStore().LinkEntities(ctx, asset.ID, entityIDs)
	})
}

// learn feeds the outcome into episodic and cross-session memory.
func (d *Dispatcher) learn(tc *TurnContext, t *Tool, args Args, res *types.ToolResult) {
	switch {
	case res.ProducedMedia():
		prompt := lo.Ternary(res.Prompt != "", res.Prompt, args.String("prompt"))
		url := res.AssetURL
		if url == "" && len(res.Media) > 0 {
			url = res.Media[0].URL
		}
		d.studio.episodes.Remember(tc.UserID, types.EPISODE_CREATION, fmt.Sprintf("%s: %s", t.Name, utils.Prefix(prompt, 120)), map[string]any{
			"tool":  t.Name,
			"url":   url,
			"model": res.ModelUsed,
		})
		if prompt != "" && url != "" {
			if err := d.studio.memory.RecordSuccessfulPrompt(tc, tc.UserID, prompt, url, lo.Ternary(res.AssetType != "", res.AssetType, t.Produces), 1); err != nil {
				slog.Warn("failed to record successful prompt", slog.String("user_id", tc.UserID), slog.Any("error", err))
			}
		}
	case res.ProducedEntity():
		for _, e := range append(lo.Compact([]*types.Entity{res.Entity}), res.Entities...) {
			d.studio.episodes.Remember(tc.UserID, types.EPISODE_CREATION, fmt.Sprintf("%s %s (%s)", t.Name, e.Tag, e.Type), map[string]any{"entity_id": e.ID})
		}
	case !res.Success && !res.RateLimited && !res.Duplicate:
		d.studio.episodes.Remember(tc.UserID, types.EPISODE_ERROR, fmt.Sprintf("%s failed: %s", t.Name, utils.Prefix(res.Error, 160)), map[string]any{"tool": t.Name})
	}
}
