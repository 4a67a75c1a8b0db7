package v1

import (
	"database/sql"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/pkg/types"
)

func assetTools(s *Studio) []*Tool {
	return []*Tool{
		{
			Name:         "get_past_assets",
			Description:  "List previously generated assets of this project, newest first.",
			Family:       FAMILY_ASSETS,
			Capabilities: []ToolCapability{TOOL_CAP_READ_ONLY},
			Params: map[string]*schema.ParameterInfo{
				"type":           strParam("Asset type", false, string(types.ASSET_IMAGE), string(types.ASSET_VIDEO), string(types.ASSET_AUDIO)),
				"favorites_only": boolParam("Only favorites"),
				"all_projects":   boolParam("Include assets of every project"),
				"limit":          intParam("Maximum results, 20 by default", false),
			},
			Handler: s.getPastAssets,
		},
		{
			Name:        "mark_favorite",
			Description: "Mark or unmark an asset as favorite, by id or url. Defaults to the last generated one.",
			Family:      FAMILY_ASSETS,
			Params: map[string]*schema.ParameterInfo{
				"asset_id":  strParam("Asset id", false),
				"asset_url": strParam("Asset url", false),
				"favorite":  boolParam("false to unmark"),
			},
			Handler: s.markFavorite,
		},
		{
			Name:        "undo_last",
			Description: "Move the last generated asset of this project to the trash.",
			Family:      FAMILY_ASSETS,
			Params:      map[string]*schema.ParameterInfo{},
			Handler:     s.undoLast,
		},
		{
			Name:         "use_grid_panel",
			Description:  "Take one panel, 1 to 9 reading left to right, out of a generated grid as a full image.",
			Family:       FAMILY_ASSETS,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_IMAGE_INPUT},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"image_url":    strParam("The grid image", true),
				"panel":        intParam("Panel number, 1 to 9", true),
				"aspect_ratio": strParam("Aspect ratio of the result", false, aspectRatios...),
			},
			Handler: s.useGridPanel,
		},
	}
}

func assetSummary(a *types.GeneratedAsset) map[string]any {
	return map[string]any{
		"id":            a.ID,
		"type":          a.Type,
		"url":           a.URL,
		"thumbnail_url": a.ThumbnailURL,
		"prompt":        a.Prompt,
		"model":         a.ModelName,
		"favorite":      a.IsFavorite,
		"created_at":    a.CreatedAt,
	}
}

func (s *Studio) getPastAssets(tc *TurnContext, args Args) *types.ToolResult {
	opts := types.ListAssetOptions{
		UserID:       tc.UserID,
		Type:         types.AssetType(args.String("type")),
		OnlyFavorite: args.Bool("favorites_only"),
	}
	if !args.Bool("all_projects") {
		opts.SessionID = tc.SessionID
	}
	limit := args.Int("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := s.core.Store().AssetStore().ListRecent(tc, opts, uint64(limit))
	if err != nil && err != sql.ErrNoRows {
		return types.ToolFailure("failed to list assets: " + err.Error())
	}
	res := types.ToolOK(fmt.Sprintf("%d assets", len(list)))
	res.Data = map[string]any{"assets": lo.Map(list, func(a *types.GeneratedAsset, _ int) map[string]any { return assetSummary(a) })}
	return res
}

// ownedAsset resolves an asset by id, then by url, then falls back to the
// newest asset of the session.
func (s *Studio) ownedAsset(tc *TurnContext, id, url string) (*types.GeneratedAsset, error) {
	assets := s.core.Store().AssetStore()
	var (
		a   *types.GeneratedAsset
		err error
	)
	switch {
	case id != "":
		a, err = assets.Get(tc, id)
	case url != "":
		a, err = assets.GetByURL(tc, tc.SessionID, url)
	default:
		var list []*types.GeneratedAsset
		list, err = assets.ListRecent(tc, types.ListAssetOptions{SessionID: tc.SessionID, UserID: tc.UserID}, 1)
		if len(list) > 0 {
			a = list[0]
		}
	}
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if a == nil || a.UserID != tc.UserID || a.IsDeleted {
		return nil, nil
	}
	return a, nil
}

func (s *Studio) markFavorite(tc *TurnContext, args Args) *types.ToolResult {
	a, err := s.ownedAsset(tc, args.String("asset_id"), args.String("asset_url"))
	if err != nil {
		return types.ToolFailure("failed to find the asset: " + err.Error())
	}
	if a == nil {
		return types.ToolFailure("no such asset")
	}
	favorite := !args.Has("favorite") || args.Bool("favorite")
	if err = s.core.Store().AssetStore().SetFavorite(tc, a.ID, favorite); err != nil {
		return types.ToolFailure("failed to update the asset: " + err.Error())
	}
	if favorite {
		s.episodes.Remember(tc.UserID, types.EPISODE_FEEDBACK, "favorited: "+a.Prompt, map[string]any{"asset_id": a.ID})
		if err := s.memory.RecordSuccessfulPrompt(tc, tc.UserID, a.Prompt, a.URL, a.Type, 2); err != nil {
			return types.ToolFailure("failed to update memory: " + err.Error())
		}
	}
	res := types.ToolOK(lo.Ternary(favorite, "marked as favorite", "removed from favorites"))
	res.Data = assetSummary(a)
	return res
}

func (s *Studio) undoLast(tc *TurnContext, args Args) *types.ToolResult {
	a, err := s.ownedAsset(tc, "", "")
	if err != nil {
		return types.ToolFailure("failed to find the last asset: " + err.Error())
	}
	if a == nil {
		return types.ToolFailure("nothing to undo in this project")
	}
	item, err := NewTrashLogic(tc, s.core).TrashAsset(a)
	if err != nil {
		return toolError(tc, err)
	}
	res := types.ToolOK("the last asset was moved to the trash")
	res.Data = map[string]any{"trash_id": item.ID, "asset_id": a.ID, "url": a.URL}
	return res
}
