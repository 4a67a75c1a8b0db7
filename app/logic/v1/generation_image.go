package v1

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

// identity path accepts the primary reference plus this many more
const maxExtraReferences = 4

const identityInstruction = "Preserve the facial identity of the person in the FIRST reference image exactly. Use the other references only as cues for body, clothing and context."

// imageReferences gathers the references of a generation in priority order:
// explicit args, this turn's uploads, tagged entities, then the session slot
// and web finds. The last render of the session is left out unless the model
// passes it explicitly.
func imageReferences(tc *TurnContext, args Args) []string {
	var refs []string
	refs = append(refs, args.Strings("reference_urls")...)
	refs = append(refs, tc.Refs.Uploaded...)
	for _, e := range tc.Entities {
		if e.ReferenceImageURL != "" {
			refs = append(refs, e.ReferenceImageURL)
		}
	}
	refs = append(refs, lo.Without(tc.Refs.All, tc.Refs.LastGenerated)...)
	refs = lo.Uniq(lo.Filter(refs, func(u string, _ int) bool { return utils.IsURL(u) }))
	if len(refs) > maxExtraReferences+1 {
		refs = refs[:maxExtraReferences+1]
	}
	return refs
}

func (s *Studio) generateImage(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
		return r
	}
	prefs := tc.Preferences()
	aspect := args.StringOr("aspect_ratio", prefs.AspectRatio)
	resolution := args.StringOr("resolution", "1K")
	refs := imageReferences(tc, args)
	prompt := s.preparePrompt(tc, prefs, args.String("prompt"), true)

	var res *types.ToolResult
	if len(refs) == 0 {
		model := s.pickImageModel(args.String("model"), prefs, prompt, false)
		res = s.runChain(tc, model, imageArgs(prompt, aspect, resolution), nil, types.ASSET_IMAGE)
	} else {
		res = s.identityImage(tc, prefs, prompt, aspect, resolution, refs)
	}
	res.Prompt = prompt
	return res
}

// identityImage tries the identity-aware model with every reference first and
// falls back to a realistic render with the primary face swapped in.
func (s *Studio) identityImage(ctx context.Context, prefs *types.UserPreferences, prompt, aspect, resolution string, refs []string) *types.ToolResult {
	primary, extra := refs[0], refs[1:]
	res := s.runChain(ctx, "nano_banana", imageArgs(prompt+"\n\n"+identityInstruction, aspect, resolution), imageInputAdapter(primary, extra), types.ASSET_IMAGE)
	if res.Success {
		res.MethodNotes = strings.TrimSpace(res.MethodNotes + " identity preserved from the first of " + fmt.Sprint(len(refs)) + " references")
		return res
	}
	attempts := res.Attempts

	base := s.runChain(ctx, "flux2", imageArgs(prompt, aspect, resolution), nil, types.ASSET_IMAGE)
	attempts = append(attempts, base.Attempts...)
	if !base.Success {
		base.Attempts = attempts
		return base
	}
	if prefs != nil && !prefs.AutoFaceSwap {
		base.Attempts = attempts
		base.MethodNotes = "identity model failed, rendered without references"
		return base
	}

	swapped, attempt, ok := s.faceSwap(ctx, base.AssetURL, primary)
	attempts = append(attempts, attempt)
	base.Attempts = attempts
	if ok {
		base.AssetURL = swapped
		base.ThumbnailURL = ""
		base.MethodNotes = fmt.Sprintf("rendered with %s, face swapped from the first reference", base.ModelUsed)
	} else {
		base.MethodNotes = "face swap failed, the face may differ from the reference"
	}
	return base
}

func (s *Studio) generateGrid(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
		return r
	}
	prefs := tc.Preferences()
	prompt := s.preparePrompt(tc, prefs, args.String("prompt"), false)
	gridPrompt := "A 3x3 grid of nine distinct variations of: " + prompt + ". Equal panels separated by thin white gutters, consistent subject across panels."

	refs := imageReferences(tc, args)
	var res *types.ToolResult
	if len(refs) > 0 {
		res = s.runChain(tc, "nano_banana", imageArgs(gridPrompt+"\n\n"+identityInstruction, "1:1", "2K"), imageInputAdapter(refs[0], refs[1:]), types.ASSET_IMAGE)
	} else {
		res = s.runChain(tc, s.pickImageModel(args.String("model"), prefs, prompt, false), imageArgs(gridPrompt, "1:1", "2K"), nil, types.ASSET_IMAGE)
	}
	res.Prompt = prompt
	if res.Success {
		res.Params = map[string]any{"grid": "3x3", "prompt": prompt}
		res.Message = "Grid ready. Use use_grid_panel with a panel number from 1 to 9 to continue from one variation."
	}
	return res
}

func (s *Studio) useGridPanel(tc *TurnContext, args Args) *types.ToolResult {
	panel := args.Int("panel", 0)
	if panel < 1 || panel > 9 {
		return types.ToolFailure("panel must be between 1 and 9")
	}
	if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
		return r
	}
	row, col := (panel-1)/3+1, (panel-1)%3+1
	prompt := fmt.Sprintf("Extract the panel at row %d, column %d of this 3x3 grid and render it as one full-frame image with more detail. Do not include other panels or gutters.", row, col)
	grid := args.String("image_url")
	res := s.runChain(tc, "nano_banana", imageArgs(prompt, args.StringOr("aspect_ratio", tc.Preferences().AspectRatio), "2K"), imageInputAdapter(grid, nil), types.ASSET_IMAGE)
	res.Prompt = prompt
	return res
}

// generateCampaign renders one visual per format for the same brief.
func (s *Studio) generateCampaign(tc *TurnContext, args Args) *types.ToolResult {
	formats := lo.Uniq(args.Strings("formats"))
	if len(formats) == 0 {
		formats = []string{"1:1", "9:16", "16:9"}
	}
	if len(formats) > 4 {
		formats = formats[:4]
	}
	prefs := tc.Preferences()
	brief := args.String("prompt")

	var entityIDs []string
	if tag := args.String("brand"); tag != "" {
		brand, err := NewEntityLogic(tc, s.core).Lookup(tag)
		if err != nil {
			return types.ToolFailure(fmt.Sprintf("brand %s not found", tag))
		}
		brief = fmt.Sprintf("%s\nBrand %s: %s", brief, brand.Name, brand.Description)
		entityIDs = append(entityIDs, brand.ID)
	}
	prompt := s.preparePrompt(tc, prefs, brief, true)
	refs := imageReferences(tc, args)

	res := &types.ToolResult{Success: true, Prompt: prompt, AssetType: types.ASSET_IMAGE, EntityIDs: entityIDs}
	var failures []string
	for _, format := range formats {
		if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
			if len(res.Media) == 0 {
				return r
			}
			failures = append(failures, format+": rate limited")
			break
		}
		var item *types.ToolResult
		if len(refs) > 0 {
			item = s.identityImage(tc, prefs, prompt, format, "2K", refs)
		} else {
			item = s.runChain(tc, s.pickImageModel(args.String("model"), prefs, prompt, false), imageArgs(prompt, format, "2K"), nil, types.ASSET_IMAGE)
		}
		res.Attempts = append(res.Attempts, item.Attempts...)
		if !item.Success {
			failures = append(failures, format+": "+item.Error)
			continue
		}
		res.ModelUsed = item.ModelUsed
		res.Media = append(res.Media, types.MediaItem{
			URL:          item.AssetURL,
			ThumbnailURL: item.ThumbnailURL,
			Type:         types.ASSET_IMAGE,
			Prompt:       prompt + " [" + format + "]",
		})
	}
	if len(res.Media) == 0 {
		res.Success = false
		res.Error = "every format failed: " + strings.Join(failures, "; ")
		return res
	}
	if len(failures) > 0 {
		res.MethodNotes = "some formats failed: " + strings.Join(failures, "; ")
	}
	res.Message = fmt.Sprintf("%d of %d campaign formats ready", len(res.Media), len(formats))
	return res
}

func (s *Studio) upscaleImage(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
		return r
	}
	factor := args.Int("scale", 2)
	if factor != 4 {
		factor = 2
	}
	return s.runChain(tc, "upscaler", map[string]any{
		"image_url":      args.String("image_url"),
		"upscale_factor": factor,
	}, nil, types.ASSET_IMAGE)
}

func (s *Studio) removeBackground(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
		return r
	}
	return s.runChain(tc, "bria_rmbg", map[string]any{"image_url": args.String("image_url")}, nil, types.ASSET_IMAGE)
}

func (s *Studio) outpaintImage(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
		return r
	}
	vargs := map[string]any{
		"image_url":    args.String("image_url"),
		"aspect_ratio": args.StringOr("aspect_ratio", "16:9"),
	}
	prompt := ""
	if args.Has("prompt") {
		prompt = s.translate(tc, args.String("prompt"))
		vargs["prompt"] = prompt
	}
	res := s.runChain(tc, "outpainter", vargs, nil, types.ASSET_IMAGE)
	res.Prompt = prompt
	return res
}

func (s *Studio) applyStyle(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
		return r
	}
	style := s.translate(tc, args.String("style"))
	prompt := "Restyle the image as " + style + ". Keep the composition, subjects and faces unchanged."
	res := s.runChain(tc, "style_transfer", map[string]any{
		"image_url": args.String("image_url"),
		"prompt":    prompt,
	}, nil, types.ASSET_IMAGE)
	res.Prompt = prompt
	return res
}
