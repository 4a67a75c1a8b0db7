package v1

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
	"github.com/atelier-studio/atelier/pkg/vendor"
)

// prompts at least this long are already specific enough
const enrichBelowRunes = 100

var (
	aspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4", "3:2", "2:3", "21:9"}
	resolutions  = []string{"1K", "2K", "4K"}

	typographyCue = regexp.MustCompile(`(?i)\b(logo|typography|lettering|wordmark|icon|vector|poster text|yazı|tipografi)\b`)
	identityCue   = regexp.MustCompile(`(?i)\b(same (person|face|character)|keep (the )?face|aynı (kişi|yüz|karakter))\b`)
	vocalCue      = regexp.MustCompile(`(?i)\b(vocal|vocals|sing|singer|song with lyrics|lyrics|şarkı sözü|vokal|söyle)\b`)
)

func (s *Studio) vendorGateway() (*vendor.Gateway, error) {
	g := s.core.Srv().Vendor()
	if g == nil {
		return nil, fmt.Errorf("media generation is not configured")
	}
	return g, nil
}

// checkRate consumes one token of class; a refusal becomes the rate-limit result.
func (s *Studio) checkRate(tc *TurnContext, class string) *types.ToolResult {
	if s.core.Limiter() == nil {
		return nil
	}
	ok, wait := s.core.Limiter().Allow(tc.UserID, class)
	if ok {
		return nil
	}
	return rateLimited(wait)
}

func rateLimited(wait int) *types.ToolResult {
	return &types.ToolResult{
		Success:     false,
		RateLimited: true,
		WaitSeconds: wait,
		Error:       fmt.Sprintf("rate limited, retry in %d seconds", wait),
	}
}

// preparePrompt translates non-English prompts and enriches short ones.
// Quantitative parameters survive both passes verbatim.
func (s *Studio) preparePrompt(ctx context.Context, prefs *types.UserPreferences, prompt string, enrich bool) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return prompt
	}
	cheap := s.core.Srv().AI().Cheap()
	if cheap == nil {
		return prompt
	}

	if (prefs == nil || prefs.AutoTranslate) && !utils.IsEnglish(prompt) {
		if translated, err := s.llmText(ctx, cheap, "translate", translatePrompt, prompt); err == nil {
			prompt = translated
		} else {
			slog.Warn("prompt translation failed, using original", slog.Any("error", err))
		}
	}
	if enrich && len([]rune(prompt)) < enrichBelowRunes {
		if enriched, err := s.llmText(ctx, cheap, "enrich", enrichPrompt, prompt); err == nil {
			prompt = enriched
		} else {
			slog.Warn("prompt enrichment failed, using original", slog.Any("error", err))
		}
	}
	return prompt
}

// translate only translates, for scene prompts and edit instructions.
func (s *Studio) translate(ctx context.Context, text string) string {
	if text == "" || utils.IsEnglish(text) {
		return text
	}
	translated, err := s.llmText(ctx, s.core.Srv().AI().Cheap(), "translate", translatePrompt, text)
	if err != nil {
		slog.Warn("translation failed, using original", slog.Any("error", err))
		return text
	}
	return translated
}

func (s *Studio) llmText(ctx context.Context, m ai.ChatModel, target, system, user string) (string, error) {
	timer := s.core.Metrics().LLMRequestTimer(target)
	defer timer.ObserveDuration()
	text, err := ai.CompleteText(ctx, m, system, user)
	if err != nil {
		s.core.Metrics().LLMErrorInc(target)
	}
	return text, err
}

// pickImageModel resolves "auto" from content cues and the user default.
func (s *Studio) pickImageModel(requested string, prefs *types.UserPreferences, prompt string, hasRefs bool) string {
	if requested != "" && requested != "auto" {
		return requested
	}
	switch {
	case typographyCue.MatchString(prompt):
		return "recraft"
	case hasRefs || identityCue.MatchString(prompt):
		return "nano_banana"
	}
	if prefs != nil && prefs.ImageModel != "" && prefs.ImageModel != "auto" {
		return prefs.ImageModel
	}
	if g := s.core.Srv().Vendor(); g != nil {
		if def := g.Catalog().Default(vendor.KIND_IMAGE); def != "" {
			return def
		}
	}
	return "flux2"
}

func (s *Studio) resolveVideoModel(tc *TurnContext, requested string) string {
	if requested != "" && requested != "auto" {
		return requested
	}
	if p := tc.Preferences(); p != nil && p.VideoModel != "" && p.VideoModel != "auto" {
		return p.VideoModel
	}
	if g := s.core.Srv().Vendor(); g != nil {
		return g.Catalog().Default(vendor.KIND_VIDEO)
	}
	return "kling"
}

func (s *Studio) videoModelTakesImage(model string) bool {
	g := s.core.Srv().Vendor()
	return g != nil && g.Catalog().Has(model, vendor.CAP_IMAGE_TO_VIDEO)
}

// imageArgs builds the common vendor arguments of image endpoints.
func imageArgs(prompt, aspect, resolution string) map[string]any {
	args := map[string]any{"prompt": prompt, "num_images": 1}
	if aspect != "" {
		args["aspect_ratio"] = aspect
	}
	if resolution != "" {
		args["resolution"] = resolution
	}
	return args
}

// imageInputAdapter passes references in the field each endpoint kind expects.
func imageInputAdapter(primary string, refs []string) func(m *vendor.Model, args map[string]any) bool {
	return func(m *vendor.Model, args map[string]any) bool {
		switch {
		case m.Has(vendor.CAP_IDENTITY), m.Kind == vendor.KIND_EDIT:
			args["image_urls"] = append([]string{primary}, refs...)
		case primary != "":
			args["image_url"] = primary
		}
		return true
	}
}

// videoAdapter drops the frame for text-only models and skips models that
// cannot serve the request at all.
func videoAdapter(imageURL string) func(m *vendor.Model, args map[string]any) bool {
	return func(m *vendor.Model, args map[string]any) bool {
		if imageURL == "" {
			delete(args, "image_url")
			return m.Has(vendor.CAP_TEXT_TO_VIDEO)
		}
		if m.Has(vendor.CAP_IMAGE_TO_VIDEO) {
			args["image_url"] = imageURL
			return true
		}
		delete(args, "image_url")
		return m.Has(vendor.CAP_TEXT_TO_VIDEO)
	}
}

// runChain wraps Gateway.RunChain with the attempt log and result shape every
// media handler returns.
func (s *Studio) runChain(ctx context.Context, model string, args map[string]any, adapt func(m *vendor.Model, args map[string]any) bool, assetType types.AssetType) *types.ToolResult {
	g, err := s.vendorGateway()
	if err != nil {
		return types.ToolFailure(err.Error())
	}
	out, used, attempts, err := g.RunChain(ctx, model, args, adapt)
	if err != nil {
		res := types.ToolFailure(fmt.Sprintf("%s failed: %s", model, err.Error()))
		res.Attempts = attempts
		return res
	}
	res := mediaResult(out, used, assetType)
	res.Attempts = attempts
	if used != model {
		res.MethodNotes = fmt.Sprintf("%s unavailable, served by %s", model, used)
	}
	return res
}

func mediaResult(out *vendor.Output, model string, assetType types.AssetType) *types.ToolResult {
	return &types.ToolResult{
		Success:      true,
		AssetURL:     out.URL,
		ThumbnailURL: out.ThumbnailURL,
		AssetType:    assetType,
		ModelUsed:    model,
	}
}

// faceSwap puts the face of faceURL onto imageURL. The caller keeps its own
// result when the swap fails.
func (s *Studio) faceSwap(ctx context.Context, imageURL, faceURL string) (string, types.Attempt, bool) {
	g, err := s.vendorGateway()
	if err != nil {
		return "", types.Attempt{Model: "face_swap", Error: err.Error()}, false
	}
	out, attempt := g.Call(ctx, "face_swap", map[string]any{
		"base_image_url": imageURL,
		"swap_image_url": faceURL,
	})
	if !attempt.Success {
		return "", attempt, false
	}
	return out.URL, attempt, true
}

// stage runs fn within timeout so one slow vendor cannot stall a pipeline.
func stage(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) *types.ToolResult) *types.ToolResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func promptPrefix(prompt string) string {
	return utils.Prefix(prompt, 60)
}

func studioCfg(c *core.Core) core.StudioConfig {
	return c.Cfg().Studio
}
