package v1

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
)

var (
	removalCue = regexp.MustCompile(`(?i)\b(remove|delete|erase|kaldır\w*|sil\w*)\b`)
	firstInt   = regexp.MustCompile(`\d+`)
)

type editStage struct {
	model string
	swap  bool
}

// editStages run in order until one succeeds. The identity-aware inpaint
// comes first and gets every reference; the rest only see the canvas.
var editStages = []editStage{
	{model: "nano_banana"},
	{model: "seedream_edit", swap: true},
	{model: "flux_kontext", swap: true},
	{model: "flux_img2img", swap: true},
}

func (s *Studio) editImage(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_IMAGE); r != nil {
		return r
	}
	g, err := s.vendorGateway()
	if err != nil {
		return types.ToolFailure(err.Error())
	}

	raw := args.String("prompt")
	canvas := args.String("image_url")
	refs := lo.Filter(args.Strings("all_reference_urls"), func(u string, _ int) bool { return u != canvas })
	face := args.String("face_reference_url")
	if face == canvas {
		face = ""
	}
	if face == "" && len(refs) > 0 {
		face = s.pickReference(tc, raw, refs)
	}
	instruction := s.editInstruction(tc, raw)
	timeout := studioCfg(s.core).EditStageTimeout.Duration
	swapAllowed := face != "" && tc.Preferences().AutoFaceSwap

	var attempts []types.Attempt
	finish := func(res *types.ToolResult) *types.ToolResult {
		res.Attempts = append(attempts, res.Attempts...)
		res.Prompt = instruction
		return res
	}

	if removalCue.MatchString(raw) {
		res := stage(tc, timeout, func(ctx context.Context) *types.ToolResult {
			return s.callModel(ctx, "object_remover", map[string]any{"image_url": canvas, "prompt": instruction})
		})
		if res.Success {
			res.MethodNotes = "object removal"
			return finish(res)
		}
		attempts = append(attempts, res.Attempts...)
	}

	stages := editStages
	if m := args.String("model"); m != "" && m != "auto" {
		if _, ok := g.Catalog().Get(m); ok {
			stages = append([]editStage{{model: m, swap: true}}, lo.Filter(editStages, func(st editStage, _ int) bool { return st.model != m })...)
		}
	}

	var last *types.ToolResult
	for i, st := range stages {
		res := stage(tc, timeout, func(ctx context.Context) *types.ToolResult {
			vargs := map[string]any{"prompt": instruction}
			if i == 0 && st.model == "nano_banana" {
				vargs["image_urls"] = append([]string{canvas}, refs...)
			} else {
				vargs["image_url"] = canvas
				vargs["image_urls"] = []string{canvas}
			}
			res := s.callModel(ctx, st.model, vargs)
			if !res.Success || !st.swap || !swapAllowed {
				return res
			}
			swapped, attempt, ok := s.faceSwap(ctx, res.AssetURL, face)
			res.Attempts = append(res.Attempts, attempt)
			if ok {
				res.AssetURL = swapped
				res.ThumbnailURL = ""
				res.MethodNotes = fmt.Sprintf("edited with %s, face restored from the reference", st.model)
			}
			return res
		})
		if res.Success {
			if res.MethodNotes == "" {
				res.MethodNotes = fmt.Sprintf("edited with %s at stage %d", st.model, i+1)
			}
			return finish(res)
		}
		attempts = append(attempts, res.Attempts...)
		last = res
		if tc.Err() != nil {
			break
		}
	}
	if last == nil {
		last = types.ToolFailure("no edit model available")
	} else {
		last.Attempts = nil
		last.Error = "every edit stage failed: " + last.Error
	}
	return finish(last)
}

// callModel invokes one model without its fallback chain.
func (s *Studio) callModel(ctx context.Context, model string, args map[string]any) *types.ToolResult {
	g, err := s.vendorGateway()
	if err != nil {
		return types.ToolFailure(err.Error())
	}
	out, attempt := g.Call(ctx, model, args)
	if !attempt.Success {
		res := types.ToolFailure(fmt.Sprintf("%s failed: %s", model, attempt.Error))
		res.Attempts = []types.Attempt{attempt}
		return res
	}
	res := mediaResult(out, model, types.ASSET_IMAGE)
	res.Attempts = []types.Attempt{attempt}
	return res
}

// editInstruction states what changes and what must stay, in English.
func (s *Studio) editInstruction(ctx context.Context, request string) string {
	text, err := s.llmText(ctx, s.core.Srv().AI().Cheap(), "edit_prompt", editPromptInstruction, request)
	if err == nil {
		return text
	}
	slog.Warn("edit instruction rewrite failed, using the request", slog.Any("error", err))
	return s.translate(ctx, request) + ". Keep everything else exactly the same, including the face and identity."
}

// pickReference asks the vision model which numbered reference matches the
// prompt best. Any answer that is not a valid number means the first one.
func (s *Studio) pickReference(ctx context.Context, prompt string, refs []string) string {
	if len(refs) == 1 {
		return refs[0]
	}
	vision := s.core.Srv().AI().Vision()
	if vision == nil {
		return refs[0]
	}
	parts := []types.ChatMessagePart{{
		Type: types.PART_TEXT,
		Text: fmt.Sprintf("Prompt: %s\nThere are %d references, numbered in the order shown.", prompt, len(refs)),
	}}
	for i, u := range refs {
		parts = append(parts,
			types.ChatMessagePart{Type: types.PART_TEXT, Text: "Reference " + strconv.Itoa(i+1) + ":"},
			types.ChatMessagePart{Type: types.PART_IMAGE, ImageURL: u})
	}

	timer := s.core.Metrics().LLMRequestTimer("reference_picker")
	resp, err := vision.Complete(ctx, ai.ChatRequest{
		System:    referencePickerPrompt,
		Messages:  []types.LLMMessage{{Role: types.ROLE_USER, Parts: parts}},
		MaxTokens: 8,
	})
	timer.ObserveDuration()
	if err != nil {
		s.core.Metrics().LLMErrorInc("reference_picker")
		return refs[0]
	}
	return refs[pickIndex(resp.Content, len(refs))]
}

func pickIndex(answer string, n int) int {
	m := firstInt.FindString(strings.TrimSpace(answer))
	if m == "" {
		return 0
	}
	i, err := strconv.Atoi(m)
	if err != nil || i < 1 || i > n {
		return 0
	}
	return i - 1
}

// editVideo restyles or alters an existing clip in the background.
func (s *Studio) editVideo(tc *TurnContext, args Args) *types.ToolResult {
	if r := s.checkRate(tc, core.LIMIT_CLASS_VIDEO); r != nil {
		return r
	}
	prompt := s.translate(tc, args.String("prompt"))
	return s.startVideoJob(tc, videoJobPayload{
		Prompt:    prompt,
		Model:     "video_edit",
		VideoURL:  args.String("video_url"),
		EntityIDs: tc.entityIDs(),
	})
}
