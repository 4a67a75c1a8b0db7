package v1

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
)

func analysisTools(s *Studio) []*Tool {
	return []*Tool{
		{
			Name:         TOOL_ANALYZE_IMAGE,
			Description:  "Describe an image: subject, composition, colors, lighting, style and visible text. Uses the current image when image_url is omitted.",
			Family:       FAMILY_ANALYSIS,
			Capabilities: []ToolCapability{TOOL_CAP_IMAGE_INPUT, TOOL_CAP_READ_ONLY},
			Params: map[string]*schema.ParameterInfo{
				"image_url": strParam("Image to analyze", true),
				"question":  strParam("Optional specific question about the image", false),
			},
			Handler: s.analyzeImage,
		},
		{
			Name:         "analyze_video",
			Description:  "Describe a video from its poster frame.",
			Family:       FAMILY_ANALYSIS,
			Capabilities: []ToolCapability{TOOL_CAP_READ_ONLY},
			Params: map[string]*schema.ParameterInfo{
				"video_url": strParam("Video to analyze", true),
				"question":  strParam("Optional specific question about the video", false),
			},
			Handler: s.analyzeVideo,
		},
		{
			Name:         "compare_images",
			Description:  "Compare two or more images and describe the visual differences.",
			Family:       FAMILY_ANALYSIS,
			Capabilities: []ToolCapability{TOOL_CAP_READ_ONLY},
			Params: map[string]*schema.ParameterInfo{
				"image_urls": strListParam("Images to compare, at least two", true),
				"focus":      strParam("Optional aspect to focus on", false),
			},
			Handler: s.compareImages,
		},
	}
}

// describe sends images to the vision model with one question.
func (s *Studio) describe(ctx context.Context, question string, images []string) (string, error) {
	vision := s.core.Srv().AI().Vision()
	if vision == nil {
		return "", fmt.Errorf("image analysis is not configured")
	}
	parts := []types.ChatMessagePart{{Type: types.PART_TEXT, Text: question}}
	for i, u := range images {
		if len(images) > 1 {
			parts = append(parts, types.ChatMessagePart{Type: types.PART_TEXT, Text: "Image " + strconv.Itoa(i+1) + ":"})
		}
		parts = append(parts, types.ChatMessagePart{Type: types.PART_IMAGE, ImageURL: u})
	}

	timer := s.core.Metrics().LLMRequestTimer("vision")
	defer timer.ObserveDuration()
	resp, err := vision.Complete(ctx, ai.ChatRequest{
		System:   analyzePrompt,
		Messages: []types.LLMMessage{{Role: types.ROLE_USER, Parts: parts}},
	})
	if err != nil {
		s.core.Metrics().LLMErrorInc("vision")
		return "", err
	}
	s.core.Metrics().LLMTokensAdd("vision", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}

func (s *Studio) analyzeImage(tc *TurnContext, args Args) *types.ToolResult {
	question := args.StringOr("question", "Describe this image.")
	text, err := s.describe(tc, question, []string{args.String("image_url")})
	if err != nil {
		return types.ToolFailure("image analysis failed: " + err.Error())
	}
	res := types.ToolOK(text)
	res.Data = map[string]any{"image_url": args.String("image_url"), "analysis": text}
	return res
}

func (s *Studio) analyzeVideo(tc *TurnContext, args Args) *types.ToolResult {
	url := args.String("video_url")
	asset, err := s.core.Store().AssetStore().GetByURL(tc, tc.SessionID, url)
	if err != nil && err != sql.ErrNoRows {
		return types.ToolFailure("failed to look up the video: " + err.Error())
	}
	if asset == nil || asset.ThumbnailURL == "" {
		return types.ToolFailure("no frame of this video is available for analysis")
	}
	question := args.StringOr("question", "Describe this video frame and what the clip likely shows.")
	text, err := s.describe(tc, question, []string{asset.ThumbnailURL})
	if err != nil {
		return types.ToolFailure("video analysis failed: " + err.Error())
	}
	res := types.ToolOK(text)
	res.Data = map[string]any{"video_url": url, "prompt": asset.Prompt, "analysis": text}
	return res
}

func (s *Studio) compareImages(tc *TurnContext, args Args) *types.ToolResult {
	urls := args.Strings("image_urls")
	if len(urls) < 2 {
		return types.ToolFailure("compare_images needs at least two images")
	}
	question := "Compare these images and list the visual differences."
	if focus := args.String("focus"); focus != "" {
		question += " Focus on " + focus + "."
	}
	text, err := s.describe(tc, question, urls)
	if err != nil {
		return types.ToolFailure("comparison failed: " + err.Error())
	}
	return types.ToolOK(text)
}
