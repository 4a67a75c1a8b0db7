package v1

import (
	"github.com/cloudwego/eino/schema"

	"github.com/atelier-studio/atelier/pkg/types"
)

var (
	imageModels = []string{"auto", "nano_banana", "flux2", "gpt_image", "reve", "seedream", "recraft"}
	videoModels = []string{"auto", "kling", "sora2", "veo", "seedance", "hailuo"}
)

func generationTools(s *Studio) []*Tool {
	return []*Tool{
		{
			Name:         TOOL_GENERATE_IMAGE,
			Description:  "Generate a new image from a prompt. Tagged entities and uploaded references are used for identity automatically.",
			Family:       FAMILY_GENERATION,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"prompt":         strParam("What to depict, with every detail the user gave", true),
				"aspect_ratio":   strParam("Aspect ratio", false, aspectRatios...),
				"resolution":     strParam("Output resolution", false, resolutions...),
				"model":          strParam("Model, auto picks from the prompt", false, imageModels...),
				"reference_urls": strListParam("Additional reference image urls", false),
			},
			Handler: s.generateImage,
		},
		{
			Name:         TOOL_GENERATE_VIDEO,
			Description:  "Generate a short video of at most 10 seconds in the background. Animates the current image when the model supports it.",
			Family:       FAMILY_GENERATION,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_IMAGE_INPUT, TOOL_CAP_BACKGROUND},
			Produces:     types.ASSET_VIDEO,
			Params: map[string]*schema.ParameterInfo{
				"prompt":       strParam("What happens in the video", true),
				"duration":     intParam("Length in seconds, 10 at most", false),
				"aspect_ratio": strParam("Aspect ratio", false, "16:9", "9:16", "1:1"),
				"model":        strParam("Model, auto uses the user default", false, videoModels...),
				"image_url":    strParam("Start frame to animate", false),
			},
			Handler: s.generateVideo,
		},
		{
			Name:         TOOL_GENERATE_LONG_VIDEO,
			Description:  "Produce a video longer than 10 seconds from an approved scene plan. Only call after the user approved the plan.",
			Family:       FAMILY_GENERATION,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_BACKGROUND},
			Produces:     types.ASSET_VIDEO,
			Params: map[string]*schema.ParameterInfo{
				"scene_descriptions": objListParam("Scenes in order, at least two", true, map[string]*schema.ParameterInfo{
					"prompt":    strParam("English prompt of the scene", true),
					"duration":  intParam("Scene length in seconds", false),
					"image_url": strParam("Optional start frame of the scene", false),
					"model":     strParam("Optional model of the scene", false, videoModels...),
				}),
				"total_duration": intParam("Target length in seconds, shared by the scenes without a duration", false),
				"aspect_ratio":   strParam("Aspect ratio", false, "16:9", "9:16", "1:1"),
				"model":          strParam("Default model of the scenes", false, videoModels...),
			},
			Handler: s.generateLongVideo,
		},
		{
			Name:         TOOL_GENERATE_MUSIC,
			Description:  "Generate music. Lyrics or a request for vocals produce a song, otherwise an instrumental.",
			Family:       FAMILY_GENERATION,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION},
			Produces:     types.ASSET_AUDIO,
			Params: map[string]*schema.ParameterInfo{
				"prompt":   strParam("Genre, mood, instruments", true),
				"lyrics":   strParam("Optional lyrics", false),
				"duration": intParam("Length in seconds for instrumentals", false),
			},
			Handler: s.generateMusic,
		},
		{
			Name:         "generate_grid",
			Description:  "Generate a 3x3 grid of nine variations to choose from.",
			Family:       FAMILY_GENERATION,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"prompt":         strParam("What the variations show", true),
				"model":          strParam("Model", false, imageModels...),
				"reference_urls": strListParam("Additional reference image urls", false),
			},
			Handler: s.generateGrid,
		},
		{
			Name:         "generate_campaign",
			Description:  "Generate one visual per format for a campaign brief, optionally for a saved brand.",
			Family:       FAMILY_GENERATION,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"prompt":         strParam("Campaign brief", true),
				"formats":        strListParam("Aspect ratios to render, up to four", false),
				"brand":          strParam("Brand @tag", false),
				"model":          strParam("Model", false, imageModels...),
				"reference_urls": strListParam("Additional reference image urls", false),
			},
			Handler: s.generateCampaign,
		},
	}
}

func editingTools(s *Studio) []*Tool {
	return []*Tool{
		{
			Name:         TOOL_EDIT_IMAGE,
			Description:  "Edit an existing image while keeping identity. Uses the current image when image_url is omitted.",
			Family:       FAMILY_EDITING,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_IMAGE_INPUT},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"image_url":          strParam("Image to edit", true),
				"prompt":             strParam("The change to make", true),
				"face_reference_url": strParam("Face to preserve", false),
				"all_reference_urls": strListParam("Identity references in priority order", false),
				"model":              strParam("Edit model", false, "auto", "nano_banana", "seedream_edit", "flux_kontext", "qwen_edit", "flux_img2img"),
			},
			Handler: s.editImage,
		},
		{
			Name:         "edit_video",
			Description:  "Change an existing video according to a prompt, in the background.",
			Family:       FAMILY_EDITING,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_BACKGROUND},
			Produces:     types.ASSET_VIDEO,
			Params: map[string]*schema.ParameterInfo{
				"video_url": strParam("Video to edit", true),
				"prompt":    strParam("The change to make", true),
			},
			Handler: s.editVideo,
		},
		{
			Name:         "outpaint_image",
			Description:  "Extend an image beyond its borders to a new aspect ratio.",
			Family:       FAMILY_EDITING,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_IMAGE_INPUT},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"image_url":    strParam("Image to extend", true),
				"aspect_ratio": strParam("Target aspect ratio", false, aspectRatios...),
				"prompt":       strParam("What the new area should contain", false),
			},
			Handler: s.outpaintImage,
		},
		{
			Name:         "upscale_image",
			Description:  "Upscale an image.",
			Family:       FAMILY_EDITING,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_IMAGE_INPUT},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"image_url": strParam("Image to upscale", true),
				"scale":     intParam("2 or 4", false),
			},
			Handler: s.upscaleImage,
		},
		{
			Name:         "remove_background",
			Description:  "Remove the background of an image.",
			Family:       FAMILY_EDITING,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_IMAGE_INPUT},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"image_url": strParam("Image to cut out", true),
			},
			Handler: s.removeBackground,
		},
		{
			Name:         "apply_style",
			Description:  "Restyle an image, for example as watercolor or anime, keeping the composition.",
			Family:       FAMILY_EDITING,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION, TOOL_CAP_IMAGE_INPUT},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"image_url": strParam("Image to restyle", true),
				"style":     strParam("Target style", true),
			},
			Handler: s.applyStyle,
		},
		{
			Name:         "add_audio_to_video",
			Description:  "Put an audio track onto a video, replacing or mixing with the original sound.",
			Family:       FAMILY_EDITING,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION},
			Produces:     types.ASSET_VIDEO,
			Params: map[string]*schema.ParameterInfo{
				"video_url": strParam("Video", true),
				"audio_url": strParam("Audio track", true),
				"mode":      strParam("replace drops the original sound, mix blends both", false, "replace", "mix"),
			},
			Handler: s.addAudioToVideo,
		},
	}
}
