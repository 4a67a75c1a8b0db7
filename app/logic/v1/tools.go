package v1

const (
	TOOL_GENERATE_IMAGE      = "generate_image"
	TOOL_GENERATE_VIDEO      = "generate_video"
	TOOL_GENERATE_LONG_VIDEO = "generate_long_video"
	TOOL_GENERATE_MUSIC      = "generate_music"
	TOOL_EDIT_IMAGE          = "edit_image"
	TOOL_ANALYZE_IMAGE       = "analyze_image"
	TOOL_CREATE_CHARACTER    = "create_character"
	TOOL_SEARCH_WEB          = "search_web"
	TOOL_MANAGE_PLUGIN       = "manage_plugin"
	TOOL_CREATE_ROADMAP      = "create_roadmap"
)

// studioTools is the closed catalog in the order it is offered to the model.
func studioTools(s *Studio) []*Tool {
	var tools []*Tool
	tools = append(tools, generationTools(s)...)
	tools = append(tools, editingTools(s)...)
	tools = append(tools, analysisTools(s)...)
	tools = append(tools, entityTools(s)...)
	tools = append(tools, memoryTools(s)...)
	tools = append(tools, searchTools(s)...)
	tools = append(tools, assetTools(s)...)
	tools = append(tools, adminTools(s)...)
	tools = append(tools, planningTools(s)...)
	return tools
}
