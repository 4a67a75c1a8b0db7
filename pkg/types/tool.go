package types

// Attempt is one vendor call made while serving a tool.
type Attempt struct {
	Model      string `json:"model"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// BgGeneration hints the driver that a production continues in the background.
type BgGeneration struct {
	Type         AssetType `json:"type"`
	TaskType     string    `json:"task_type,omitempty"`
	PromptPrefix string    `json:"prompt_prefix"`
	Duration     int       `json:"duration,omitempty"`
}

// ToolResult is the normalized outcome of every tool call.
type ToolResult struct {
	Success          bool          `json:"success"`
	Error            string        `json:"error,omitempty"`
	Duplicate        bool          `json:"duplicate,omitempty"`
	RateLimited      bool          `json:"rate_limited,omitempty"`
	WaitSeconds      int           `json:"wait_seconds,omitempty"`
	AssetURL         string        `json:"asset_url,omitempty"`
	ThumbnailURL     string        `json:"thumbnail_url,omitempty"`
	AssetType        AssetType     `json:"asset_type,omitempty"`
	AssetID          string        `json:"asset_id,omitempty"`
	ParentAssetID    string        `json:"parent_asset_id,omitempty"`
	ModelUsed        string        `json:"model_used,omitempty"`
	MethodNotes      string        `json:"method_notes,omitempty"`
	Attempts         []Attempt     `json:"attempts,omitempty"`
	IsBackgroundTask bool          `json:"is_background_task,omitempty"`
	BgGeneration     *BgGeneration `json:"_bg_generation,omitempty"`
	Message          string        `json:"message,omitempty"`
	Prompt           string        `json:"prompt,omitempty"`
	Entity           *Entity       `json:"entity,omitempty"`
	Entities         []*Entity     `json:"entities,omitempty"`
	Media            []MediaItem   `json:"media,omitempty"`
	Data             any           `json:"data,omitempty"`

	// in-process only, consumed by the dispatcher when it records the asset
	Params    map[string]any `json:"-"`
	EntityIDs []string       `json:"-"`
	Persisted bool           `json:"-"`
}

// MediaItem is one extra artifact of a tool that produced several at once.
type MediaItem struct {
	AssetID      string    `json:"asset_id,omitempty"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Type         AssetType `json:"type"`
	Prompt       string    `json:"prompt,omitempty"`
}

func ToolFailure(msg string) *ToolResult {
	return &ToolResult{Success: false, Error: msg}
}

func ToolOK(msg string) *ToolResult {
	return &ToolResult{Success: true, Message: msg}
}

// ProducedMedia reports a successful result that carries a media URL.
func (r *ToolResult) ProducedMedia() bool {
	return r != nil && r.Success && (r.AssetURL != "" || len(r.Media) > 0)
}

// ProducedEntity reports a successful result that created or returned entities.
func (r *ToolResult) ProducedEntity() bool {
	return r != nil && r.Success && (r.Entity != nil || len(r.Entities) > 0)
}
