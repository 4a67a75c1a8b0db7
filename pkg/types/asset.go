package types

type AssetType string

const (
	ASSET_IMAGE AssetType = "image"
	ASSET_VIDEO AssetType = "video"
	ASSET_AUDIO AssetType = "audio"
)

func (t AssetType) Icon() string {
	switch t {
	case ASSET_VIDEO:
		return "🎬"
	case ASSET_AUDIO:
		return "🎵"
	default:
		return "🖼️"
	}
}

type GeneratedAsset struct {
	ID            string    `json:"id" db:"id"`
	SessionID     string    `json:"session_id" db:"session_id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Type          AssetType `json:"type" db:"asset_type"`
	URL           string    `json:"url" db:"url"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	Prompt        string    `json:"prompt" db:"prompt"`
	ModelName     string    `json:"model_name" db:"model_name"`
	Params        JSONMap   `json:"params" db:"params"`
	ParentAssetID string    `json:"parent_asset_id,omitempty" db:"parent_asset_id"`
	IsFavorite    bool      `json:"is_favorite" db:"is_favorite"`
	IsDeleted     bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt     int64     `json:"created_at" db:"created_at"`

	EntityIDs []string `json:"entity_ids,omitempty" db:"-"`
}

type ListAssetOptions struct {
	SessionID    string
	UserID       string
	Type         AssetType
	OnlyFavorite bool
}
