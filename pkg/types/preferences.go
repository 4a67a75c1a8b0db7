package types

type UserPreferences struct {
	UserID           string     `json:"user_id" db:"user_id"`
	AspectRatio      string     `json:"aspect_ratio" db:"aspect_ratio"`
	Style            string     `json:"style" db:"style"`
	ImageModel       string     `json:"image_model" db:"image_model"`
	VideoModel       string     `json:"video_model" db:"video_model"`
	AutoFaceSwap     bool       `json:"auto_face_swap" db:"auto_face_swap"`
	AutoUpscale      bool       `json:"auto_upscale" db:"auto_upscale"`
	AutoTranslate    bool       `json:"auto_translate" db:"auto_translate"`
	Language         string     `json:"language" db:"language"`
	FavoriteEntities StringList `json:"favorite_entities" db:"favorite_entities"`
	Learned          JSONMap    `json:"learned" db:"learned"`
	UpdatedAt        int64      `json:"updated_at" db:"updated_at"`
}

func DefaultPreferences(userID string) *UserPreferences {
	return &UserPreferences{
		UserID:        userID,
		AspectRatio:   "1:1",
		Style:         "photoreal",
		ImageModel:    "auto",
		VideoModel:    "auto",
		AutoFaceSwap:  true,
		AutoTranslate: true,
		Language:      LANGUAGE_TR_KEY,
		Learned:       JSONMap{},
	}
}
