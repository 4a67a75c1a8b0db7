package types

type EntityType string

const (
	ENTITY_CHARACTER EntityType = "character"
	ENTITY_LOCATION  EntityType = "location"
	ENTITY_BRAND     EntityType = "brand"
	ENTITY_WARDROBE  EntityType = "wardrobe"
	ENTITY_OBJECT    EntityType = "object"
)

var EntityTypes = []EntityType{ENTITY_CHARACTER, ENTITY_LOCATION, ENTITY_BRAND, ENTITY_WARDROBE, ENTITY_OBJECT}

func (t EntityType) Valid() bool {
	for _, v := range EntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Entity struct {
	ID                string     `json:"id" db:"id"`
	UserID            string     `json:"user_id" db:"user_id"`
	SessionID         string     `json:"session_id,omitempty" db:"session_id"`
	Type              EntityType `json:"type" db:"entity_type"`
	Name              string     `json:"name" db:"name"`
	Tag               string     `json:"tag" db:"tag"`
	Description       string     `json:"description" db:"description"`
	Attributes        JSONMap    `json:"attributes" db:"attributes"`
	ReferenceImageURL string     `json:"reference_image_url,omitempty" db:"reference_image_url"`
	IsDeleted         bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt         int64      `json:"created_at" db:"created_at"`
	UpdatedAt         int64      `json:"updated_at" db:"updated_at"`
}

type ListEntityOptions struct {
	UserID string
	Type   EntityType
	Tags   []string
}

// EntitySearchHit is one result of a semantic entity lookup.
type EntitySearchHit struct {
	EntityID string  `json:"entity_id" db:"entity_id"`
	Cos      float32 `json:"cos" db:"cos"`
}
