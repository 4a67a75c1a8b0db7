package types

import "time"

// TRASH_RETENTION is how long a trashed item stays restorable.
const TRASH_RETENTION = 3 * 24 * time.Hour

type TrashStatus string

const (
	TRASH_TRASHED  TrashStatus = "trashed"
	TRASH_RESTORED TrashStatus = "restored"
	TRASH_PURGED   TrashStatus = "purged"
)

const (
	TRASH_ITEM_ENTITY = "entity"
	TRASH_ITEM_ASSET  = "asset"
)

type TrashItem struct {
	ID           string      `json:"id" db:"id"`
	UserID       string      `json:"user_id" db:"user_id"`
	ItemType     string      `json:"item_type" db:"item_type"`
	OriginalID   string      `json:"original_id" db:"original_id"`
	DisplayName  string      `json:"display_name" db:"display_name"`
	OriginalData JSONMap     `json:"original_data" db:"original_data"`
	Status       TrashStatus `json:"status" db:"status"`
	ExpiresAt    int64       `json:"expires_at" db:"expires_at"`
	CreatedAt    int64       `json:"created_at" db:"created_at"`
}
