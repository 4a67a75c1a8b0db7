package store

import (
	"context"
	"errors"

	"github.com/pgvector/pgvector-go"

	"github.com/atelier-studio/atelier/pkg/types"
)

// ErrDuplicateEntity is returned when (user_id, tag) already exists.
var ErrDuplicateEntity = errors.New("store: duplicate entity tag")

// Provider is the persistent store contract of the studio core. Every call
// runs in its own scope unless ctx carries a transaction started by Transaction.
type Provider interface {
	Transaction(ctx context.Context, next func(ctx context.Context) error) error

	SessionStore() SessionStore
	MessageStore() MessageStore
	EntityStore() EntityStore
	AssetStore() AssetStore
	TaskStore() TaskStore
	TrashStore() TrashStore
	PreferenceStore() PreferenceStore
	EntityVectorStore() EntityVectorStore
}

type SessionStore interface {
	Create(ctx context.Context, data types.Session) error
	Get(ctx context.Context, id string) (*types.Session, error)
	List(ctx context.Context, opts types.ListSessionOptions, page, pageSize uint64) ([]*types.Session, error)
	Update(ctx context.Context, id string, args UpdateSessionArgs) error
	Touch(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type UpdateSessionArgs struct {
	Title       *string
	Description *string
	Category    *string
	ProjectData types.JSONMap
}

type MessageStore interface {
	Create(ctx context.Context, data types.Message) error
	// ListRecent returns the newest limit messages of a session in chronological order.
	ListRecent(ctx context.Context, sessionID string, limit uint64) ([]*types.Message, error)
	Count(ctx context.Context, sessionID string) (int64, error)
}

type EntityStore interface {
	Create(ctx context.Context, data types.Entity) error
	Get(ctx context.Context, userID, id string) (*types.Entity, error)
	GetByTag(ctx context.Context, userID, tag string) (*types.Entity, error)
	List(ctx context.Context, opts types.ListEntityOptions) ([]*types.Entity, error)
	Update(ctx context.Context, data types.Entity) error
	Delete(ctx context.Context, userID, id string) error
	// Search is a case-insensitive substring match over name, description and attributes.
	Search(ctx context.Context, userID, query string, limit uint64) ([]*types.Entity, error)
}

type AssetStore interface {
	Create(ctx context.Context, data types.GeneratedAsset) error
	Get(ctx context.Context, id string) (*types.GeneratedAsset, error)
	GetByURL(ctx context.Context, sessionID, url string) (*types.GeneratedAsset, error)
	// ListRecent returns non-deleted assets, newest first.
	ListRecent(ctx context.Context, opts types.ListAssetOptions, limit uint64) ([]*types.GeneratedAsset, error)
	SetFavorite(ctx context.Context, id string, favorite bool) error
	SetDeleted(ctx context.Context, id string, deleted bool) error
	HardDelete(ctx context.Context, id string) error
	LinkEntities(ctx context.Context, assetID string, entityIDs []string) error
	UnlinkEntity(ctx context.Context, entityID string) error
	ListEntityIDs(ctx context.Context, assetID string) ([]string, error)
}

type TaskStore interface {
	Create(ctx context.Context, data types.Task) error
	Get(ctx context.Context, id string) (*types.Task, error)
	// ListChildren returns the sub-tasks of parentID ordered by priority.
	ListChildren(ctx context.Context, parentID string) ([]*types.Task, error)
	LatestByType(ctx context.Context, sessionID, taskType string) (*types.Task, error)
	UpdateStatus(ctx context.Context, id string, args UpdateTaskArgs) error
}

type UpdateTaskArgs struct {
	Status       types.TaskStatus
	OutputData   types.JSONMap
	ErrorMessage string
	StartedAt    int64
	CompletedAt  int64
}

type TrashStore interface {
	Create(ctx context.Context, data types.TrashItem) error
	Get(ctx context.Context, userID, id string) (*types.TrashItem, error)
	// List returns items still in the trashed status.
	List(ctx context.Context, userID string) ([]*types.TrashItem, error)
	SetStatus(ctx context.Context, id string, status types.TrashStatus) error
	ListExpired(ctx context.Context, before int64, limit uint64) ([]*types.TrashItem, error)
	Delete(ctx context.Context, id string) error
}

type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*types.UserPreferences, error)
	Upsert(ctx context.Context, data types.UserPreferences) error
}

type EntityVectorStore interface {
	Upsert(ctx context.Context, userID, entityID string, vec pgvector.Vector) error
	Delete(ctx context.Context, entityID string) error
	Query(ctx context.Context, userID string, vec pgvector.Vector, limit uint64) ([]types.EntitySearchHit, error)
}
