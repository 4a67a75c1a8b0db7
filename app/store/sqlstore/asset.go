package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/atelier-studio/atelier/pkg/register"
	"github.com/atelier-studio/atelier/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.AssetStore = NewAssetStore(provider)
	})
}

type AssetStore struct {
	CommonFields
	linkTable string
}

func NewAssetStore(provider SqlProviderAchieve) *AssetStore {
	repo := &AssetStore{linkTable: types.TABLE_ASSET_ENTITY.Name()}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_ASSET)
	repo.SetAllColumns("id", "session_id", "user_id", "asset_type", "url", "thumbnail_url", "prompt", "model_name", "params", "parent_asset_id", "is_favorite", "is_deleted", "created_at")
	return repo
}

func (s *AssetStore) Create(ctx context.Context, data types.GeneratedAsset) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().UnixMilli()
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.SessionID, data.UserID, data.Type, data.URL, data.ThumbnailURL, data.Prompt, data.ModelName, data.Params, data.ParentAssetID, data.IsFavorite, false, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *AssetStore) Get(ctx context.Context, id string) (*types.GeneratedAsset, error) {
	return s.getOne(ctx, sq.Eq{"id": id})
}

func (s *AssetStore) GetByURL(ctx context.Context, sessionID, url string) (*types.GeneratedAsset, error) {
	return s.getOne(ctx, sq.Eq{"session_id": sessionID, "url": url, "is_deleted": false})
}

func (s *AssetStore) getOne(ctx context.Context, where sq.Eq) (*types.GeneratedAsset, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(where).OrderBy("created_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res types.GeneratedAsset
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *AssetStore) ListRecent(ctx context.Context, opts types.ListAssetOptions, limit uint64) ([]*types.GeneratedAsset, error) {
	query := sq.Select(s.GetAllColumns()...).
		From(s.GetTable()).
		Where(sq.Eq{"is_deleted": false}).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit)
	if opts.SessionID != "" {
		query = query.Where(sq.Eq{"session_id": opts.SessionID})
	}
	if opts.UserID != "" {
		query = query.Where(sq.Eq{"user_id": opts.UserID})
	}
	if opts.Type != "" {
		query = query.Where(sq.Eq{"asset_type": opts.Type})
	}
	if opts.OnlyFavorite {
		query = query.Where(sq.Eq{"is_favorite": true})
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res []*types.GeneratedAsset
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *AssetStore) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return s.set(ctx, id, "is_favorite", favorite)
}

func (s *AssetStore) SetDeleted(ctx context.Context, id string, deleted bool) error {
	return s.set(ctx, id, "is_deleted", deleted)
}

func (s *AssetStore) set(ctx context.Context, id, column string, value any) error {
	queryString, args, err := sq.Update(s.GetTable()).Where(sq.Eq{"id": id}).Set(column, value).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *AssetStore) HardDelete(ctx context.Context, id string) error {
	queryString, args, err := sq.Delete(s.GetTable()).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}

	queryString, args, err = sq.Delete(s.linkTable).Where(sq.Eq{"asset_id": id}).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *AssetStore) LinkEntities(ctx context.Context, assetID string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	query := sq.Insert(s.linkTable).Columns("asset_id", "entity_id").Suffix("ON CONFLICT DO NOTHING")
	for _, id := range entityIDs {
		query = query.Values(assetID, id)
	}
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *AssetStore) UnlinkEntity(ctx context.Context, entityID string) error {
	queryString, args, err := sq.Delete(s.linkTable).Where(sq.Eq{"entity_id": entityID}).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *AssetStore) ListEntityIDs(ctx context.Context, assetID string) ([]string, error) {
	queryString, args, err := sq.Select("entity_id").From(s.linkTable).Where(sq.Eq{"asset_id": assetID}).OrderBy("entity_id").ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res []string
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
