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
		provider.stores.TrashStore = NewTrashStore(provider)
	})
}

type TrashStore struct {
	CommonFields
}

func NewTrashStore(provider SqlProviderAchieve) *TrashStore {
	repo := &TrashStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_TRASH)
	repo.SetAllColumns("id", "user_id", "item_type", "original_id", "display_name", "original_data", "status", "expires_at", "created_at")
	return repo
}

func (s *TrashStore) Create(ctx context.Context, data types.TrashItem) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.ExpiresAt == 0 {
		data.ExpiresAt = time.Unix(data.CreatedAt, 0).Add(types.TRASH_RETENTION).Unix()
	}
	if data.Status == "" {
		data.Status = types.TRASH_TRASHED
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.UserID, data.ItemType, data.OriginalID, data.DisplayName, data.OriginalData, data.Status, data.ExpiresAt, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *TrashStore) Get(ctx context.Context, userID, id string) (*types.TrashItem, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"user_id": userID, "id": id}).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res types.TrashItem
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *TrashStore) List(ctx context.Context, userID string) ([]*types.TrashItem, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).
		From(s.GetTable()).
		Where(sq.Eq{"user_id": userID, "status": types.TRASH_TRASHED}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res []*types.TrashItem
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *TrashStore) SetStatus(ctx context.Context, id string, status types.TrashStatus) error {
	queryString, args, err := sq.Update(s.GetTable()).Where(sq.Eq{"id": id}).Set("status", status).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *TrashStore) ListExpired(ctx context.Context, before int64, limit uint64) ([]*types.TrashItem, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).
		From(s.GetTable()).
		Where(sq.Eq{"status": types.TRASH_TRASHED}).
		Where(sq.Lt{"expires_at": before}).
		OrderBy("expires_at ASC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res []*types.TrashItem
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *TrashStore) Delete(ctx context.Context, id string) error {
	queryString, args, err := sq.Delete(s.GetTable()).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
