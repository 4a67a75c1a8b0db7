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
		provider.stores.EntityStore = NewEntityStore(provider)
	})
}

type EntityStore struct {
	CommonFields
}

func NewEntityStore(provider SqlProviderAchieve) *EntityStore {
	repo := &EntityStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_ENTITY)
	repo.SetAllColumns("id", "user_id", "session_id", "entity_type", "name", "tag", "description", "attributes", "reference_image_url", "is_deleted", "created_at", "updated_at")
	return repo
}

// Create fails with store.ErrDuplicateEntity when the user already owns the tag.
func (s *EntityStore) Create(ctx context.Context, data types.Entity) error {
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	data.UpdatedAt = now

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.UserID, data.SessionID, data.Type, data.Name, data.Tag, data.Description, data.Attributes, data.ReferenceImageURL, false, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *EntityStore) Get(ctx context.Context, userID, id string) (*types.Entity, error) {
	return s.getOne(ctx, sq.Eq{"user_id": userID, "id": id, "is_deleted": false})
}

func (s *EntityStore) GetByTag(ctx context.Context, userID, tag string) (*types.Entity, error) {
	return s.getOne(ctx, sq.Eq{"user_id": userID, "tag": tag, "is_deleted": false})
}

func (s *EntityStore) getOne(ctx context.Context, where sq.Eq) (*types.Entity, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(where).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res types.Entity
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *EntityStore) List(ctx context.Context, opts types.ListEntityOptions) ([]*types.Entity, error) {
	query := sq.Select(s.GetAllColumns()...).
		From(s.GetTable()).
		Where(sq.Eq{"user_id": opts.UserID, "is_deleted": false}).
		OrderBy("created_at DESC")
	if opts.Type != "" {
		query = query.Where(sq.Eq{"entity_type": opts.Type})
	}
	if len(opts.Tags) > 0 {
		query = query.Where(sq.Eq{"tag": opts.Tags})
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res []*types.Entity
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *EntityStore) Update(ctx context.Context, data types.Entity) error {
	query := sq.Update(s.GetTable()).
		Where(sq.Eq{"user_id": data.UserID, "id": data.ID}).
		Set("name", data.Name).
		Set("description", data.Description).
		Set("attributes", data.Attributes).
		Set("reference_image_url", data.ReferenceImageURL).
		Set("updated_at", time.Now().Unix())

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *EntityStore) Delete(ctx context.Context, userID, id string) error {
	queryString, args, err := sq.Delete(s.GetTable()).Where(sq.Eq{"user_id": userID, "id": id}).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *EntityStore) Search(ctx context.Context, userID, query string, limit uint64) ([]*types.Entity, error) {
	like := "%" + query + "%"
	q := sq.Select(s.GetAllColumns()...).
		From(s.GetTable()).
		Where(sq.Eq{"user_id": userID, "is_deleted": false}).
		Where(sq.Or{
			sq.ILike{"name": like},
			sq.ILike{"description": like},
			sq.ILike{"attributes::text": like},
		}).
		OrderBy("updated_at DESC").
		Limit(limit)

	queryString, args, err := q.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res []*types.Entity
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
