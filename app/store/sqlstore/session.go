package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/register"
	"github.com/atelier-studio/atelier/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.SessionStore = NewSessionStore(provider)
	})
}

type SessionStore struct {
	CommonFields
}

func NewSessionStore(provider SqlProviderAchieve) *SessionStore {
	repo := &SessionStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_SESSION)
	repo.SetAllColumns("id", "user_id", "title", "description", "category", "project_data", "is_active", "created_at", "updated_at")
	return repo
}

func (s *SessionStore) Create(ctx context.Context, data types.Session) error {
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = now
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.UserID, data.Title, data.Description, data.Category, data.ProjectData, data.IsActive, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *SessionStore) Get(ctx context.Context, id string) (*types.Session, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})
	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Session
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *SessionStore) List(ctx context.Context, opts types.ListSessionOptions, page, pageSize uint64) ([]*types.Session, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("updated_at DESC")
	if opts.UserID != "" {
		query = query.Where(sq.Eq{"user_id": opts.UserID})
	}
	if opts.OnlyActive {
		query = query.Where(sq.Eq{"is_active": true})
	}
	if opts.IdleBefore > 0 {
		query = query.Where(sq.Lt{"updated_at": opts.IdleBefore})
	}
	if page != types.NO_PAGINATION && pageSize != types.NO_PAGINATION {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.Session
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SessionStore) Update(ctx context.Context, id string, args store.UpdateSessionArgs) error {
	query := sq.Update(s.GetTable()).Where(sq.Eq{"id": id}).Set("updated_at", time.Now().Unix())
	if args.Title != nil {
		query = query.Set("title", *args.Title)
	}
	if args.Description != nil {
		query = query.Set("description", *args.Description)
	}
	if args.Category != nil {
		query = query.Set("category", *args.Category)
	}
	if args.ProjectData != nil {
		query = query.Set("project_data", args.ProjectData)
	}

	queryString, params, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, params...)
	return err
}

func (s *SessionStore) Touch(ctx context.Context, id string) error {
	queryString, args, err := sq.Update(s.GetTable()).Where(sq.Eq{"id": id}).Set("updated_at", time.Now().Unix()).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *SessionStore) SetActive(ctx context.Context, id string, active bool) error {
	queryString, args, err := sq.Update(s.GetTable()).
		Where(sq.Eq{"id": id}).
		Set("is_active", active).
		Set("updated_at", time.Now().Unix()).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
