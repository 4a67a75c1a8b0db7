package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/pkg/register"
	"github.com/atelier-studio/atelier/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.MessageStore = NewMessageStore(provider)
	})
}

type MessageStore struct {
	CommonFields
}

func NewMessageStore(provider SqlProviderAchieve) *MessageStore {
	repo := &MessageStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_MESSAGE)
	repo.SetAllColumns("id", "session_id", "user_id", "role", "content", "metadata", "created_at")
	return repo
}

func (s *MessageStore) Create(ctx context.Context, data types.Message) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().UnixMilli()
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.SessionID, data.UserID, data.Role, data.Content, data.Metadata, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *MessageStore) ListRecent(ctx context.Context, sessionID string, limit uint64) ([]*types.Message, error) {
	query := sq.Select(s.GetAllColumns()...).
		From(s.GetTable()).
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.Message
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return lo.Reverse(res), nil
}

func (s *MessageStore) Count(ctx context.Context, sessionID string) (int64, error) {
	queryString, args, err := sq.Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}
	var total int64
	if err = s.GetReplica(ctx).Get(&total, queryString, args...); err != nil {
		return 0, err
	}
	return total, nil
}
