package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/atelier-studio/atelier/pkg/register"
	"github.com/atelier-studio/atelier/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.EntityVectorStore = NewEntityVectorStore(provider)
	})
}

type EntityVectorStore struct {
	CommonFields
}

func NewEntityVectorStore(provider SqlProviderAchieve) *EntityVectorStore {
	repo := &EntityVectorStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_ENTITY_VECTOR)
	repo.SetAllColumns("entity_id", "user_id", "embedding", "updated_at")
	return repo
}

func (s *EntityVectorStore) Upsert(ctx context.Context, userID, entityID string, vec pgvector.Vector) error {
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(entityID, userID, vec, time.Now().Unix()).
		Suffix("ON CONFLICT (entity_id) DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at")

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *EntityVectorStore) Delete(ctx context.Context, entityID string) error {
	queryString, args, err := sq.Delete(s.GetTable()).Where(sq.Eq{"entity_id": entityID}).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// Query ranks the user's entities by cosine similarity.
func (s *EntityVectorStore) Query(ctx context.Context, userID string, vec pgvector.Vector, limit uint64) ([]types.EntitySearchHit, error) {
	cosColumn, vectorArgs, _ := sq.Expr("1 - (embedding <=> ?) as cos", vec).ToSql()
	query := sq.Select("entity_id", cosColumn).
		From(s.GetTable()).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("cos DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	args = append(vectorArgs, args...)

	var res []types.EntitySearchHit
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
