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
		provider.stores.TaskStore = NewTaskStore(provider)
	})
}

type TaskStore struct {
	CommonFields
}

func NewTaskStore(provider SqlProviderAchieve) *TaskStore {
	repo := &TaskStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_TASK)
	repo.SetAllColumns("id", "session_id", "user_id", "task_type", "status", "priority", "parent_id", "title", "input_data", "output_data", "error_message", "created_at", "updated_at", "started_at", "completed_at")
	return repo
}

func (s *TaskStore) Create(ctx context.Context, data types.Task) error {
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	data.UpdatedAt = now

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.SessionID, data.UserID, data.Type, data.Status, data.Priority, data.ParentID, data.Title,
			data.InputData, data.OutputData, data.ErrorMessage, data.CreatedAt, data.UpdatedAt, data.StartedAt, data.CompletedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *TaskStore) Get(ctx context.Context, id string) (*types.Task, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res types.Task
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *TaskStore) ListChildren(ctx context.Context, parentID string) ([]*types.Task, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).
		From(s.GetTable()).
		Where(sq.Eq{"parent_id": parentID}).
		OrderBy("priority ASC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res []*types.Task
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *TaskStore) LatestByType(ctx context.Context, sessionID, taskType string) (*types.Task, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).
		From(s.GetTable()).
		Where(sq.Eq{"session_id": sessionID, "task_type": taskType}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res types.Task
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *TaskStore) UpdateStatus(ctx context.Context, id string, args store.UpdateTaskArgs) error {
	query := sq.Update(s.GetTable()).
		Where(sq.Eq{"id": id}).
		Set("status", args.Status).
		Set("updated_at", time.Now().Unix())
	if args.OutputData != nil {
		query = query.Set("output_data", args.OutputData)
	}
	if args.ErrorMessage != "" {
		query = query.Set("error_message", args.ErrorMessage)
	}
	if args.StartedAt != 0 {
		query = query.Set("started_at", args.StartedAt)
	}
	if args.CompletedAt != 0 {
		query = query.Set("completed_at", args.CompletedAt)
	}

	queryString, params, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, params...)
	return err
}
