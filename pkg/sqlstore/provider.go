package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

type SqlCommons interface {
	GetTable(...any) string
}

type ConnectConfig interface {
	FormatDSN() string
}

type SqlProvider struct {
	master   *sqlx.DB
	replicas []*sqlx.DB
	next     atomic.Uint64
	dbname   string
}

type TransactionKey struct{}

func (s *SqlProvider) GetTxFromCtx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(TransactionKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

func (s *SqlProvider) GetMaster() *sqlx.DB {
	return s.master
}

// GetReplica rotates over the configured replicas.
func (s *SqlProvider) GetReplica() *sqlx.DB {
	n := s.next.Add(1)
	return s.replicas[int(n%uint64(len(s.replicas)))]
}

// Transaction runs next inside one transaction. Nested calls join the
// transaction already carried by ctx.
func (s *SqlProvider) Transaction(ctx context.Context, next func(ctx context.Context) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if s.GetTxFromCtx(ctx) != nil {
		return next(ctx)
	}

	tx, err := s.GetMaster().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			slog.Error("Transaction rollbacked", slog.Any("recover", r))
			err = fmt.Errorf("transaction panic: %v", r)
			return
		}
		if err != nil {
			_ = tx.Rollback()
			slog.Error("Transaction rollbacked", slog.String("error", err.Error()))
		}
	}()

	if err = next(context.WithValue(ctx, TransactionKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func NewProvider(master *sqlx.DB, replicas ...*sqlx.DB) *SqlProvider {
	if len(replicas) == 0 {
		replicas = []*sqlx.DB{master}
	}
	return &SqlProvider{master: master, replicas: replicas}
}

func MustSetupProvider(m ConnectConfig, s ...ConnectConfig) *SqlProvider {
	master := sqlx.MustOpen("postgres", m.FormatDSN())

	var replicas []*sqlx.DB
	for _, v := range s {
		replicas = append(replicas, sqlx.MustOpen("postgres", v.FormatDSN()))
	}
	return NewProvider(master, replicas...)
}

func (s *SqlProvider) GetDBName() (string, error) {
	if s.dbname == "" {
		var dbName string
		if err := s.GetMaster().QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
			return "", err
		}
		s.dbname = dbName
	}
	return s.dbname, nil
}
