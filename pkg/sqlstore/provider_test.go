package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockProvider(t *testing.T) (*SqlProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProvider(sqlx.NewDb(db, "postgres")), mock
}

func TestTransactionCommits(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := p.Transaction(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, p.GetTxFromCtx(ctx))
		// nested call joins the outer transaction
		return p.Transaction(ctx, func(inner context.Context) error {
			assert.Same(t, p.GetTxFromCtx(ctx), p.GetTxFromCtx(inner))
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	want := errors.New("boom")
	err := p.Transaction(context.Background(), func(ctx context.Context) error { return want })
	assert.Equal(t, want, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnPanic(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := p.Transaction(context.Background(), func(ctx context.Context) error { panic("bad") })
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDBName(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery("SELECT current_database()").WillReturnRows(sqlmock.NewRows([]string{"current_database"}).AddRow("atelier"))

	name, err := p.GetDBName()
	require.NoError(t, err)
	assert.Equal(t, "atelier", name)
}
