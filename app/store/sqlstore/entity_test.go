package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/sqlstore"
	"github.com/atelier-studio/atelier/pkg/types"
)

func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProvider(sqlstore.NewProvider(sqlx.NewDb(db, "postgres"))), mock
}

func TestProviderWiresAllStores(t *testing.T) {
	p, _ := newMockProvider(t)
	assert.NotNil(t, p.SessionStore())
	assert.NotNil(t, p.MessageStore())
	assert.NotNil(t, p.EntityStore())
	assert.NotNil(t, p.AssetStore())
	assert.NotNil(t, p.TaskStore())
	assert.NotNil(t, p.TrashStore())
	assert.NotNil(t, p.PreferenceStore())
	assert.NotNil(t, p.EntityVectorStore())
}

func TestEntityCreateDuplicate(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO atelier_entity")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uniq_atelier_entity_user_tag"})

	err := p.EntityStore().Create(context.Background(), types.Entity{ID: "1", UserID: "u1", Type: types.ENTITY_CHARACTER, Name: "Emre", Tag: "@emre"})
	assert.True(t, errors.Is(err, store.ErrDuplicateEntity))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityGetByTag(t *testing.T) {
	p, mock := newMockProvider(t)
	rows := sqlmock.NewRows([]string{"id", "user_id", "session_id", "entity_type", "name", "tag", "description", "attributes", "reference_image_url", "is_deleted", "created_at", "updated_at"}).
		AddRow("1", "u1", "", "character", "Emre", "@emre", "friend", []byte(`{"hair":"black"}`), "https://cdn/emre.png", false, 1, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id")).
		WithArgs(false, "@emre", "u1").
		WillReturnRows(rows)

	e, err := p.EntityStore().GetByTag(context.Background(), "u1", "@emre")
	require.NoError(t, err)
	assert.Equal(t, "Emre", e.Name)
	assert.Equal(t, "black", e.Attributes["hair"])
}

func TestEntityGetMissing(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id")).WillReturnError(sql.ErrNoRows)

	_, err := p.EntityStore().GetByTag(context.Background(), "u1", "@nobody")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMessageListRecentIsChronological(t *testing.T) {
	p, mock := newMockProvider(t)
	rows := sqlmock.NewRows([]string{"id", "session_id", "user_id", "role", "content", "metadata", "created_at"}).
		AddRow("3", "s1", "u1", "assistant", "third", []byte(`{}`), 3).
		AddRow("2", "s1", "u1", "user", "second", []byte(`{}`), 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id")).WillReturnRows(rows)

	msgs, err := p.MessageStore().ListRecent(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Content)
	assert.Equal(t, "third", msgs[1].Content)
}
