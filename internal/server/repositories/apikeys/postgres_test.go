package apikeys

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var cols = []string{"id", "user_id", "name", "prefix", "key_hash", "expires_at", "last_used_at", "revoked_at", "created_at"}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+api_keys\s*\(user_id,\s*name,\s*prefix,\s*key_hash,\s*expires_at\)`).
		WithArgs("u1", "ci", "abcd1234", "$argon2id$...", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("k1", time.Now()))

	k, err := repo.Create(context.Background(), &models.APIKey{UserID: "u1", Name: "ci", Prefix: "abcd1234", KeyHash: "$argon2id$..."})
	require.NoError(t, err)
	assert.Equal(t, "k1", k.ID)
}

func TestGetByPrefix(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`FROM\s+api_keys\s+WHERE\s+prefix\s*=\s*\$1`).
		WithArgs("abcd1234").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("k1", "u1", "ci", "abcd1234", "hash", nil, nil, nil, now))

	k, err := repo.GetByPrefix(context.Background(), "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "u1", k.UserID)
	assert.True(t, k.Usable(now))

	mock.ExpectQuery(`FROM\s+api_keys`).WithArgs("zzz").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByPrefix(context.Background(), "zzz")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`FROM\s+api_keys\s+WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("k2", "u1", "b", "p2", "h", nil, nil, now, now).
			AddRow("k1", "u1", "a", "p1", "h", nil, now, nil, now))

	got, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Usable(now))
}

func TestRevoke(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE\s+api_keys\s+SET\s+revoked_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2`).
		WithArgs("k1", "u1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Revoke(context.Background(), "u1", "k1", now)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestTouchLastUsed(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE\s+api_keys\s+SET\s+last_used_at`).
		WithArgs("k1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.TouchLastUsed(context.Background(), "k1", now))
}
