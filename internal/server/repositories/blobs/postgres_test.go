package blobs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passport/internal/common"
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

var cols = []string{"user_id", "storage_key", "version", "upload_status", "updated_at"}

func TestBeginUpload_BumpsVersion(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+vault_blobs.*ON\s+CONFLICT\s+\(user_id\).*version\s*=\s*vault_blobs\.version\s*\+\s*1`).
		WithArgs("u1", "vaults/u1/k").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "vaults/u1/k", 3, "pending", time.Now()))

	b, err := repo.BeginUpload(context.Background(), "u1", "vaults/u1/k")
	require.NoError(t, err)
	assert.EqualValues(t, 3, b.Version)
	assert.Equal(t, StatusPending, b.UploadStatus)
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+vault_blobs\s+WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMarkUploaded(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+vault_blobs\s+SET\s+upload_status\s*=\s*'completed'`).
		WithArgs("u1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+vault_blobs`).
		WithArgs("u1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkUploaded(context.Background(), "u1", 3))
	assert.ErrorIs(t, repo.MarkUploaded(context.Background(), "u1", 2), common.ErrorNotFound)
}
