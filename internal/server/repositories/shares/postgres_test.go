package shares

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
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

var shareCols = []string{"id", "password_id", "name", "owner_id", "shared_by_id", "shared_with_id", "status",
	"can_view", "can_edit", "can_share", "created_at", "accepted_at", "revoked_at"}

func TestCreate_Pending(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+shared_passwords.*RETURNING\s+id,\s*created_at`).
		WithArgs("p1", "owner", "owner", "bob", "pending", true, false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("s1", time.Now()))

	s, err := repo.Create(context.Background(), &models.Share{
		PasswordID: "p1", OwnerID: "owner", SharedByID: "owner", SharedWithID: "bob",
		Capabilities: models.Capabilities{CanView: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, models.SharePending, s.Status)
}

func TestCreate_DuplicateActiveIsConflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+shared_passwords`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "shared_passwords_active_pair_idx"})

	_, err := repo.Create(context.Background(), &models.Share{PasswordID: "p1", SharedWithID: "bob"})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+shared_passwords\s+s\s+JOIN\s+passwords\s+p.*WHERE\s+s\.id\s*=\s*\$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow("s1", "p1", "Mail", "owner", "owner", "bob", "accepted", true, true, false, now, now, nil))

	s, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ShareAccepted, s.Status)
	assert.True(t, s.CanEdit)
	assert.Equal(t, "Mail", s.PasswordName)
	assert.NotNil(t, s.AcceptedAt)
	assert.Nil(t, s.RevokedAt)

	mock.ExpectQuery(`FROM\s+shared_passwords`).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindActive(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)WHERE\s+s\.password_id\s*=\s*\$1\s+AND\s+s\.shared_with_id\s*=\s*\$2\s+AND\s+s\.status\s*<>\s*'revoked'`).
		WithArgs("p1", "bob").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background(), "p1", "bob")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetStatus(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	at := time.Now()
	mock.ExpectExec(`(?s)UPDATE\s+shared_passwords\s+SET\s+status\s*=\s*\$3.*WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*\$2`).
		WithArgs("s1", "pending", "accepted", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+shared_passwords`).
		WithArgs("s1", "pending", "rejected", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetStatus(context.Background(), "s1", models.SharePending, models.ShareAccepted, at))
	err := repo.SetStatus(context.Background(), "s1", models.SharePending, models.ShareRejected, at)
	assert.ErrorIs(t, err, common.ErrInvalidStateTransition)
}

func TestListSharedWith_SkipsRevoked(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)WHERE\s+s\.shared_with_id\s*=\s*\$1\s+AND\s+s\.status\s*<>\s*'revoked'\s+AND\s+NOT\s+p\.is_deleted`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow("s1", "p1", "Mail", "owner", "owner", "bob", "pending", true, false, false, time.Now(), nil, nil))

	got, err := repo.ListSharedWith(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SharePending, got[0].Status)
}

func TestListSharedBy(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)WHERE\s+s\.shared_by_id\s*=\s*\$1`).
		WithArgs("owner").
		WillReturnRows(sqlmock.NewRows(shareCols))

	got, err := repo.ListSharedBy(context.Background(), "owner")
	require.NoError(t, err)
	assert.Empty(t, got)
}
