package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestAppend(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	strength, score := "fair", 4
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+password_history\s*\(password_id,\s*encrypted_password,\s*password_strength,\s*password_score\)`).
		WithArgs("p1", "old-cipher", "fair", 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("h1", time.Now()))

	h := &models.PasswordHistory{PasswordID: "p1", EncryptedPassword: "old-cipher", PasswordStrength: &strength, PasswordScore: &score}
	require.NoError(t, repo.Append(context.Background(), h))
	assert.Equal(t, "h1", h.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+password_history`).WillReturnError(errors.New("down"))

	err := repo.Append(context.Background(), &models.PasswordHistory{PasswordID: "p1"})
	assert.ErrorContains(t, err, "db error")
}

func TestList_NewestFirst(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	t1 := time.Now()
	t0 := t1.Add(-time.Hour)
	mock.ExpectQuery(`(?s)FROM\s+password_history\s+WHERE\s+password_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_id", "encrypted_password", "password_strength", "password_score", "created_at"}).
			AddRow("h2", "p1", "c2", "good", 6, t1).
			AddRow("h1", "p1", "c1", nil, nil, t0))

	got, err := repo.List(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "h2", got[0].ID)
	assert.Nil(t, got[1].PasswordScore)
}
