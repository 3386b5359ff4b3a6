package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ = `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING\s+id,\s*created_at$`
	selectQ = `(?s)^SELECT\s+id,\s*username,\s*password_hash,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`
	passwdQ = `^UPDATE users SET password_hash = \$2 WHERE username = \$1$`
	renameQ = `^UPDATE users SET username = \$2 WHERE username = \$1$`
	listQ   = `^SELECT username FROM users ORDER BY username$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(insertQ).
		WithArgs("Luffy", "$argon2id$hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	got, err := repo.Create(context.Background(), &models.User{UserName: "Luffy", PasswordHash: "$argon2id$hash"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "Luffy", got.UserName)
	assert.Equal(t, now, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).
		WithArgs("Luffy", "h").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), &models.User{UserName: "Luffy", PasswordHash: "h"})
	assert.ErrorIs(t, err, common.ErrDuplicateUsername)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).
		WithArgs("Luffy", "h").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{UserName: "Luffy", PasswordHash: "h"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetUserByLogin(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(selectQ).
			WithArgs("Luffy").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
				AddRow(int64(1), "Luffy", "hash", time.Now()))

		got, err := repo.GetUserByLogin(context.Background(), "Luffy")
		require.NoError(t, err)
		assert.Equal(t, "Luffy", got.UserName)
		assert.Equal(t, "hash", got.PasswordHash)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(selectQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetUserByLogin(context.Background(), "ghost")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(selectQ).WithArgs("Luffy").WillReturnError(errors.New("db err"))

		_, err := repo.GetUserByLogin(context.Background(), "Luffy")
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestUpdatePasswordHash(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(passwdQ).WithArgs("Luffy", "new").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdatePasswordHash(context.Background(), "Luffy", "new"))

	mock.ExpectExec(passwdQ).WithArgs("ghost", "new").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdatePasswordHash(context.Background(), "ghost", "new"), common.ErrorNotFound)

	mock.ExpectExec(passwdQ).WithArgs("Luffy", "new").WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))
	err := repo.UpdatePasswordHash(context.Background(), "Luffy", "new")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected error")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRename(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(renameQ).WithArgs("Luffy", "Monkey").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Rename(context.Background(), "Luffy", "Monkey"))

	mock.ExpectExec(renameQ).WithArgs("Luffy", "Zoro").WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, repo.Rename(context.Background(), "Luffy", "Zoro"), common.ErrDuplicateUsername)

	mock.ExpectExec(renameQ).WithArgs("ghost", "x").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Rename(context.Background(), "ghost", "x"), common.ErrorNotFound)

	mock.ExpectExec(renameQ).WithArgs("a", "b").WillReturnResult(sqlmock.NewResult(0, 2))
	err := repo.Rename(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected rows affected: 2")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUserNames(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(listQ).WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("Luffy").AddRow("Nami"))
	names, err := repo.ListUserNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Luffy", "Nami"}, names)

	mock.ExpectQuery(listQ).WillReturnError(errors.New("db err"))
	_, err = repo.ListUserNames(context.Background())
	assert.Error(t, err)
}
