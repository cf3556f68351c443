package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumns = []string{"id", "username", "email", "full_name", "password_hash", "avatar_url",
	"cover_image_url", "refresh_token", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

func adaRow(refreshToken any) *sqlmock.Rows {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(accountColumns).
		AddRow("a-1", "ada", "ada@x.io", "Ada L", "$2a$hash", "https://cdn/a.png", "", refreshToken, ts, ts)
}

const (
	findOneQuery  = `(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+\(\$1 <> '' AND username = \$1\)\s+OR\s+\(\$2 <> '' AND email = \$2\)\s+ORDER BY \(username = \$1\) DESC\s+LIMIT 1\s*$`
	findByIDQuery = `(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\s*$`
	insertQuery   = `(?s)^INSERT\s+INTO\s+accounts\s*\(username,\s*email,\s*full_name,\s*password_hash,\s*avatar_url,\s*cover_image_url\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`
	updateQuery   = `(?s)^UPDATE\s+accounts\s+SET\s+refresh_token\s*=\s*NULLIF\(\$2,\s*''\),\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	rotateQuery   = `(?s)^UPDATE\s+accounts\s+SET\s+refresh_token\s*=\s*\$3,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s+AND\s+refresh_token\s*=\s*\$2\s*$`
)

func TestFindOne_Found(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(findOneQuery).WithArgs("ada", "").WillReturnRows(adaRow(nil))

	got, err := repo.FindOne(context.Background(), "ada", "")
	require.NoError(t, err)
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, "ada@x.io", got.Email)
	assert.Equal(t, "$2a$hash", got.PasswordHash)
	assert.Empty(t, got.RefreshToken, "NULL refresh token maps to empty")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOne_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(findOneQuery).WithArgs("ghost", "ghost@x.io").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindOne(context.Background(), "ghost", "ghost@x.io")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindOne_EmptyArgumentsShortCircuit(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	_, err := repo.FindOne(context.Background(), "", "")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet(), "no query must be issued")
}

func TestFindOne_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(findOneQuery).WithArgs("ada", "").WillReturnError(errors.New("db down"))

	_, err := repo.FindOne(context.Background(), "ada", "")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByID_Found(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(findByIDQuery).WithArgs("a-1").WillReturnRows(adaRow("refresh-1"))

	got, err := repo.FindByID(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)
	assert.Equal(t, "refresh-1", got.RefreshToken)
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(findByIDQuery).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func newAda() *models.NewAccount {
	return &models.NewAccount{
		Username:     "ada",
		Email:        "ada@x.io",
		FullName:     "Ada L",
		PasswordHash: "$2a$hash",
		AvatarURL:    "https://cdn/a.png",
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(insertQuery).
		WithArgs("ada", "ada@x.io", "Ada L", "$2a$hash", "https://cdn/a.png", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("a-1", ts, ts))

	got, err := repo.Create(context.Background(), newAda())
	require.NoError(t, err)
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, "ada", got.Username)
	assert.Equal(t, ts, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	_, err := repo.Create(context.Background(), newAda())
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Contains(t, err.Error(), "accounts_email_key")
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), newAda())
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestUpdateRefreshToken(t *testing.T) {
	t.Run("sets token", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(updateQuery).WithArgs("a-1", "tok").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateRefreshToken(context.Background(), "a-1", "tok"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clears token", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(updateQuery).WithArgs("a-1", "").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateRefreshToken(context.Background(), "a-1", ""))
	})

	t.Run("unknown account", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(updateQuery).WithArgs("nope", "").WillReturnResult(sqlmock.NewResult(0, 0))

		require.ErrorIs(t, repo.UpdateRefreshToken(context.Background(), "nope", ""), common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(updateQuery).WillReturnError(errors.New("db down"))

		err := repo.UpdateRefreshToken(context.Background(), "a-1", "tok")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db error")
	})
}

func TestFindOne_PrefersUsernameMatch(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(findOneQuery).WithArgs("ada", "bob@x.io").WillReturnRows(adaRow(nil))

	got, err := repo.FindOne(context.Background(), "ada", "bob@x.io")
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken(t *testing.T) {
	t.Run("current token matches", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(rotateQuery).WithArgs("a-1", "old", "new").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.RotateRefreshToken(context.Background(), "a-1", "old", "new"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("token already rotated", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(rotateQuery).WithArgs("a-1", "old", "new").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.RotateRefreshToken(context.Background(), "a-1", "old", "new")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(rotateQuery).WillReturnError(errors.New("db down"))

		err := repo.RotateRefreshToken(context.Background(), "a-1", "old", "new")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db error")
	})
}
