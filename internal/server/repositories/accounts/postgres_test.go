package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/server/models"
)

const accountID = "8f9a3a52-4c5e-4f7b-9a51-0d2e6f3f1b11"

var columns = []string{"id", "email", "username", "bio", "image", "password_hash", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func accountRow(bio any) *sqlmock.Rows {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(columns).AddRow(accountID, "jake@jake.jake", "jake", bio, nil, "$2a$hash", ts, ts)
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*username,\s*bio,\s*image,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id,`
	mock.ExpectQuery(q).
		WithArgs("jake@jake.jake", "jake", nil, nil, "$2a$hash").
		WillReturnRows(accountRow(nil))

	got, err := repo.Create(context.Background(), &models.Account{Email: "jake@jake.jake", Username: "jake", PasswordHash: "$2a$hash"})
	require.NoError(t, err)
	assert.Equal(t, accountID, got.ID)
	assert.Nil(t, got.Bio)
	assert.Nil(t, got.Image)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreate_UniqueViolations(t *testing.T) {
	cases := map[string]string{
		"users_email_key":    "email",
		"users_username_key": "username",
	}
	for constraint, field := range cases {
		t.Run(constraint, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectQuery(`INSERT INTO users`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraint})

			_, err := repo.Create(context.Background(), &models.Account{Email: "a@b.c", Username: "a", PasswordHash: "h"})

			var uv *UniqueViolationError
			require.ErrorAs(t, err, &uv)
			assert.Equal(t, field, uv.Field)
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Account{Email: "a@b.c", Username: "a", PasswordHash: "h"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())

	var uv *UniqueViolationError
	assert.False(t, errors.As(err, &uv))
}

func TestFindByEmail(t *testing.T) {
	q := `(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("jake@jake.jake").WillReturnRows(accountRow("I work at statefarm"))

		got, err := repo.FindByEmail(context.Background(), "jake@jake.jake")
		require.NoError(t, err)
		assert.Equal(t, "jake", got.Username)
		require.NotNil(t, got.Bio)
		assert.Equal(t, "I work at statefarm", *got.Bio)
		assert.Equal(t, "$2a$hash", got.PasswordHash)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("ghost@x.io").WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByEmail(context.Background(), "ghost@x.io")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("jake@jake.jake").WillReturnError(errors.New("db err"))

		_, err := repo.FindByEmail(context.Background(), "jake@jake.jake")
		require.Error(t, err)
		assert.Regexp(t, `db error: .*db err`, err.Error())
		assert.NotErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestFindByUsername_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`WHERE\s+username\s*=\s*\$1`).WithArgs("jake").WillReturnRows(accountRow(nil))

	got, err := repo.FindByUsername(context.Background(), "jake")
	require.NoError(t, err)
	assert.Equal(t, accountID, got.ID)
}

func TestFindByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`WHERE\s+id\s*=\s*\$1`).WithArgs(accountID).WillReturnRows(accountRow(nil))

		got, err := repo.FindByID(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, "jake@jake.jake", got.Email)
	})

	t.Run("malformed id is not found without a query", func(t *testing.T) {
		repo, _ := newRepoWithMock(t)

		_, err := repo.FindByID(context.Background(), "not-a-uuid")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestUpdate(t *testing.T) {
	q := `(?s)^UPDATE\s+users\s+SET\s+email\s*=\s*COALESCE\(\$2,\s*email\).*WHERE\s+id\s*=\s*\$1\s+RETURNING`

	t.Run("partial patch passes nil for absent fields", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		bio := "new bio"
		mock.ExpectQuery(q).
			WithArgs(accountID, nil, nil, nil, "new bio", nil).
			WillReturnRows(accountRow("new bio"))

		got, err := repo.Update(context.Background(), accountID, models.AccountPatch{Bio: &bio})
		require.NoError(t, err)
		require.NotNil(t, got.Bio)
		assert.Equal(t, "new bio", *got.Bio)
		assert.Equal(t, "jake@jake.jake", got.Email)
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WillReturnError(sql.ErrNoRows)

		_, err := repo.Update(context.Background(), accountID, models.AccountPatch{})
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("unique violation", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		email := "taken@x.io"
		mock.ExpectQuery(q).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := repo.Update(context.Background(), accountID, models.AccountPatch{Email: &email})
		var uv *UniqueViolationError
		require.ErrorAs(t, err, &uv)
		assert.Equal(t, "email", uv.Field)
	})
}
