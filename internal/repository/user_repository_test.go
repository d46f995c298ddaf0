package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/utils"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var userCols = []string{"id", "email", "username", "phone", "password_hash", "role", "is_active", "created_at", "updated_at"}

func TestUserRepoCreateNormalizesAndHashes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("alice@example.com", "alice", "", sqlmock.AnyArg(), model.RoleUser).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.Create(context.Background(), NewUser{
		Email: "  Alice@Example.com ", Username: "alice", Password: "secret-pass",
	}, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestUserRepoCreateDuplicateUsername(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice' for key 'users.uq_users_username'"})

	_, err := repo.Create(context.Background(), NewUser{Email: "a@example.com", Username: "alice", Password: "x"}, 4)
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestUserRepoGetByEmailNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("FROM users WHERE email=").WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "Nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepoGetByIDScansRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	hash, err := utils.HashPassword("pw", 4)
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM users WHERE id=").WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(3, "b@example.com", "bob", "123", hash, model.RoleAdmin, true, now, now))

	u, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "pw"))
}

func TestUserRepoListBuildsFilter(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND (LOWER(email) LIKE ? OR LOWER(username) LIKE ?) AND role = ?")).
		WithArgs("%ali%", "%ali%", model.RoleUser).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery("ORDER BY id LIMIT").
		WithArgs("%ali%", "%ali%", model.RoleUser, 10, 10).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(11, "alice@example.com", "alice", "", "h", model.RoleUser, true, now, now))

	users, total, err := repo.List(context.Background(), UserFilter{Keyword: "Ali", Role: model.RoleUser, Page: NewPage(2, 10)})
	require.NoError(t, err)
	assert.Equal(t, int64(21), total)
	require.Len(t, users, 1)
	assert.Equal(t, uint64(11), users[0].ID)
}

func TestUserRepoUpdateMissingRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	active := false

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")).
		WithArgs(false, uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), 99, UserUpdate{IsActive: &active})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepoConsumeRejectsRevoked(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM refresh_tokens WHERE token_hash=").WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(1, time.Now().Add(time.Hour), time.Now()))
	mock.ExpectRollback()

	_, err := repo.Consume(context.Background(), "h")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepoConsumeRejectsExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM refresh_tokens WHERE token_hash=").WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(1, time.Now().Add(-time.Minute), nil))
	mock.ExpectRollback()

	_, err := repo.Consume(context.Background(), "h")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepoConsumeRevokesActive(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	mock.ExpectBegin()
	mock.ExpectQuery("FROM refresh_tokens WHERE token_hash=").WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(5, fixed.Add(time.Hour), nil))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs(fixed, "h").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	uid, err := repo.Consume(context.Background(), "h")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), uid)
}

func TestPageClamps(t *testing.T) {
	p := NewPage(0, 1000)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 100, p.Limit())
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 40, NewPage(3, 20).Offset())
	assert.Equal(t, 20, NewPage(1, 0).Size)
}
