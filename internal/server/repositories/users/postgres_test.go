package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "name", "email", "password_hash", "role", "active", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgres_Create(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users \(name, email, password_hash, role, active, created_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\) RETURNING id`).
		WithArgs("Ana", "ana@example.com", "hash", "user", true, created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	in := &models.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "hash", Role: models.RoleUser, Active: true, CreatedAt: created}
	got, err := repo.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Zero(t, in.ID, "input is not modified")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateDuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "ana@example.com"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestPostgres_CreateDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "ana@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestPostgres_FindByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id, name, email, password_hash, role, active, created_at FROM users WHERE email = \$1`).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(7), "Ana", "ana@example.com", "hash", "admin", true, created))

	u, err := repo.FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: 7, Name: "Ana", Email: "ana@example.com", PasswordHash: "hash", Role: models.RoleAdmin, Active: true, CreatedAt: created}, u)
}

func TestPostgres_FindByIDNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs(int64(5)).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 5)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgres_Update(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	name := "Ana B."
	role := models.RoleAdmin

	mock.ExpectQuery(`UPDATE users SET name = COALESCE\(\$2, name\), email = COALESCE\(\$3, email\), password_hash = COALESCE\(\$4, password_hash\), role = COALESCE\(\$5, role\), active = COALESCE\(\$6, active\) WHERE id = \$1 RETURNING`).
		WithArgs(int64(7), "Ana B.", nil, nil, "admin", nil).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(7), "Ana B.", "ana@example.com", "hash", "admin", true, created))

	u, err := repo.Update(context.Background(), 7, models.UserPatch{Name: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Ana B.", u.Name)
	assert.Equal(t, models.RoleAdmin, u.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateErrors(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	email := "taken@example.com"

	mock.ExpectQuery(`UPDATE users SET`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`UPDATE users SET`).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Update(context.Background(), 1, models.UserPatch{Email: &email})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.Update(context.Background(), 1, models.UserPatch{Email: &email})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestPostgres_Delete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), common.ErrorNotFound)
}

func TestPostgres_ListBuildsQuery(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	active := true

	mock.ExpectQuery(`SELECT id, name, email, password_hash, role, active, created_at FROM users WHERE role = \$1 AND name ILIKE \$2 AND active = \$3 ORDER BY name DESC, id LIMIT \$4 OFFSET \$5`).
		WithArgs("user", `%50\%%`, true, 10, 20).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(2), "Carlos", "c@example.com", "h", "user", true, created).
			AddRow(int64(3), "Ana", "a@example.com", "h", "user", true, created))

	got, err := repo.List(context.Background(), ListQuery{
		Filter: Filter{Role: models.RoleUser, Name: "50%", Active: &active},
		SortBy: SortByName,
		Desc:   true,
		Offset: 20,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListUnknownSortFallsBackToID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM users ORDER BY id$`).
		WillReturnRows(sqlmock.NewRows(userCols))

	got, err := repo.List(context.Background(), ListQuery{SortBy: "password_hash; DROP TABLE users"})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListUnknownSortDescHasNoTieBreaker(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM users ORDER BY id DESC LIMIT \$1$`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.List(context.Background(), ListQuery{SortBy: "rank", Desc: true, Limit: 5})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Count(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE email ILIKE \$1`).
		WithArgs("%example%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background(), Filter{Email: "example"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
