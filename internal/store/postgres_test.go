package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "password_hash", "original_name", "content_type", "size", "checksum", "created_at", "expires_at"}

func newPostgresWithMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgres(db), mock
}

func TestPostgresInsert(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	f := record("a.txt", nil)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+files\s*\(id,.*expires_at\)\s*VALUES\s*\(\$1,.*\$8\)\s*ON\s+CONFLICT\s*\(id\)\s*DO\s+NOTHING$`).
		WithArgs("a.txt", nil, "report.pdf", "application/pdf", int64(12), "abc", f.CreatedAt, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.Insert(context.Background(), f))
}

func TestPostgresInsertConflict(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	exp := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f := record("a.txt", &exp)
	f.PasswordHash = "hash"

	mock.ExpectExec(`^INSERT\s+INTO\s+files`).
		WithArgs("a.txt", "hash", "report.pdf", "application/pdf", int64(12), "abc", f.CreatedAt, exp).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, p.Insert(context.Background(), f), ErrKeyConflict)
}

func TestPostgresGet(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	exp := created.Add(time.Hour)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*expires_at\s+FROM\s+files\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("a.txt").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a.txt", "hash", "report.pdf", "application/pdf", int64(12), "abc", created, exp))

	f, err := p.Get(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hash", f.PasswordHash)
	assert.True(t, f.Protected())
	require.NotNil(t, f.ExpiresAt)
	assert.True(t, exp.Equal(*f.ExpiresAt))
}

func TestPostgresGetNullable(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`^SELECT`).
		WithArgs("a.txt").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a.txt", nil, "report.pdf", "application/pdf", int64(12), "abc", created, nil))

	f, err := p.Get(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.False(t, f.Protected())
	assert.Nil(t, f.ExpiresAt)
}

func TestPostgresGetNotFound(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`^SELECT`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := p.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresGetDBError(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`^SELECT`).WithArgs("a").WillReturnError(errors.New("db down"))

	_, err := p.Get(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresDelete(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectExec(`^DELETE\s+FROM\s+files\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+files`).
		WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.Delete(context.Background(), "a"))
	assert.ErrorIs(t, p.Delete(context.Background(), "a"), ErrNotFound)
}

func TestPostgresListExpired(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	created := now.Add(-48 * time.Hour)

	mock.ExpectQuery(`(?s)^SELECT.*WHERE\s+expires_at\s+IS\s+NOT\s+NULL\s+AND\s+expires_at\s*<=\s*\$1\s+ORDER\s+BY\s+expires_at\s+LIMIT\s+\$2$`).
		WithArgs(now, 1000).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a", nil, "a.txt", "text/plain", int64(1), "x", created, now.Add(-2*time.Hour)).
			AddRow("b", "hash", "b.txt", "text/plain", int64(2), "y", created, now.Add(-time.Hour)))

	files, err := p.ListExpired(context.Background(), now, 0)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a", files[0].ID)
	assert.Equal(t, "b", files[1].ID)
	assert.True(t, files[1].Protected())
}
