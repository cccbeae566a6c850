package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/pkg/models"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const fileColumns = `id, password_hash, original_name, content_type, size, checksum, created_at, expires_at`

func (p *Postgres) Insert(ctx context.Context, f *models.File) error {
	query := `INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	res, err := p.db.ExecContext(ctx, query,
		f.ID, nullString(f.PasswordHash), f.OriginalName, f.ContentType,
		f.Size, f.Checksum, f.CreatedAt, nullTime(f.ExpiresAt))
	if err != nil {
		return errors.Wrap(err, "insert file")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "insert file")
	}
	if n == 0 {
		return ErrKeyConflict
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	f, err := scanFile(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get file")
	}
	return f, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete file")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete file")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`

	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list expired")
	}
	defer rows.Close()

	var out []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan file")
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list expired")
	}
	return out, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	var (
		f         models.File
		hash      sql.NullString
		expiresAt sql.NullTime
	)
	err := s.Scan(&f.ID, &hash, &f.OriginalName, &f.ContentType, &f.Size, &f.Checksum, &f.CreatedAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	f.PasswordHash = hash.String
	if expiresAt.Valid {
		f.ExpiresAt = &expiresAt.Time
	}
	return f.UTC(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
