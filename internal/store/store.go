// Package store persists file metadata, one record per upload.
package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/database"
	"github.com/tgdrive/dropshare/internal/kv"
	"github.com/tgdrive/dropshare/pkg/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrKeyConflict = errors.New("record already exists")
)

type Store interface {
	// Insert adds a new record. An existing id fails with ErrKeyConflict.
	Insert(ctx context.Context, f *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	Delete(ctx context.Context, id string) error
	// ListExpired returns up to limit records whose expiry is at or before now,
	// oldest expiry first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.File, error)
	Close() error
}

func New(ctx context.Context, conf *config.DBConfig) (Store, error) {
	switch conf.Type {
	case "", "bolt":
		db, err := kv.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return NewBolt(db)
	case "postgres":
		db, err := database.Open(ctx, conf.DataSource)
		if err != nil {
			return nil, err
		}
		return NewPostgres(db), nil
	}
	return nil, errors.Errorf("unknown db type %q", conf.Type)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Bolt)(nil)
)
