package kv

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/logging"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// DefaultPath is the bolt file used when db.bolt-path is empty.
func DefaultPath() string {
	return filepath.Join(config.Dir(), "dropshare.db")
}

// Open opens the bolt file, retrying with exponential backoff while another
// process holds its lock. It gives up after conf.BoltTimeout.
func Open(ctx context.Context, conf *config.DBConfig) (*bbolt.DB, error) {
	path := conf.BoltPath
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create bolt dir")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 1.5
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = conf.BoltTimeout

	var db *bbolt.DB
	open := func() error {
		var err error
		db, err = bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
		if errors.Is(err, bbolt.ErrTimeout) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		logging.FromContext(ctx).Warn("bolt file locked, retrying",
			zap.String("path", path), zap.Duration("next", next))
	}

	if err := backoff.RetryNotify(open, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, errors.Wrapf(err, "open bolt %s", path)
	}
	return db, nil
}
