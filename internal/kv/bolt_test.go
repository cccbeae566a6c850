package kv

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgdrive/dropshare/internal/config"
	"go.etcd.io/bbolt"
)

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	db, err := Open(context.Background(), &config.DBConfig{BoltPath: path, BoltTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.Equal(t, path, db.Path())
}

func TestOpenGivesUpWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	conf := &config.DBConfig{BoltPath: path, BoltTimeout: 200 * time.Millisecond}

	db, err := Open(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = Open(context.Background(), conf)
	require.Error(t, err)
	assert.ErrorIs(t, err, bbolt.ErrTimeout)
}
