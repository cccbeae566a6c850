// Package blob stores uploaded file contents keyed by file id.
package blob

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/internal/config"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Object is an open blob. Body additionally implements io.Seeker when the
// backend supports random access.
type Object struct {
	Body    io.ReadCloser
	Size    int64
	ModTime time.Time
}

type Store interface {
	// Put writes r under key and returns the number of bytes stored.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Get opens key. Missing keys return ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)
	// Delete removes key. Backends that can tell return ErrNotFound for missing keys.
	Delete(ctx context.Context, key string) error
}

func New(ctx context.Context, conf *config.StorageConfig) (Store, error) {
	switch conf.Type {
	case "", "local":
		return NewLocal(conf.LocalDir)
	case "s3":
		return NewS3(ctx, conf)
	case "webdav":
		return NewWebDAV(conf)
	case "sftp":
		return NewSFTP(conf)
	}
	return nil, errors.Errorf("unknown storage type %q", conf.Type)
}

// validKey rejects keys that could escape the storage root.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
