package blob

import (
	"context"
	"io"
	"path"

	"github.com/go-faster/errors"
	"github.com/studio-b12/gowebdav"
	"github.com/tgdrive/dropshare/internal/config"
)

type WebDAV struct {
	client *gowebdav.Client
	root   string
}

func NewWebDAV(conf *config.StorageConfig) (*WebDAV, error) {
	c := conf.WebDAV
	if c.URL == "" {
		return nil, errors.New("storage.webdav.url is required")
	}
	client := gowebdav.NewClient(c.URL, c.User, c.Password)
	if err := client.Connect(); err != nil {
		return nil, errors.Wrap(err, "connect webdav")
	}
	if err := client.MkdirAll(c.Root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create webdav root")
	}
	return &WebDAV{client: client, root: c.Root}, nil
}

func (w *WebDAV) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := validKey(key); err != nil {
		return 0, err
	}
	cr := &countingReader{r: ctxReader{ctx: ctx, r: r}}
	if err := w.client.WriteStream(w.path(key), cr, 0o644); err != nil {
		return 0, errors.Wrap(err, "webdav write")
	}
	return cr.n, nil
}

func (w *WebDAV) Get(ctx context.Context, key string) (*Object, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := w.client.Stat(w.path(key))
	if gowebdav.IsErrNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "webdav stat")
	}
	body, err := w.client.ReadStream(w.path(key))
	if gowebdav.IsErrNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "webdav read")
	}
	return &Object{Body: body, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (w *WebDAV) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := w.client.Remove(w.path(key))
	if gowebdav.IsErrNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (w *WebDAV) path(key string) string {
	return path.Join(w.root, key)
}
