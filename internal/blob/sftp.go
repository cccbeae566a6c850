package blob

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"github.com/go-faster/errors"
	"github.com/pkg/sftp"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/logging"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type SFTP struct {
	client *sftp.Client
	root   string
}

func NewSFTP(conf *config.StorageConfig) (*SFTP, error) {
	c := conf.SFTP
	if c.Addr == "" {
		return nil, errors.New("storage.sftp.addr is required")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if c.KnownHosts != "" {
		cb, err := knownhosts.New(c.KnownHosts)
		if err != nil {
			return nil, errors.Wrap(err, "read known hosts")
		}
		hostKey = cb
	} else {
		logging.DefaultLogger().Warn("sftp host key is not verified, set storage.sftp.known-hosts")
	}

	conn, err := ssh.Dial("tcp", c.Addr, &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.Password(c.Password)},
		HostKeyCallback: hostKey,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "ssh dial")
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "sftp client")
	}
	if err := client.MkdirAll(c.Root); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "create sftp root")
	}
	return &SFTP{client: client, root: c.Root}, nil
}

// Put uploads to a temp name and renames, mirroring the local backend.
func (s *SFTP) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := validKey(key); err != nil {
		return 0, err
	}
	tmp := s.path(".upload-" + key)
	f, err := s.client.Create(tmp)
	if err != nil {
		return 0, errors.Wrap(err, "sftp create")
	}
	n, err := f.ReadFrom(ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.client.Remove(tmp)
		return 0, errors.Wrap(err, "sftp write")
	}
	if err := s.client.PosixRename(tmp, s.path(key)); err != nil {
		_ = s.client.Remove(tmp)
		return 0, errors.Wrap(err, "sftp rename")
	}
	return n, nil
}

func (s *SFTP) Get(_ context.Context, key string) (*Object, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := s.client.Open(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "sftp open")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "sftp stat")
	}
	return &Object{Body: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *SFTP) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := s.client.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *SFTP) Close() error {
	return s.client.Close()
}

func (s *SFTP) path(key string) string {
	return path.Join(s.root, key)
}
