package services

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/tgdrive/dropshare/internal/auth"
	"github.com/tgdrive/dropshare/internal/blob"
	"github.com/tgdrive/dropshare/internal/cache"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/password"
	"github.com/tgdrive/dropshare/internal/store"
	"github.com/tgdrive/dropshare/pkg/models"
	"github.com/tgdrive/dropshare/pkg/schemas"
)

type FileService struct {
	store    store.Store
	blobs    blob.Store
	cache    cache.Cacher
	hasher   password.Hasher
	signer   *auth.Signer
	uploads  config.UploadsConfig
	cacheTTL time.Duration

	now   func() time.Time
	newID func() string
}

func NewFileService(st store.Store, blobs blob.Store, c cache.Cacher, hasher password.Hasher,
	signer *auth.Signer, uploads config.UploadsConfig, cacheTTL time.Duration) *FileService {
	return &FileService{
		store:    st,
		blobs:    blobs,
		cache:    c,
		hasher:   hasher,
		signer:   signer,
		uploads:  uploads,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Download is an opened file ready to be streamed. The caller closes Object.Body.
type Download struct {
	File   *models.File
	Object *blob.Object
}

// Credentials carries what a direct GET presented for a protected file.
type Credentials struct {
	Password    string
	HasPassword bool
	Token       string
}

func (s *FileService) lookup(ctx context.Context, id string) (*models.File, error) {
	f, err := cache.Fetch(ctx, s.cache, cache.KeyFile(id), s.cacheTTL, func() (*models.File, error) {
		return s.store.Get(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, &apiError{err: ErrFileNotFound, code: http.StatusNotFound}
	}
	if err != nil {
		return nil, &apiError{err: err}
	}
	if f.Expired(s.now()) {
		return nil, &apiError{err: ErrFileNotFound, code: http.StatusNotFound}
	}
	return f.UTC(), nil
}

func (s *FileService) verify(f *models.File, pass string) error {
	if !f.Protected() {
		return nil
	}
	err := s.hasher.Verify(f.PasswordHash, pass)
	if errors.Is(err, password.ErrMismatch) {
		return &apiError{err: ErrInvalidPassword, code: http.StatusUnauthorized}
	}
	if err != nil {
		return &apiError{err: err}
	}
	return nil
}

func (s *FileService) open(ctx context.Context, f *models.File) (*Download, error) {
	obj, err := s.blobs.Get(ctx, f.ID)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, &apiError{err: ErrBlobNotFound, code: http.StatusNotFound}
	}
	if err != nil {
		return nil, &apiError{err: err}
	}
	return &Download{File: f, Object: obj}, nil
}

func (s *FileService) Info(ctx context.Context, id string) (*schemas.FileInfo, error) {
	f, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return &schemas.FileInfo{
		PasswordProtected: f.Protected(),
		OriginalName:      f.OriginalName,
		Size:              f.Size,
		ContentType:       f.ContentType,
		Checksum:          f.Checksum,
		CreatedAt:         f.CreatedAt,
		ExpiresAt:         f.ExpiresAt,
	}, nil
}

// Download checks the password and opens the file for streaming.
func (s *FileService) Download(ctx context.Context, id, pass string) (*Download, error) {
	f, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.verify(f, pass); err != nil {
		return nil, err
	}
	return s.open(ctx, f)
}

// Direct opens a file for a plain GET. Protected files need a token issued for
// this id or a basic auth password.
func (s *FileService) Direct(ctx context.Context, id string, creds Credentials) (*Download, error) {
	f, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Protected() {
		switch {
		case creds.Token != "":
			if err := s.signer.Verify(creds.Token, id); err != nil {
				return nil, &apiError{err: ErrInvalidToken, code: http.StatusUnauthorized}
			}
		case creds.HasPassword:
			if err := s.verify(f, creds.Password); err != nil {
				return nil, err
			}
		default:
			return nil, &apiError{err: ErrEmptyAuth, code: http.StatusUnauthorized}
		}
	}
	return s.open(ctx, f)
}

// Unlock trades a valid password for a short lived download token.
func (s *FileService) Unlock(ctx context.Context, id, pass string) (*schemas.UnlockOut, error) {
	f, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.verify(f, pass); err != nil {
		return nil, err
	}
	token, exp, err := s.signer.Issue(f.ID)
	if err != nil {
		return nil, &apiError{err: err}
	}
	return &schemas.UnlockOut{Token: token, ExpiresAt: exp.UTC()}, nil
}
