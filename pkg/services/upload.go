package services

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/internal/duration"
	"github.com/tgdrive/dropshare/internal/hash"
	"github.com/tgdrive/dropshare/internal/logging"
	"github.com/tgdrive/dropshare/internal/password"
	"github.com/tgdrive/dropshare/internal/store"
	"github.com/tgdrive/dropshare/pkg/models"
	"github.com/tgdrive/dropshare/pkg/schemas"
	"go.uber.org/zap"
)

const (
	fileField     = "file"
	passwordField = "password"
	ttlField      = "ttl"

	maxFieldSize   = 1024
	maxExtLen      = 16
	defaultContent = "application/octet-stream"
)

// sourceReader remembers read failures so they can be told apart from
// storage failures after a blob write fails.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

type uploadForm struct {
	password string
	ttl      string
	hasTTL   bool
}

// Upload streams the single file part of mr to blob storage and records its
// metadata. Links are built from baseURL.
func (s *FileService) Upload(ctx context.Context, mr *multipart.Reader, baseURL string) (out *schemas.UploadOut, err error) {
	var (
		form   uploadForm
		record *models.File
	)

	defer func() {
		if err != nil && record != nil {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), record.ID); derr != nil {
				logging.FromContext(ctx).Warn("failed to remove orphan blob",
					zap.String("id", record.ID), zap.Error(derr))
			}
		}
	}()

	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			return nil, readError(perr)
		}

		switch {
		case part.FormName() == fileField && part.FileName() != "":
			if record != nil {
				part.Close()
				return nil, &apiError{err: ErrTooManyFiles, code: http.StatusBadRequest}
			}
			record, err = s.storePart(ctx, part)
			part.Close()
			if err != nil {
				return nil, err
			}
		case part.FormName() == passwordField:
			form.password, err = readField(part)
			if err != nil {
				return nil, err
			}
		case part.FormName() == ttlField:
			form.ttl, err = readField(part)
			if err != nil {
				return nil, err
			}
			form.hasTTL = true
		default:
			if _, err := io.Copy(io.Discard, part); err != nil {
				part.Close()
				return nil, readError(err)
			}
			part.Close()
		}
	}

	if record == nil {
		return nil, &apiError{err: ErrMissingFile, code: http.StatusBadRequest}
	}

	ttl, err := s.effectiveTTL(form.ttl, form.hasTTL)
	if err != nil {
		return nil, err
	}
	if ttl > 0 {
		exp := record.CreatedAt.Add(ttl)
		record.ExpiresAt = &exp
	}

	if form.password != "" {
		record.PasswordHash, err = s.hasher.Hash(form.password)
		if errors.Is(err, password.ErrTooLong) {
			return nil, &apiError{err: ErrPasswordTooLong, code: http.StatusBadRequest}
		}
		if err != nil {
			return nil, &apiError{err: err}
		}
	}

	if err = s.store.Insert(ctx, record); err != nil {
		if errors.Is(err, store.ErrKeyConflict) {
			return nil, &apiError{err: errors.Wrapf(err, "id %s", record.ID)}
		}
		return nil, &apiError{err: errors.Wrap(err, "insert record")}
	}

	logging.FromContext(ctx).Info("file uploaded",
		zap.String("id", record.ID),
		zap.Int64("size", record.Size),
		zap.Bool("protected", record.Protected()))

	return &schemas.UploadOut{
		Link:      strings.TrimRight(baseURL, "/") + "/file/" + url.PathEscape(record.ID),
		ID:        record.ID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *FileService) storePart(ctx context.Context, part *multipart.Part) (*models.File, error) {
	name := filepath.Base(part.FileName())
	f := &models.File{
		ID:           s.newID() + extension(name),
		OriginalName: name,
		ContentType:  part.Header.Get("Content-Type"),
		CreatedAt:    s.now(),
	}
	if f.ContentType == "" {
		f.ContentType = defaultContent
	}

	src := &sourceReader{r: part}
	hr := hash.NewReader(src)
	n, err := s.blobs.Put(ctx, f.ID, hr)
	if err != nil {
		if src.err != nil {
			return nil, readError(src.err)
		}
		return nil, &apiError{err: errors.Wrap(err, "store blob")}
	}
	f.Size = n
	f.Checksum = hr.Sum()
	return f, nil
}

func (s *FileService) effectiveTTL(raw string, set bool) (time.Duration, error) {
	ttl := s.uploads.DefaultTTL
	if set && strings.TrimSpace(raw) != "" {
		d, err := duration.Parse(raw)
		if err != nil || d < 0 {
			return 0, &apiError{err: errors.Wrapf(ErrInvalidTTL, "%q", raw), code: http.StatusBadRequest}
		}
		ttl = d
	}
	if ttl == time.Duration(duration.Off) {
		ttl = 0
	}
	if limit := s.uploads.MaxTTL; limit > 0 && limit != time.Duration(duration.Off) && (ttl == 0 || ttl > limit) {
		ttl = limit
	}
	return ttl, nil
}

func readField(part *multipart.Part) (string, error) {
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", readError(err)
	}
	if len(data) > maxFieldSize {
		return "", &apiError{err: errors.Errorf("field %s too long", part.FormName()), code: http.StatusBadRequest}
	}
	return string(data), nil
}

func readError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return &apiError{err: ErrTooLarge, code: http.StatusRequestEntityTooLarge}
	}
	return &apiError{err: errors.Wrap(err, "read upload"), code: http.StatusBadRequest}
}

// extension keeps the original extension unless it is longer than maxExtLen
// bytes or holds characters that cannot be part of a blob key.
func extension(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > maxExtLen+1 || !utf8.ValidString(ext) {
		return ""
	}
	for _, r := range ext[1:] {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return ""
		}
	}
	return ext
}
