package services

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/internal/logging"
	"github.com/tgdrive/dropshare/pkg/schemas"
	"go.uber.org/zap"
)

var (
	ErrMissingFile     = errors.New("no file uploaded")
	ErrTooManyFiles    = errors.New("only one file can be uploaded")
	ErrNotMultipart    = errors.New("request is not multipart/form-data")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidTTL      = errors.New("invalid ttl")
	ErrPasswordTooLong = errors.New("password too long")
	ErrFileNotFound    = errors.New("file not found")
	ErrBlobNotFound    = errors.New("file not found on disk")
	ErrInvalidPassword = errors.New("invalid password")
	ErrEmptyAuth       = errors.New("empty auth")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTooManyRequests = errors.New("too many requests")
)

type apiError struct {
	err  error
	code int
}

func (a *apiError) Error() string {
	return a.err.Error()
}

func (a *apiError) Unwrap() error {
	return a.err
}

var _ error = (*apiError)(nil)

// NewError maps a service error to an HTTP status and response body. Errors
// without a status are reported as 500 and their cause is only logged.
func NewError(ctx context.Context, err error) (int, *schemas.Error) {
	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var ae *apiError
	if errors.As(err, &ae) && ae.code != 0 {
		code = ae.code
		message = ae.Error()
	}

	if code >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("api error", zap.Error(err))
	} else {
		logging.FromContext(ctx).Debug("request rejected", zap.Int("code", code), zap.Error(err))
	}
	return code, &schemas.Error{Code: code, Message: message}
}

// TooManyRequests is the error returned when a client exceeds the upload rate.
func TooManyRequests() error {
	return &apiError{err: ErrTooManyRequests, code: http.StatusTooManyRequests}
}

// BadRequest marks a malformed request body.
func BadRequest(err error) error {
	return &apiError{err: err, code: http.StatusBadRequest}
}
