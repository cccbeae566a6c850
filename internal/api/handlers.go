package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/logging"
	"github.com/tgdrive/dropshare/internal/version"
	"github.com/tgdrive/dropshare/pkg/schemas"
	"github.com/tgdrive/dropshare/pkg/services"
	"go.uber.org/zap"
)

const maxAccessBody = 64 << 10

type Handler struct {
	files   *services.FileService
	uploads config.UploadsConfig
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

func (h *Handler) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.GetVersionInfo())
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if h.uploads.MaxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxSize)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, services.BadRequest(services.ErrNotMultipart))
		return
	}
	out, err := h.files.Upload(r.Context(), mr, h.baseURL(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	out, err := h.files.Info(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	pass, err := readPassword(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.files.Download(r.Context(), chi.URLParam(r, "id"), pass)
	if err != nil {
		writeError(w, r, err)
		return
	}
	serveFile(w, r, d)
}

func (h *Handler) direct(w http.ResponseWriter, r *http.Request) {
	creds := services.Credentials{Token: r.URL.Query().Get("token")}
	if _, pass, ok := r.BasicAuth(); ok {
		creds.Password = pass
		creds.HasPassword = true
	}
	d, err := h.files.Direct(r.Context(), chi.URLParam(r, "id"), creds)
	if err != nil {
		if errors.Is(err, services.ErrEmptyAuth) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dropshare", charset="UTF-8"`)
		}
		writeError(w, r, err)
		return
	}
	serveFile(w, r, d)
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	pass, err := readPassword(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.files.Unlock(r.Context(), chi.URLParam(r, "id"), pass)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.uploads.PublicURL != "" {
		return strings.TrimRight(h.uploads.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

// readPassword accepts a JSON body or a form field. A missing body means an
// empty password.
func readPassword(r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(nil, r.Body, maxAccessBody)

	switch ct {
	case "application/json":
		var in schemas.FileAccess
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			return "", services.BadRequest(errors.Wrap(err, "decode body"))
		}
		return in.Password, nil
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return r.PostFormValue("password"), nil
	}
	return "", nil
}

func serveFile(w http.ResponseWriter, r *http.Request, d *services.Download) {
	defer d.Object.Body.Close()
	f := d.File

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalName})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("ETag", strconv.Quote(f.Checksum))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private")

	if rs, ok := d.Object.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", d.Object.ModTime, rs)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(d.Object.Size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, d.Object.Body); err != nil {
		logging.FromContext(r.Context()).Warn("download interrupted", zap.String("id", f.ID), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := services.NewError(r.Context(), err)
	writeJSON(w, code, body)
}

func errorBody(code int) *schemas.Error {
	return &schemas.Error{Code: code, Message: http.StatusText(code)}
}
