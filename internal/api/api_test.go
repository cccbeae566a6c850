package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgdrive/dropshare/internal/auth"
	"github.com/tgdrive/dropshare/internal/blob"
	"github.com/tgdrive/dropshare/internal/cache"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/password"
	"github.com/tgdrive/dropshare/internal/store"
	"github.com/tgdrive/dropshare/pkg/schemas"
	"github.com/tgdrive/dropshare/pkg/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newServer(t *testing.T, uploads config.UploadsConfig) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.New(ctx, &config.DBConfig{
		Type:        "bolt",
		BoltPath:    filepath.Join(dir, "meta.db"),
		BoltTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	blobs, err := blob.NewLocal(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	files := services.NewFileService(st, blobs, cache.NewMemoryCache(1024*1024), hasher,
		auth.NewSigner("test-secret", time.Minute), uploads, time.Minute)

	conf := &config.ServerCmdConfig{Uploads: uploads}
	conf.Server.AllowedOrigins = []string{"*"}

	srv := httptest.NewServer(NewRouter(conf, files, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func uploadBody(t *testing.T, filename string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name": "file", "filename": filename,
	}))
	h.Set("Content-Type", "application/octet-stream")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func upload(t *testing.T, srv *httptest.Server, filename string, data []byte, fields map[string]string) *schemas.UploadOut {
	t.Helper()
	body, ct := uploadBody(t, filename, data, fields)
	res, err := http.Post(srv.URL+"/upload", ct, body)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var out schemas.UploadOut
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return &out
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return res
}

func readBody(t *testing.T, res *http.Response) []byte {
	t.Helper()
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return data
}

func decodeError(t *testing.T, res *http.Response) *schemas.Error {
	t.Helper()
	defer res.Body.Close()
	var e schemas.Error
	require.NoError(t, json.NewDecoder(res.Body).Decode(&e))
	return &e
}

func TestUploadAndDownload(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})
	data := bytes.Repeat([]byte{0x00, 0xff, 'a', '\n'}, 4096)

	out := upload(t, srv, "notes.txt", data, nil)
	assert.Equal(t, srv.URL+"/file/"+out.ID, out.Link)
	assert.True(t, strings.HasSuffix(out.ID, ".txt"))

	res, err := http.Get(srv.URL + "/file/" + out.ID + "/info")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var info schemas.FileInfo
	require.NoError(t, json.NewDecoder(res.Body).Decode(&info))
	res.Body.Close()
	assert.False(t, info.PasswordProtected)
	assert.Equal(t, "notes.txt", info.OriginalName)
	assert.EqualValues(t, len(data), info.Size)

	res, err = http.Get(out.Link)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, data, readBody(t, res))
	assert.Equal(t, `"`+info.Checksum+`"`, res.Header.Get("ETag"))

	_, params, err := mime.ParseMediaType(res.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", params["filename"])

	res = postJSON(t, out.Link, schemas.FileAccess{})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, data, readBody(t, res))
}

func TestNonASCIIFilename(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})
	out := upload(t, srv, "résumé 2024.pdf", []byte("pdf"), nil)

	res, err := http.Get(out.Link)
	require.NoError(t, err)
	readBody(t, res)

	_, params, err := mime.ParseMediaType(res.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "résumé 2024.pdf", params["filename"])
}

func TestUploadKeepsExtension(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})

	for _, name := range []string{"notes.c++", "backup.tar-gz", "doc.résumé"} {
		t.Run(name, func(t *testing.T) {
			data := []byte("contents of " + name)
			out := upload(t, srv, name, data, nil)
			assert.True(t, strings.HasSuffix(out.ID, filepath.Ext(name)), out.ID)

			res, err := http.Get(out.Link)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, data, readBody(t, res))

			res, err = http.Get(out.Link + "/info")
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, res.StatusCode)
			readBody(t, res)
		})
	}
}

func TestRangeRequest(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})
	out := upload(t, srv, "a.bin", []byte("0123456789"), nil)

	req, err := http.NewRequest(http.MethodGet, out.Link, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=2-5")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPartialContent, res.StatusCode)
	assert.Equal(t, "2345", string(readBody(t, res)))
}

func TestProtectedFile(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})
	data := []byte("top secret payload")
	out := upload(t, srv, "secret.txt", data, map[string]string{"password": "hunter2"})

	res, err := http.Get(out.Link + "/info")
	require.NoError(t, err)
	var info schemas.FileInfo
	require.NoError(t, json.NewDecoder(res.Body).Decode(&info))
	res.Body.Close()
	assert.True(t, info.PasswordProtected)

	t.Run("wrong password", func(t *testing.T) {
		res := postJSON(t, out.Link, schemas.FileAccess{Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		e := decodeError(t, res)
		assert.Equal(t, http.StatusUnauthorized, e.Code)
		assert.NotContains(t, e.Message, string(data))
	})

	t.Run("missing password", func(t *testing.T) {
		res, err := http.Post(out.Link, "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.NotContains(t, string(readBody(t, res)), string(data))
	})

	t.Run("json password", func(t *testing.T) {
		res := postJSON(t, out.Link, schemas.FileAccess{Password: "hunter2"})
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, data, readBody(t, res))
	})

	t.Run("form password", func(t *testing.T) {
		res, err := http.PostForm(out.Link, url.Values{"password": {"hunter2"}})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, data, readBody(t, res))
	})

	t.Run("direct without credentials", func(t *testing.T) {
		res, err := http.Get(out.Link)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.Contains(t, res.Header.Get("WWW-Authenticate"), "Basic")
		assert.NotContains(t, string(readBody(t, res)), string(data))
	})

	t.Run("direct with basic auth", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, out.Link, nil)
		require.NoError(t, err)
		req.SetBasicAuth("", "hunter2")
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, data, readBody(t, res))
	})

	t.Run("unlock token", func(t *testing.T) {
		res := postJSON(t, out.Link+"/unlock", schemas.FileAccess{Password: "hunter2"})
		require.Equal(t, http.StatusOK, res.StatusCode)
		var unlocked schemas.UnlockOut
		require.NoError(t, json.NewDecoder(res.Body).Decode(&unlocked))
		res.Body.Close()
		require.NotEmpty(t, unlocked.Token)

		res, err := http.Get(out.Link + "?token=" + url.QueryEscape(unlocked.Token))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, data, readBody(t, res))

		res, err = http.Get(out.Link + "?token=garbage")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		readBody(t, res)
	})
}

func TestUnknownFile(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})
	link := srv.URL + "/file/does-not-exist.txt"

	res, err := http.Get(link + "/info")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, decodeError(t, res).Code)

	res, err = http.Get(link)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	readBody(t, res)

	res = postJSON(t, link, schemas.FileAccess{Password: "x"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	readBody(t, res)
}

func TestUploadErrors(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{MaxSize: 1024})

	t.Run("not multipart", func(t *testing.T) {
		res, err := http.Post(srv.URL+"/upload", "text/plain", strings.NewReader("hi"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, decodeError(t, res).Code)
	})

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("password", "x"))
		require.NoError(t, w.Close())
		res, err := http.Post(srv.URL+"/upload", w.FormDataContentType(), &buf)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, decodeError(t, res).Code)
	})

	t.Run("too large", func(t *testing.T) {
		body, ct := uploadBody(t, "big.bin", bytes.Repeat([]byte("x"), 4096), nil)
		res, err := http.Post(srv.URL+"/upload", ct, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
		readBody(t, res)
	})

	t.Run("invalid ttl", func(t *testing.T) {
		body, ct := uploadBody(t, "a.txt", []byte("a"), map[string]string{"ttl": "soon"})
		res, err := http.Post(srv.URL+"/upload", ct, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, decodeError(t, res).Code)
	})
}

func TestUploadExpiry(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})
	out := upload(t, srv, "a.txt", []byte("a"), map[string]string{"ttl": "1h"})
	require.NotNil(t, out.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *out.ExpiresAt, time.Minute)
}

func TestPublicURL(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{PublicURL: "https://share.example.com/"})
	out := upload(t, srv, "a.txt", []byte("a"), nil)
	assert.Equal(t, "https://share.example.com/file/"+out.ID, out.Link)
}

func TestUploadRateLimit(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{Rate: 1, Burst: 1})
	upload(t, srv, "a.txt", []byte("a"), nil)

	body, ct := uploadBody(t, "b.txt", []byte("b"), nil)
	res, err := http.Post(srv.URL+"/upload", ct, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, decodeError(t, res).Code)

	// downloads are not limited
	res, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	readBody(t, res)
}

func TestConcurrentUploads(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})
	const n = 8

	bodies := make([]io.Reader, n)
	types := make([]string, n)
	for i := range bodies {
		bodies[i], types[i] = uploadBody(t, "f.txt", []byte(fmt.Sprintf("payload-%d", i)), nil)
	}

	var wg sync.WaitGroup
	links := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := http.Post(srv.URL+"/upload", types[i], bodies[i])
			if !assert.NoError(t, err) {
				return
			}
			defer res.Body.Close()
			var out schemas.UploadOut
			if assert.NoError(t, json.NewDecoder(res.Body).Decode(&out)) {
				links[i] = out.Link
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, link := range links {
		require.NotEmpty(t, link)
		assert.False(t, seen[link])
		seen[link] = true

		res, err := http.Get(link)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("payload-%d", i), string(readBody(t, res)))
	}
}

func TestHealthAndVersion(t *testing.T) {
	srv := newServer(t, config.UploadsConfig{})

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(readBody(t, res)))

	res, err = http.Get(srv.URL + "/version")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(readBody(t, res)), `"version"`)

	res, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, decodeError(t, res).Code)
}
