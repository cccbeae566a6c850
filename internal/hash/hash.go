// Package hash computes content checksums while data streams through.
package hash

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// Reader tees everything read from the wrapped reader into a blake3 hasher
// and counts the bytes.
type Reader struct {
	r io.Reader
	h *blake3.Hasher
	n int64
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, h: blake3.New()}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.h.Write(p[:n])
		r.n += int64(n)
	}
	return n, err
}

// Size is the number of bytes read so far.
func (r *Reader) Size() int64 {
	return r.n
}

// Sum is the hex digest of the bytes read so far.
func (r *Reader) Sum() string {
	return hex.EncodeToString(r.h.Sum(nil))
}

func Sum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
