package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/pkg/models"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	filesBucket  = []byte("files")
	expiryBucket = []byte("expiry")
)

// Bolt keeps records in a "files" bucket and indexes expiring ones in an
// "expiry" bucket keyed by big endian expiry nanos followed by the id.
type Bolt struct {
	db *bbolt.DB
}

func NewBolt(db *bbolt.DB) (*Bolt, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{filesBucket, expiryBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create buckets")
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Insert(_ context.Context, f *models.File) error {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		files := tx.Bucket(filesBucket)
		if files.Get([]byte(f.ID)) != nil {
			return ErrKeyConflict
		}
		if err := files.Put([]byte(f.ID), data); err != nil {
			return err
		}
		if f.ExpiresAt != nil {
			return tx.Bucket(expiryBucket).Put(expiryKey(*f.ExpiresAt, f.ID), nil)
		}
		return nil
	})
}

func (b *Bolt) Get(_ context.Context, id string) (*models.File, error) {
	var f *models.File
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(filesBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		f = &models.File{}
		return decode(data, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (b *Bolt) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		files := tx.Bucket(filesBucket)
		data := files.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var f models.File
		if err := decode(data, &f); err != nil {
			return err
		}
		if f.ExpiresAt != nil {
			if err := tx.Bucket(expiryBucket).Delete(expiryKey(*f.ExpiresAt, id)); err != nil {
				return err
			}
		}
		return files.Delete([]byte(id))
	})
}

func (b *Bolt) ListExpired(_ context.Context, now time.Time, limit int) ([]models.File, error) {
	var out []models.File
	upper := expiryPrefix(now)
	err := b.db.View(func(tx *bbolt.Tx) error {
		files := tx.Bucket(filesBucket)
		c := tx.Bucket(expiryBucket).Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k[:8], upper) <= 0; k, _ = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			data := files.Get(k[8:])
			if data == nil {
				continue
			}
			var f models.File
			if err := decode(data, &f); err != nil {
				return err
			}
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

// decode unpacks a record; msgpack restores times in the local zone.
func decode(data []byte, f *models.File) error {
	if err := msgpack.Unmarshal(data, f); err != nil {
		return errors.Wrap(err, "decode record")
	}
	f.UTC()
	return nil
}

func expiryPrefix(t time.Time) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(max(t.UnixNano(), 0)))
	return k
}

func expiryKey(t time.Time, id string) []byte {
	return append(expiryPrefix(t), id...)
}
