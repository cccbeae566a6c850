package models

import "time"

// File is the metadata kept for one uploaded file. Records are written once
// on upload and never updated.
type File struct {
	ID           string     `msgpack:"id"`
	PasswordHash string     `msgpack:"passwordHash,omitempty"`
	OriginalName string     `msgpack:"originalName"`
	ContentType  string     `msgpack:"contentType"`
	Size         int64      `msgpack:"size"`
	Checksum     string     `msgpack:"checksum"`
	CreatedAt    time.Time  `msgpack:"createdAt"`
	ExpiresAt    *time.Time `msgpack:"expiresAt,omitempty"`
}

func (f *File) Protected() bool {
	return f.PasswordHash != ""
}

// Expired reports whether the file has an expiry at or before now.
func (f *File) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && !f.ExpiresAt.After(now)
}

// UTC moves all timestamps to UTC. Decoders may hand back local times.
func (f *File) UTC() *File {
	f.CreatedAt = f.CreatedAt.UTC()
	if f.ExpiresAt != nil {
		t := f.ExpiresAt.UTC()
		f.ExpiresAt = &t
	}
	return f
}
