package schemas

import "time"

type UploadOut struct {
	Link      string     `json:"link"`
	ID        string     `json:"id"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type FileInfo struct {
	PasswordProtected bool       `json:"passwordProtected"`
	OriginalName      string     `json:"originalName"`
	Size              int64      `json:"size"`
	ContentType       string     `json:"contentType"`
	Checksum          string     `json:"checksum"`
	CreatedAt         time.Time  `json:"createdAt"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
}

type FileAccess struct {
	Password string `json:"password"`
}

type UnlockOut struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
