// Package password hashes and verifies upload passwords.
package password

import (
	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/internal/config"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMismatch = errors.New("password mismatch")
	ErrTooLong  = errors.New("password too long")
)

// bcrypt only looks at the first 72 bytes.
const maxBcryptLen = 72

type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// New returns the hasher named by conf.Algorithm.
func New(conf config.PasswordConfig) (Hasher, error) {
	switch conf.Algorithm {
	case "", "bcrypt":
		return NewBcrypt(conf.Cost)
	}
	return nil, errors.Errorf("unsupported password algorithm %q", conf.Algorithm)
}

type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) > maxBcryptLen {
		return "", ErrTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt")
	}
	return string(h), nil
}

func (b *Bcrypt) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
