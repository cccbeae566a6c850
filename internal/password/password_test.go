package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgdrive/dropshare/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptRoundTrip(t *testing.T) {
	h, err := New(config.PasswordConfig{Algorithm: "bcrypt", Cost: bcrypt.MinCost})
	require.NoError(t, err)

	hash, err := h.Hash("secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$04$"))
	assert.NotContains(t, hash, "secret")

	assert.NoError(t, h.Verify(hash, "secret"))
	assert.ErrorIs(t, h.Verify(hash, "wrong"), ErrMismatch)
	assert.ErrorIs(t, h.Verify(hash, ""), ErrMismatch)
}

func TestHashesAreSalted(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCostFromConfig(t *testing.T) {
	h, err := NewBcrypt(5)
	require.NoError(t, err)
	hash, err := h.Hash("x")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)

	d, err := NewBcrypt(0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, d.cost)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(config.PasswordConfig{Algorithm: "md5"})
	assert.Error(t, err)

	_, err = NewBcrypt(64)
	assert.Error(t, err)
}

func TestTooLong(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrTooLong)

	_, err = h.Hash(strings.Repeat("x", 72))
	assert.NoError(t, err)
}
