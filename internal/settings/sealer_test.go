package settings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEncryptor(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	t.Run("seal and open", func(t *testing.T) {
		sealed, err := enc.Seal("component-secret")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
		assert.NotContains(t, sealed, "component-secret")

		opened, err := enc.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "component-secret", opened)
	})

	t.Run("random nonce", func(t *testing.T) {
		a, _ := enc.Seal("same")
		b, _ := enc.Seal("same")
		assert.NotEqual(t, a, b)
	})

	t.Run("empty stays empty", func(t *testing.T) {
		sealed, err := enc.Seal("")
		require.NoError(t, err)
		assert.Empty(t, sealed)
	})

	t.Run("legacy plaintext passes through", func(t *testing.T) {
		opened, err := enc.Open("old-secret")
		require.NoError(t, err)
		assert.Equal(t, "old-secret", opened)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		sealed, _ := enc.Seal("test")
		_, err := enc.Open(sealed[:len(sealed)-2] + "00")
		assert.Error(t, err)
	})

	t.Run("invalid key length", func(t *testing.T) {
		_, err := NewEncryptor("short")
		assert.Error(t, err)
	})
}

func TestNewSealer_WithoutKey(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)

	sealed, err := s.Seal("secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", sealed)

	_, err = s.Open(sealedPrefix + "abcd")
	assert.ErrorIs(t, err, ErrSealed)
}
