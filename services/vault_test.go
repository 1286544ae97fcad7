package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialVault(t *testing.T) {
	vault := NewCredentialVault("test-encryption-key-at-least-32-chars")

	t.Run("шифрование и расшифровка", func(t *testing.T) {
		sealed, err := vault.Encrypt("s3cr3t-panel-pass")
		require.NoError(t, err)
		assert.NotEqual(t, "s3cr3t-panel-pass", sealed)

		plain, err := vault.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t-panel-pass", plain)
	})

	t.Run("одинаковые пароли дают разный шифротекст", func(t *testing.T) {
		a, err := vault.Encrypt("same")
		require.NoError(t, err)
		b, err := vault.Encrypt("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("пустая строка", func(t *testing.T) {
		sealed, err := vault.Encrypt("")
		require.NoError(t, err)
		assert.Empty(t, sealed)

		plain, err := vault.Decrypt("")
		require.NoError(t, err)
		assert.Empty(t, plain)
	})

	t.Run("чужой ключ", func(t *testing.T) {
		sealed, err := vault.Encrypt("value")
		require.NoError(t, err)

		_, err = NewCredentialVault("another-key").Decrypt(sealed)
		assert.ErrorIs(t, err, errCiphertext)
	})

	t.Run("мусор вместо шифротекста", func(t *testing.T) {
		_, err := vault.Decrypt("not-base64!!")
		assert.ErrorIs(t, err, errCiphertext)

		_, err = vault.Decrypt("c2hvcnQ=")
		assert.ErrorIs(t, err, errCiphertext)
	})
}
