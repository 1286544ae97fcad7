package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errCiphertext = errors.New("поврежденные зашифрованные данные")

// CredentialVault шифрует пароли панелей и подписок перед записью в БД
type CredentialVault struct {
	key [32]byte
}

// NewCredentialVault создает хранилище по ключу из конфигурации
func NewCredentialVault(secret string) *CredentialVault {
	return &CredentialVault{key: sha256.Sum256([]byte(secret))}
}

// Encrypt шифрует строку. Пустая строка остается пустой
func (v *CredentialVault) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt расшифровывает строку, созданную Encrypt
func (v *CredentialVault) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errCiphertext, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", errCiphertext
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", errCiphertext
	}
	return string(plain), nil
}
