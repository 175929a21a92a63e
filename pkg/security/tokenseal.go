package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/entrenaapp/entrena-backend/pkg/config"
)

// ErrInvalidCiphertext signals a malformed or tampered sealed token.
var ErrInvalidCiphertext = fmt.Errorf("invalid sealed token")

// TokenSealer seals and opens gateway access tokens for storage. Sealed
// values are base64(nonce || ciphertext) under XChaCha20-Poly1305.
type TokenSealer struct {
	key []byte
}

// NewTokenSealer validates the configured key and returns a sealer.
func NewTokenSealer(cfg config.VaultConfig) (*TokenSealer, error) {
	key, err := base64.StdEncoding.DecodeString(cfg.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("decoding vault token key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("vault token key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &TokenSealer{key: key}, nil
}

// Seal encrypts a plaintext token for storage.
func (s *TokenSealer) Seal(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("building cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(token), nil)
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a stored sealed token. The returned plaintext must stay
// process-local and must never be logged.
func (s *TokenSealer) Open(sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("building cipher: %w", err)
	}

	if len(raw) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
