package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	ErrCipherNoKey      = errors.New("token cipher: no encryption key configured")
	ErrCipherMalformed  = errors.New("token cipher: malformed ciphertext")
	ErrCipherAuthFailed = errors.New("token cipher: authentication failed")
)

// TokenCipher seals platform access tokens at rest with NaCl secretbox.
// Ciphertext is base64(nonce || box).
type TokenCipher struct {
	key    *[32]byte
	random io.Reader
}

// NewTokenCipher creates a cipher for key
func NewTokenCipher(key [32]byte) *TokenCipher {
	return &TokenCipher{key: &key, random: rand.Reader}
}

// Encrypt seals plaintext under a fresh random nonce
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.key == nil {
		return "", ErrCipherNoKey
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(c.random, nonce[:]); err != nil {
		return "", fmt.Errorf("token cipher: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if c == nil || c.key == nil {
		return "", ErrCipherNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCipherMalformed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, c.key)
	if !ok {
		return "", ErrCipherAuthFailed
	}
	return string(plain), nil
}
