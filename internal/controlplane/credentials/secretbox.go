// Package credentials resolves connection parameters for a device,
// including the decrypted secret. Secrets rest in the device store as
// AES-256-GCM tokens in the form ivHex:authTagHex:cipherHex.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedCiphertext means the token does not have the expected
	// ivHex:authTagHex:cipherHex shape.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrDecryptFailed means the token is well-formed but the key does not
	// match or the payload was tampered with.
	ErrDecryptFailed = errors.New("decryption failed")
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

// Box encrypts and decrypts device secrets with a fixed 32-byte key.
type Box struct {
	key []byte
}

// NewBox builds a Box from a hex-encoded 32-byte key.
func NewBox(hexKey string) (*Box, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	return &Box{key: key}, nil
}

// Encrypt seals plaintext into an ivHex:authTagHex:cipherHex token.
func (b *Box) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal appends the auth tag to the ciphertext; the token keeps them apart.
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	), nil
}

// Decrypt opens an ivHex:authTagHex:cipherHex token. A malformed token and
// a key mismatch produce distinguishable errors.
func (b *Box) Decrypt(token string) (string, error) {
	parts := strings.Split(strings.TrimSpace(token), ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: want 3 parts, got %d", ErrMalformedCiphertext, len(parts))
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: bad iv", ErrMalformedCiphertext)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: bad auth tag", ErrMalformedCiphertext)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad cipher body", ErrMalformedCiphertext)
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
