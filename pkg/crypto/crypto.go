// Package crypto seals and opens provider credentials at rest using
// NaCl secretbox with a random nonce prefix.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the required length of the secretbox key in bytes.
const KeySize = 32

const nonceSize = 24

var (
	// ErrInvalidKey is returned when the key is not KeySize bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")

	// ErrDecryptionFailed is returned when a sealed blob cannot be opened,
	// either because it was tampered with or sealed under a different key.
	ErrDecryptionFailed = errors.New("failed to decrypt credentials")
)

// Cipher encrypts and decrypts credential blobs with a fixed symmetric key.
type Cipher struct {
	key [KeySize]byte
}

// NewCipher creates a cipher from a raw 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidKey, len(key))
	}
	c := &Cipher{}
	copy(c.key[:], key)
	return c, nil
}

// NewCipherFromHex creates a cipher from a hex-encoded 32-byte key.
func NewCipherFromHex(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex encryption key: %w", err)
	}
	return NewCipher(key)
}

// GenerateKey returns a new random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext. The nonce is prepended to the returned blob.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &c.key), nil
}

// Open decrypts a blob produced by Seal.
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, ErrDecryptionFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &c.key)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
