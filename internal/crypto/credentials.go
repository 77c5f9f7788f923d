// Package crypto implements the credential-at-rest scheme from spec §6:
// AES-256-CBC with a random 16-byte IV per value, persisted as
// hex(iv) + ":" + hex(ciphertext). The 32-byte key is supplied by the
// caller; the binaries derive it with DeriveKey (PBKDF2) from the
// CREDENTIAL_PASSPHRASE environment variable, and none of them reads
// ENCRYPTION_KEY (the block cipher itself is stdlib crypto/aes — no
// ecosystem package improves on it for CBC, see DESIGN.md).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize    = 32 // AES-256
	pbkdf2Iter = 100_000
)

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// DeriveKey turns an operator-supplied passphrase into a 32-byte AES-256
// key using PBKDF2-HMAC-SHA256 with a fixed salt, the SHA-256 digest of a
// constant string (the key is itself a long-lived secret, not a password
// compared at login time, so a static salt is acceptable here).
func DeriveKey(passphrase string) []byte {
	salt := sha256.Sum256([]byte("workflow-orchestrator-credential-key"))
	return pbkdf2.Key([]byte(passphrase), salt[:], pbkdf2Iter, keySize, sha256.New)
}

// Encrypt encrypts plaintext with AES-256-CBC under key (which must be
// exactly 32 bytes — use a raw key or DeriveKey's output), returning
// hex(iv) + ":" + hex(ciphertext).
func Encrypt(key []byte, plaintext string) (string, error) {
	if len(key) != keySize {
		return "", fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), block.BlockSize())

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func Decrypt(key []byte, encoded string) (string, error) {
	if len(key) != keySize {
		return "", fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}

	parts := strings.SplitN(encoded, ":", 2)
	if len(parts) != 2 {
		return "", ErrMalformedCiphertext
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: bad iv: %v", ErrMalformedCiphertext, err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext: %v", ErrMalformedCiphertext, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext not block-aligned", ErrMalformedCiphertext)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv wrong size", ErrMalformedCiphertext)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrMalformedCiphertext
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, ErrMalformedCiphertext
	}
	return data[:len(data)-padLen], nil
}
