// Package keycrypt encrypts private key material before it is written to
// durable storage. Keys are sealed with AES-GCM under a key derived from a
// service password with Argon2id. Plaintext private keys never reach the
// store.
package keycrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// Format version
	formatVersion = 0x01

	// Cryptographic parameters
	saltSize    = 16
	keySize     = 32
	nonceSize   = 12
	memory      = 64 * 1024 // 64 MB
	iterations  = 3
	parallelism = 4

	// Minimum blob size: version(1) + salt(16) + nonce(12) + min ciphertext(1)
	minBlobSize = 1 + saltSize + nonceSize + 1
)

// zero overwrites the given byte slice with zeros
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// deriveKey derives a 32-byte key from a password and salt using Argon2id
func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, iterations, memory, uint8(parallelism), keySize)
}

// validateFormat checks if the blob has a valid format
func validateFormat(blob []byte) error {
	if len(blob) < minBlobSize {
		return fmt.Errorf("invalid blob length: %d (minimum: %d)", len(blob), minBlobSize)
	}

	if blob[0] != formatVersion {
		return fmt.Errorf("unsupported format version: %d", blob[0])
	}

	ciphertextLen := len(blob) - (1 + saltSize + nonceSize)
	if ciphertextLen <= 0 {
		return fmt.Errorf("invalid ciphertext length: %d", ciphertextLen)
	}

	return nil
}

// Seal encrypts raw key material with a password using Argon2id + AES-GCM.
// Output format: [version(1B)][salt(16B)][nonce(12B)][ciphertext(N)]
func Seal(data []byte, password string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey([]byte(password), salt)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aesgcm.Seal(nil, nonce, data, nil)

	result := []byte{formatVersion}
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

// Open decrypts a blob produced by Seal using the password.
func Open(blob []byte, password string) ([]byte, error) {
	if err := validateFormat(blob); err != nil {
		return nil, err
	}

	salt := blob[1 : 1+saltSize]
	nonce := blob[1+saltSize : 1+saltSize+nonceSize]
	ciphertext := blob[1+saltSize+nonceSize:]

	key := deriveKey([]byte(password), salt)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
