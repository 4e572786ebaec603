// Package cryptox implements the two cryptographic primitives the server
// relies on: slow salted password hashing (bcrypt) and authenticated
// symmetric encryption of opaque secrets (AES-256-GCM).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/chatvault/chatvault/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// ErrDecryptionFailed is returned when ciphertext fails its integrity or
// authenticity check: tampered data, wrong key, or corruption. Decryption
// never returns corrupted plaintext silently.
var ErrDecryptionFailed = errors.New("decryption failed")

const gcmNonceSize = 12

// HashPassword produces a salted bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the bcrypt hash.
// bcrypt's comparison is constant-time with respect to the hash contents.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Encrypt seals plaintext with AES-GCM under key. A fresh random 12-byte
// nonce is generated per call and prepended to the returned ciphertext, so
// the result is self-contained.
//
// The key must be a valid AES key length; the server uses 32 bytes (AES-256).
func Encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(gcmNonceSize)

	// Seal appends to the nonce slice, producing nonce||ciphertext||tag.
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt. It returns
// ErrDecryptionFailed if the data is too short, was tampered with, or was
// sealed under a different key.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcmNonceSize {
		return nil, ErrDecryptionFailed
	}

	nonce, sealed := ciphertext[:gcmNonceSize], ciphertext[gcmNonceSize:]

	plaintext, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}
