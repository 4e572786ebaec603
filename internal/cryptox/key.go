package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/chatvault/chatvault/internal/common"
)

// KeySize is the required symmetric key length (AES-256).
const KeySize = 32

// ErrMissingKey is returned by KeyFromBase64 when no key is configured.
// The caller decides whether that is fatal or whether an ephemeral key may
// be generated instead.
var ErrMissingKey = errors.New("encryption key not configured")

// KeyFromBase64 decodes a standard-base64 encryption key from configuration
// and validates its length. An empty string yields ErrMissingKey so callers
// can distinguish "not configured" from "malformed".
func KeyFromBase64(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrMissingKey
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("malformed encryption key: %w", err)
	}

	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	return key, nil
}

// NewRandomKey generates a fresh random key. Secrets encrypted under it are
// unreadable after the process exits, so this is only suitable behind the
// explicit ephemeral-key opt-in.
func NewRandomKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}
