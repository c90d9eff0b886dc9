package shared

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

// KeySize is the length in bytes of the credential sealing key.
const KeySize = 32

// LoadOrCreateKey returns the sealing key stored at path, generating and
// persisting a fresh random key on first use.
//
// The key file is written with 0600 permissions; parent directories are
// created as needed.
func LoadOrCreateKey(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		if len(data) != KeySize {
			return nil, fmt.Errorf("%w: key file %s has %d bytes, want %d", ErrInvalidCredentials, path, len(data), KeySize)
		}
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	return key, nil
}
