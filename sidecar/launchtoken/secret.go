package launchtoken

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultSecretFileName is the key file created in the app data dir.
	DefaultSecretFileName = "launch.key"

	secretKeySize = 32
)

// ErrNoSecretKey is returned by ReadSecretKey when the key file is missing.
var ErrNoSecretKey = errors.New("launch token secret key does not exist")

// ReadSecretKey reads an existing signing key and never creates one.
func ReadSecretKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoSecretKey, path)
		}
		return nil, fmt.Errorf("failed to read launch token secret key: %w", err)
	}
	return checkKey(path, key)
}

// LoadSecretKey reads the signing key at path, generating and persisting a
// new random key when the file does not exist yet.
func LoadSecretKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read launch token secret key: %w", err)
		}
		b := make([]byte, secretKeySize)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate random launch token secret key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create secret key directory: %w", err)
		}
		if err := os.WriteFile(path, b, 0600); err != nil {
			return nil, fmt.Errorf("failed to write launch token secret key: %w", err)
		}
		return b, nil
	}
	return checkKey(path, key)
}

func checkKey(path string, key []byte) ([]byte, error) {
	if len(key) < secretKeySize {
		return nil, fmt.Errorf("launch token secret key %s is too short: %d bytes", path, len(key))
	}
	return key, nil
}
