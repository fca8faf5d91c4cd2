// Package security encrypts provider credentials at rest.
//
// Storage provider configs carry API secrets (S3 keys, OAuth client
// secrets, refresh tokens). Those fields are sealed with AES-256-GCM
// under a master key kept outside the database, so a copied database
// file alone does not leak credentials.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/photarium/photarium/src/common/paths"
)

// sealedPrefix marks sealed values so plaintext rows from older
// databases still read back unchanged.
const sealedPrefix = "enc:v1:"

const keySize = 32 // AES-256

// SecretManager seals and opens credential fields with the master key.
type SecretManager struct {
	key []byte
}

// NewSecretManager loads the master key from keyPath, generating and
// persisting a fresh one on first run.
func NewSecretManager(keyPath string) (*SecretManager, error) {
	keyPath = paths.ExpandHome(keyPath)

	if key, err := os.ReadFile(keyPath); err == nil && len(key) == keySize {
		return &SecretManager{key: key}, nil
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(keyPath, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write master key: %w", err)
	}

	return &SecretManager{key: key}, nil
}

func (sm *SecretManager) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sm.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext and returns it as a prefixed base64 string.
// Empty values pass through so optional fields stay empty.
func (sm *SecretManager) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := sm.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed value. Values without the prefix are returned
// as-is.
func (sm *SecretManager) Decrypt(value string) (string, error) {
	if !sm.IsEncrypted(value) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	gcm, err := sm.aead()
	if err != nil {
		return "", err
	}

	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether the value carries the sealed prefix.
func (sm *SecretManager) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
