package wireguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trevor-gituru/wireguard-relay-api/pkg/crypto"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// KeyManager handles device-side key generation and storage
type KeyManager struct {
	logger *logger.Logger
}

// NewKeyManager creates a key manager
func NewKeyManager(log *logger.Logger) *KeyManager {
	if log == nil {
		log = logger.NewDevelopment("keys")
	}

	return &KeyManager{logger: log}
}

// LoadOrCreateKey returns the private key stored at keyPath, generating and
// saving a fresh one when no file exists yet.
func (km *KeyManager) LoadOrCreateKey(keyPath string) (string, error) {
	keyPath = expandHomeDir(keyPath)

	if _, err := os.Stat(keyPath); err == nil {
		return km.LoadExistingKey(keyPath)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check key file: %w", err)
	}

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		return "", fmt.Errorf("failed to generate key pair: %w", err)
	}

	if err := km.SavePrivateKey(keyPair.PrivateKey, keyPath); err != nil {
		return "", err
	}

	km.logger.Info("generated and saved new device key", "path", keyPath)
	return keyPair.PrivateKey, nil
}

// LoadExistingKey reads and validates the private key at keyPath
func (km *KeyManager) LoadExistingKey(keyPath string) (string, error) {
	keyPath = expandHomeDir(keyPath)

	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return "", fmt.Errorf("failed to read private key: %w", err)
	}

	privateKey := strings.TrimSpace(string(keyBytes))
	if !crypto.IsValidWireGuardKey(privateKey) {
		return "", fmt.Errorf("invalid private key format in %s", keyPath)
	}

	return privateKey, nil
}

// GenerateKeyPair creates a fresh device key pair
func (km *KeyManager) GenerateKeyPair() (privateKey, publicKey string, err error) {
	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key pair: %w", err)
	}
	return keyPair.PrivateKey, keyPair.PublicKey, nil
}

// GetPublicKey derives the public key for a stored private key
func (km *KeyManager) GetPublicKey(privateKey string) (string, error) {
	publicKey, err := crypto.DerivePublicKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive public key: %w", err)
	}
	return publicKey, nil
}

// SavePrivateKey writes the key with 0600 permissions. The write goes through
// a temp file and rename so a crash never leaves a partial key behind.
func (km *KeyManager) SavePrivateKey(privateKey, keyPath string) error {
	if !crypto.IsValidWireGuardKey(privateKey) {
		return fmt.Errorf("invalid private key format")
	}
	if err := km.writeKeyFile(privateKey, keyPath); err != nil {
		return err
	}
	km.logger.Debug("saved private key", "path", keyPath)
	return nil
}

// SavePublicKey writes the public key next to the private one, same
// permissions and write path.
func (km *KeyManager) SavePublicKey(publicKey, keyPath string) error {
	if !crypto.IsValidWireGuardKey(publicKey) {
		return fmt.Errorf("invalid public key format")
	}
	if err := km.writeKeyFile(publicKey, keyPath); err != nil {
		return err
	}
	km.logger.Debug("saved public key", "path", keyPath)
	return nil
}

func (km *KeyManager) writeKeyFile(key, keyPath string) error {
	keyPath = expandHomeDir(keyPath)
	dir := filepath.Dir(keyPath)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "wgkey-*")
	if err != nil {
		return fmt.Errorf("failed to create temp key file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpName)
	}()

	if _, err := tmpFile.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	if err := tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("failed to set key file permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp key file: %w", err)
	}

	if err := os.Rename(tmpName, keyPath); err != nil {
		return fmt.Errorf("failed to move key file into place: %w", err)
	}
	return nil
}

// expandHomeDir expands a leading ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return strings.Replace(path, "~/", home+"/", 1)
	}
	return path
}
