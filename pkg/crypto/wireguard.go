package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"

	"golang.org/x/crypto/curve25519"
)

// base64KeyPattern matches the character set of a base64-encoded key.
var base64KeyPattern = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)

// KeyPair represents a WireGuard key pair (private and public keys).
type KeyPair struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

// GenerateKeyPair generates a new WireGuard key pair using native crypto.
func GenerateKeyPair() (*KeyPair, error) {
	privateKeyBytes := make([]byte, 32)
	if _, err := rand.Read(privateKeyBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes for private key: %w", err)
	}

	publicKey, err := publicFromPrivate(privateKeyBytes)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		PrivateKey: base64.StdEncoding.EncodeToString(privateKeyBytes),
		PublicKey:  publicKey,
	}, nil
}

// DerivePublicKey derives a public key from a given private key.
func DerivePublicKey(privateKey string) (string, error) {
	privateKeyBytes, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("private key is not valid base64: %w", err)
	}
	if len(privateKeyBytes) != 32 {
		return "", fmt.Errorf("private key has incorrect length: expected 32 bytes")
	}

	return publicFromPrivate(privateKeyBytes)
}

// publicFromPrivate clamps the private key bytes in place per the
// WireGuard key schedule, then derives the base64 public key.
func publicFromPrivate(privateKeyBytes []byte) (string, error) {
	clampPrivateKey(privateKeyBytes)

	publicKeyBytes, err := curve25519.X25519(privateKeyBytes, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("failed to derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(publicKeyBytes), nil
}

// clampPrivateKey applies the clamping function to a private key as specified by WireGuard.
func clampPrivateKey(key []byte) {
	key[0] &= 248
	key[31] &= 127
	key[31] |= 64
}

// IsValidWireGuardKey reports whether a string looks like a WireGuard key:
// 44 characters of valid base64.
func IsValidWireGuardKey(key string) bool {
	// WireGuard keys are base64-encoded 32-byte values, which results in 44 characters.
	if len(key) != 44 {
		return false
	}

	if !base64KeyPattern.MatchString(key) {
		return false
	}

	_, err := base64.StdEncoding.DecodeString(key)
	return err == nil
}

// ValidatePublicKey checks a public key strictly: 44 base64 characters that
// decode to exactly 32 bytes. Unlike IsValidWireGuardKey it rejects 44-char
// strings whose unpadded decoding yields 33 bytes, and it returns a
// descriptive error for callers that surface validation messages.
func ValidatePublicKey(key string) error {
	if key == "" {
		return fmt.Errorf("public key cannot be empty")
	}
	if len(key) != 44 {
		return fmt.Errorf("public key must be 44 characters long, got %d", len(key))
	}
	if !base64KeyPattern.MatchString(key) {
		return fmt.Errorf("public key contains invalid base64 characters")
	}

	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return fmt.Errorf("public key is not valid base64: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("public key must decode to 32 bytes, got %d", len(decoded))
	}

	return nil
}
