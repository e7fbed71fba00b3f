package device

import (
	"regexp"
	"strings"

	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/crypto"
)

// MaxSerialLength caps device serials so they stay usable as log fields and
// URL path segments
const MaxSerialLength = 64

var serialPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateSerial validates a device serial
func ValidateSerial(serial string) error {
	if strings.TrimSpace(serial) == "" {
		return apperrors.NewDeviceError(apperrors.ErrCodeValidation, "serial cannot be empty", false, nil)
	}

	if len(serial) > MaxSerialLength {
		return apperrors.NewDeviceError(apperrors.ErrCodeValidation, "serial exceeds maximum length", false, nil).
			WithMetadata("serial", serial[:MaxSerialLength]+"...").
			WithMetadata("max_length", MaxSerialLength)
	}

	if !serialPattern.MatchString(serial) {
		return apperrors.NewDeviceError(apperrors.ErrCodeValidation, "serial may only contain letters, digits, dots, underscores and hyphens", false, nil).
			WithMetadata("serial", serial)
	}

	return nil
}

// ValidatePublicKey validates a WireGuard public key
func ValidatePublicKey(publicKey string) error {
	if err := crypto.ValidatePublicKey(publicKey); err != nil {
		return apperrors.NewDeviceError(apperrors.ErrCodeValidation, err.Error(), false, nil)
	}
	return nil
}
