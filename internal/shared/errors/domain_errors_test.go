package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseError(t *testing.T) {
	t.Run("carries all fields", func(t *testing.T) {
		cause := errors.New("underlying error")
		metadata := map[string]any{"key": "value"}

		err := NewBaseError("test", "test_code", "test message", true, cause, metadata)

		assert.Equal(t, "test", err.Domain())
		assert.Equal(t, "test_code", err.Code())
		assert.True(t, err.Retryable())
		assert.Same(t, cause, err.Unwrap())
		assert.Equal(t, "value", err.Metadata()["key"])
		assert.False(t, err.Timestamp().IsZero())
	})

	t.Run("message format", func(t *testing.T) {
		plain := NewBaseError("test", "test_code", "test message", false, nil, nil)
		assert.Equal(t, "[test:test_code] test message", plain.Error())

		withCause := NewBaseError("test", "test_code", "test message", false, errors.New("underlying"), nil)
		assert.Equal(t, "[test:test_code] test message: underlying", withCause.Error())
	})

	t.Run("metadata accumulates across WithMetadata calls", func(t *testing.T) {
		err := NewBaseError("test", "test_code", "test message", false, nil, nil).
			WithMetadata("key1", "value1").
			WithMetadata("key2", 42)

		assert.Equal(t, "value1", err.Metadata()["key1"])
		assert.Equal(t, 42, err.Metadata()["key2"])
	})

	t.Run("WithMetadata does not mutate the original", func(t *testing.T) {
		base := NewDeviceError("test_code", "test message", false, nil)
		_ = base.WithMetadata("serial", "abc-123")

		assert.NotContains(t, base.Metadata(), "serial")
	})

	t.Run("nil metadata is replaced with an empty map", func(t *testing.T) {
		err := NewBaseError("test", "test", "test", false, nil, nil)
		require.NotNil(t, err.Metadata())

		enriched := err.WithMetadata("key", "value")
		assert.Equal(t, "value", enriched.Metadata()["key"])
	})
}

func TestConstructorsSetTheirDomain(t *testing.T) {
	tests := []struct {
		name        string
		constructor func(string, string, bool, error) DomainError
		domain      string
	}{
		{"NewDeviceError", NewDeviceError, DomainDevice},
		{"NewRegistryError", NewRegistryError, DomainRegistry},
		{"NewIPError", NewIPError, DomainIP},
		{"NewWireGuardError", NewWireGuardError, DomainWireGuard},
		{"NewSystemError", NewSystemError, DomainSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("test_code", "test message", true, nil)

			assert.Equal(t, tt.domain, err.Domain())
			assert.Equal(t, "test_code", err.Code())
			assert.True(t, err.Retryable())
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       DomainError
		domain    string
		code      string
		retryable bool
	}{
		{"DomainErrDeviceNotFound", DomainErrDeviceNotFound, DomainDevice, ErrCodeDeviceNotFound, false},
		{"DomainErrDeviceExists", DomainErrDeviceExists, DomainDevice, ErrCodeDeviceExists, false},
		{"DomainErrKeyInUse", DomainErrKeyInUse, DomainDevice, ErrCodeKeyInUse, false},
		{"DomainErrInterfaceDown", DomainErrInterfaceDown, DomainWireGuard, ErrCodeInterfaceDown, true},
		{"DomainErrSubnetExhausted", DomainErrSubnetExhausted, DomainIP, ErrCodeSubnetExhausted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.domain, tt.err.Domain())
			assert.Equal(t, tt.code, tt.err.Code())
			assert.Equal(t, tt.retryable, tt.err.Retryable())
		})
	}
}

func TestInspectionHelpers(t *testing.T) {
	domainErr := NewDeviceError("test_code", "test", false, nil)
	plainErr := errors.New("regular error")

	t.Run("IsDomainError", func(t *testing.T) {
		assert.True(t, IsDomainError(domainErr))
		assert.False(t, IsDomainError(plainErr))
	})

	t.Run("IsRetryable", func(t *testing.T) {
		assert.True(t, IsRetryable(NewWireGuardError("test", "test", true, nil)))
		assert.False(t, IsRetryable(NewWireGuardError("test", "test", false, nil)))
		assert.False(t, IsRetryable(plainErr))
	})

	t.Run("GetErrorCode", func(t *testing.T) {
		assert.Equal(t, "test_code", GetErrorCode(domainErr))
		assert.Equal(t, "unknown", GetErrorCode(plainErr))
	})

	t.Run("GetErrorDomain", func(t *testing.T) {
		assert.Equal(t, DomainDevice, GetErrorDomain(domainErr))
		assert.Equal(t, "unknown", GetErrorDomain(plainErr))
	})

	t.Run("HasErrorCode", func(t *testing.T) {
		assert.True(t, HasErrorCode(domainErr, "test_code"))
		assert.False(t, HasErrorCode(domainErr, "other_code"))
		assert.False(t, HasErrorCode(plainErr, "test_code"))
	})

	t.Run("IsErrorCode walks the wrapped chain", func(t *testing.T) {
		inner := NewIPError("inner_code", "inner", false, nil)
		wrapped := fmt.Errorf("wrapped: %w", inner)

		assert.True(t, IsErrorCode(wrapped, "inner_code"))
		assert.False(t, IsErrorCode(wrapped, "other_code"))
	})
}

func TestWrapWithDomain(t *testing.T) {
	original := errors.New("original error")
	wrapped := WrapWithDomain(original, "test", "test_code", "wrapped message", true)

	assert.Equal(t, "test", wrapped.Domain())
	assert.Equal(t, "test_code", wrapped.Code())
	assert.True(t, wrapped.Retryable())
	assert.ErrorIs(t, wrapped, original)
}

func TestErrorCodesAreDistinct(t *testing.T) {
	// The API maps codes to HTTP statuses and clients branch on them, so
	// two conditions must never share a code.
	errorCodes := []string{
		ErrCodeDeviceNotFound,
		ErrCodeDeviceExists,
		ErrCodeKeyInUse,
		ErrCodePartialRemoval,
		ErrCodeInterfaceDown,
		ErrCodeWireGuardError,
		ErrCodeTimeout,
		ErrCodeSubnetExhausted,
		ErrCodeInvalidCIDR,
		ErrCodeInvalidIPAddress,
		ErrCodeStorage,
		ErrCodeConfiguration,
		ErrCodeInternal,
		ErrCodeValidation,
	}

	seen := make(map[string]bool, len(errorCodes))
	for _, code := range errorCodes {
		require.NotEmpty(t, code)
		assert.False(t, seen[code], "error code %q is reused", code)
		seen[code] = true
	}

	domains := []string{
		DomainDevice,
		DomainRegistry,
		DomainIP,
		DomainWireGuard,
		DomainSystem,
		DomainAPI,
		DomainEvent,
	}

	seenDomains := make(map[string]bool, len(domains))
	for _, domain := range domains {
		require.NotEmpty(t, domain)
		assert.False(t, seenDomains[domain], "domain %q is reused", domain)
		seenDomains[domain] = true
	}
}

func TestErrorTimestamp(t *testing.T) {
	before := time.Now()
	err := NewDeviceError("test", "test", false, nil)
	after := time.Now()

	ts := err.Timestamp()
	assert.False(t, ts.Before(before), "timestamp %v precedes construction window start %v", ts, before)
	assert.False(t, ts.After(after), "timestamp %v follows construction window end %v", ts, after)
}
