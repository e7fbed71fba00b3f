package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error codes are the stable vocabulary of the HTTP API. Handlers map
// them to status codes and clients branch on them, so the strings never
// change once released.
const (
	// Device Domain Errors
	ErrCodeDeviceNotFound = "device_not_found"
	ErrCodeDeviceExists   = "device_exists"
	ErrCodeKeyInUse       = "public_key_in_use"
	ErrCodePartialRemoval = "partial_removal"

	// WireGuard Interface Errors
	ErrCodeInterfaceDown  = "interface_down"
	ErrCodeWireGuardError = "wireguard_error"
	ErrCodeTimeout        = "timeout"

	// IP Allocation Errors
	ErrCodeSubnetExhausted  = "subnet_exhausted"
	ErrCodeInvalidCIDR      = "invalid_cidr"
	ErrCodeInvalidIPAddress = "invalid_ip_address"

	// System Errors
	ErrCodeStorage       = "storage_error"
	ErrCodeConfiguration = "config_error"
	ErrCodeInternal      = "internal_error"
	ErrCodeValidation    = "validation"
)

// Domains group error codes by the component that raised them.
const (
	DomainDevice    = "device"
	DomainRegistry  = "registry"
	DomainIP        = "ip"
	DomainWireGuard = "wireguard"
	DomainSystem    = "system"
	DomainAPI       = "api"
	DomainEvent     = "event"
)

// DomainError is the structured error every component raises across a
// package boundary. The API layer reads Code and Retryable to pick a
// status, the logger reads Domain and Metadata to enrich entries.
type DomainError interface {
	error

	// Domain names the component that raised the error
	Domain() string

	// Code is the stable error code exposed on the API
	Code() string

	// Retryable reports whether retrying the operation can succeed
	Retryable() bool

	// Metadata carries structured context for logs and responses
	Metadata() map[string]any

	// WithMetadata returns a copy with the key/value added
	WithMetadata(key string, value any) DomainError

	// Timestamp is when the error was raised
	Timestamp() time.Time
}

// BaseError is the one concrete DomainError implementation.
type BaseError struct {
	domain    string
	code      string
	message   string
	cause     error
	retryable bool
	metadata  map[string]any
	timestamp time.Time
}

// NewBaseError creates a new BaseError with the specified parameters
func NewBaseError(domain, code, message string, retryable bool, cause error, metadata map[string]any) *BaseError {
	e := &BaseError{
		domain:    domain,
		code:      code,
		message:   message,
		cause:     cause,
		retryable: retryable,
		metadata:  metadata,
		timestamp: time.Now(),
	}
	if e.metadata == nil {
		e.metadata = make(map[string]any)
	}
	return e
}

func (e *BaseError) Error() string {
	s := fmt.Sprintf("[%s:%s] %s", e.domain, e.code, e.message)
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *BaseError) Unwrap() error            { return e.cause }
func (e *BaseError) Domain() string           { return e.domain }
func (e *BaseError) Code() string             { return e.code }
func (e *BaseError) Retryable() bool          { return e.retryable }
func (e *BaseError) Metadata() map[string]any { return e.metadata }
func (e *BaseError) Timestamp() time.Time     { return e.timestamp }

// WithMetadata clones the error and adds one key/value. The receiver is
// never mutated, so the shared sentinels below stay immutable.
func (e *BaseError) WithMetadata(key string, value any) DomainError {
	clone := *e
	clone.metadata = make(map[string]any, len(e.metadata)+1)
	for k, v := range e.metadata {
		clone.metadata[k] = v
	}
	clone.metadata[key] = value
	return &clone
}

// Constructors, one per domain.

// NewDeviceError raises a coordinator-level device error
func NewDeviceError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainDevice, code, message, retryable, cause, nil)
}

// NewRegistryError raises a registry store error
func NewRegistryError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainRegistry, code, message, retryable, cause, nil)
}

// NewIPError raises an address allocation error
func NewIPError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainIP, code, message, retryable, cause, nil)
}

// NewWireGuardError raises an interface controller error
func NewWireGuardError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainWireGuard, code, message, retryable, cause, nil)
}

// NewSystemError raises an error outside any single component
func NewSystemError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainSystem, code, message, retryable, cause, nil)
}

// Shared sentinels for the failures callers branch on. WithMetadata
// copies, so handing these out directly is safe.
var (
	DomainErrDeviceNotFound = NewDeviceError(ErrCodeDeviceNotFound, "device not found", false, nil)
	DomainErrDeviceExists   = NewDeviceError(ErrCodeDeviceExists, "device already registered", false, nil)
	DomainErrKeyInUse       = NewDeviceError(ErrCodeKeyInUse, "public key already registered", false, nil)

	DomainErrInterfaceDown = NewWireGuardError(ErrCodeInterfaceDown, "wireguard interface is not available", true, nil)

	DomainErrSubnetExhausted = NewIPError(ErrCodeSubnetExhausted, "subnet has no available addresses", false, nil)

	DomainErrInvalidConfig = NewSystemError(ErrCodeConfiguration, "invalid configuration", false, nil)
)

// Inspection helpers. These read the error as-is; only IsErrorCode walks
// the wrapped chain.

func asDomain(err error) (DomainError, bool) {
	de, ok := err.(DomainError)
	return de, ok
}

// IsDomainError reports whether err itself is a structured error
func IsDomainError(err error) bool {
	_, ok := asDomain(err)
	return ok
}

// IsRetryable reports whether err describes a condition worth retrying
func IsRetryable(err error) bool {
	if de, ok := asDomain(err); ok {
		return de.Retryable()
	}
	return false
}

// GetErrorCode returns the error code, or "unknown" for plain errors
func GetErrorCode(err error) string {
	if de, ok := asDomain(err); ok {
		return de.Code()
	}
	return "unknown"
}

// GetErrorDomain returns the error domain, or "unknown" for plain errors
func GetErrorDomain(err error) string {
	if de, ok := asDomain(err); ok {
		return de.Domain()
	}
	return "unknown"
}

// HasErrorCode reports whether err carries the given code
func HasErrorCode(err error, code string) bool {
	return GetErrorCode(err) == code
}

// IsErrorCode reports whether any error in the chain carries the code
func IsErrorCode(err error, code string) bool {
	for err != nil {
		if HasErrorCode(err, code) {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// WrapWithDomain attaches domain context to an error from outside the
// domain error system, keeping the original as the cause.
func WrapWithDomain(err error, domain, code, message string, retryable bool) DomainError {
	return NewBaseError(domain, code, message, retryable, err, nil)
}
