package errors

import (
	"errors"
	"fmt"
)

// ErrStoreClosed reports use of a registry store after Close
var ErrStoreClosed = errors.New("registry store is closed")

// StoreError represents a failure while reading, writing, or locking the
// registry snapshot file
type StoreError struct {
	Op   string // e.g., "load", "persist", "lock"
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("registry %s failed (path=%s): %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("registry %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new store error
func NewStoreError(op, path string, err error) *StoreError {
	return &StoreError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}
