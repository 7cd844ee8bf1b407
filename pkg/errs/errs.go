// Package errs holds the error taxonomy shared by the fragment store
// implementations and the local cache.
package errs

import (
	"errors"
	"fmt"
)

// WriteError is returned when a store append or delete fails
// (network, permission, quota).
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError is returned when a store query fails.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// CacheCorruptError means a Local Cache value did not parse as the expected shape.
type CacheCorruptError struct {
	Key   string
	Value string
	Err   error
}

func (e *CacheCorruptError) Error() string {
	return fmt.Sprintf("cache key %q holds corrupt value: %v", e.Key, e.Err)
}

func (e *CacheCorruptError) Unwrap() error { return e.Err }

func Write(op string, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Op: op, Err: err}
}

func Read(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ReadError{Op: op, Err: err}
}

func IsWrite(err error) bool {
	var target *WriteError
	return errors.As(err, &target)
}

func IsRead(err error) bool {
	var target *ReadError
	return errors.As(err, &target)
}

func IsCacheCorrupt(err error) bool {
	var target *CacheCorruptError
	return errors.As(err, &target)
}
