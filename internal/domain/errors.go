package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound signals a missing carrier or image file.
	ErrFileNotFound = errors.New("file not found")
	// ErrDecode signals a carrier without a readable control list.
	ErrDecode = errors.New("no valid control list data")
	// ErrDirNotFound signals a missing gallery directory.
	ErrDirNotFound = errors.New("directory not found")
	// ErrNotDirectory signals a gallery path that is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrPermissionDenied signals a filesystem permission failure.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoPermission signals that the caller's access level forbids the operation.
	ErrNoPermission = errors.New("no permission to use this function")
	// ErrEmptyInput signals that no file or data was supplied.
	ErrEmptyInput = errors.New("no file supplied")
	// ErrInvalidFilter signals a malformed filter token.
	ErrInvalidFilter = errors.New("invalid filter")
)

// DecodeError reports why a carrier could not yield a control list.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode.Error(), e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode.Error(), e.Reason)
}

// Unwrap lets errors.Is match both ErrDecode and the underlying cause.
func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// NewDecodeError creates a decode error with an optional cause.
func NewDecodeError(reason string, cause error) error {
	return &DecodeError{Reason: reason, Err: cause}
}
