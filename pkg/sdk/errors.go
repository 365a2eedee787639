package fastload

import "github.com/kailas-cloud/fastload/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrFileNotFound     = domain.ErrFileNotFound
	ErrDecode           = domain.ErrDecode
	ErrDirNotFound      = domain.ErrDirNotFound
	ErrNotDirectory     = domain.ErrNotDirectory
	ErrPermissionDenied = domain.ErrPermissionDenied
	ErrNoPermission     = domain.ErrNoPermission
	ErrEmptyInput       = domain.ErrEmptyInput
	ErrInvalidFilter    = domain.ErrInvalidFilter
)
