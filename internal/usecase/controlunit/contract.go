package controlunit

import "context"

// FileGuard decides whether the caller may touch a server-side path.
type FileGuard interface {
	AuthorizeFile(ctx context.Context, path string) error
}
