package gallery

import (
	"context"

	galidx "github.com/kailas-cloud/fastload/internal/gallery"
)

// IndexCache holds scanned indexes keyed by directory.
type IndexCache interface {
	Get(dir string) (*galidx.Index, bool)
	Put(dir string, ix *galidx.Index)
}

// HashLookup maps displayed file contents back to their original paths.
type HashLookup interface {
	Record(ctx context.Context, paths []string) error
	ResolveFile(ctx context.Context, path string) (string, bool, error)
}

// Watcher is notified of every scanned directory.
type Watcher interface {
	Watch(dir string) error
}

// ScanFunc builds the index of one directory.
type ScanFunc func(ctx context.Context, dir string) (*galidx.Index, error)
