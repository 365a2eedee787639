package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// DirStater reports whether a gallery directory is reachable.
type DirStater interface {
	StatDir(dir string) error
}
