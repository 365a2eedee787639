// Package hashes maps the SHA-256 of displayed gallery files back to their
// original paths, so a copy handed out by the UI can be traced to its source.
package hashes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/db"
	"github.com/kailas-cloud/fastload/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "hash:"

// store is the consumer interface for the hash lookup (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetMany(ctx context.Context, entries []db.Entry, ttl time.Duration) error
}

// Repo records and resolves content hashes.
type Repo struct {
	store   store
	ttl     time.Duration
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New creates a hash lookup. ttl <= 0 keeps entries forever.
// lookups is a counter vec with label "result" ("hit"/"miss"), may be nil.
func New(s store, ttl time.Duration, lookups *prometheus.CounterVec, logger *zap.Logger) *Repo {
	return &Repo{store: s, ttl: ttl, lookups: lookups, logger: logger}
}

// Sum returns the hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Record hashes every file in paths and stores hash -> path in one batch.
// Unreadable files are skipped.
func (r *Repo) Record(ctx context.Context, paths []string) error {
	entries := make([]db.Entry, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Clean(p))
		if err != nil {
			r.logger.Warn("Failed to hash file", zap.String("path", p), zap.Error(err))
			continue
		}
		entries = append(entries, db.Entry{Key: keyPrefix + Sum(data), Value: []byte(p)})
	}
	if err := r.store.SetMany(ctx, entries, r.ttl); err != nil {
		return fmt.Errorf("record hashes: %w", err)
	}
	return nil
}

// Resolve returns the original path of a file with content data.
func (r *Repo) Resolve(ctx context.Context, data []byte) (string, bool, error) {
	return r.ResolveSum(ctx, Sum(data))
}

// ResolveSum returns the original path recorded for the hex digest sum.
func (r *Repo) ResolveSum(ctx context.Context, sum string) (string, bool, error) {
	path, err := r.store.Get(ctx, keyPrefix+sum)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			r.inc("miss")
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve hash: %w", err)
	}
	r.inc("hit")
	return string(path), true, nil
}

// ResolveFile hashes the file at path and resolves it.
func (r *Repo) ResolveFile(ctx context.Context, path string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	return r.Resolve(ctx, data)
}

func (r *Repo) inc(result string) {
	if r.lookups != nil {
		r.lookups.WithLabelValues(result).Inc()
	}
}
