package hashes

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fastload/internal/db"
)

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	batches int
	getErr  error
	setErr  error
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) SetMany(_ context.Context, entries []db.Entry, ttl time.Duration) error {
	m.batches++
	if m.setErr != nil {
		return m.setErr
	}
	for _, e := range entries {
		m.data[e.Key] = e.Value
		m.ttls[e.Key] = ttl
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	return New(ms, time.Hour, nil, zap.NewNop()), ms
}
