package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/fastload/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Key: key, Err: err}
	}
	return data, nil
}

// SetMany pipelines one SET per entry in a single round trip.
func (s *Store) SetMany(ctx context.Context, entries []db.Entry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	cmds := make([]rueidis.Completed, len(entries))
	for i, e := range entries {
		cmds[i] = s.setCmd(e, ttl)
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpSet, Key: entries[i].Key, Err: err}
		}
	}
	return nil
}

func (s *Store) setCmd(e db.Entry, ttl time.Duration) rueidis.Completed {
	set := s.client.B().Set().Key(e.Key).Value(rueidis.BinaryString(e.Value))
	if ttl > 0 {
		return set.Ex(ttl).Build()
	}
	return set.Build()
}
