package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/core"
)

const (
	fieldCount        = "count"
	fieldBlockedUntil = "blocked_until"
)

var _ core.ThrottleStore = (*ThrottleStore)(nil)

// ThrottleStore keeps one hash per throttle key. Reads and writes are plain
// HGETALL and HSET; the throttle's read-modify-write is not atomic here
// either.
type ThrottleStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewThrottleStore returns a store under prefix. A positive entryTTL lets
// Redis drop entries that have not been written for that long; zero keeps
// them forever like the in-process store.
func NewThrottleStore(rdb redis.UniversalClient, prefix string, entryTTL time.Duration) *ThrottleStore {
	return &ThrottleStore{rdb: rdb, prefix: prefixOr(prefix), ttl: entryTTL}
}

func (s *ThrottleStore) key(k string) string {
	return s.prefix + ":throttle:" + k
}

func (s *ThrottleStore) Get(ctx context.Context, key string) (*core.ThrottleEntry, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read throttle entry: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	entry := &core.ThrottleEntry{}
	if v, ok := fields[fieldCount]; ok {
		if entry.FailureCount, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid throttle count %q: %w", v, err)
		}
	}
	if v, ok := fields[fieldBlockedUntil]; ok && v != "0" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid throttle block time %q: %w", v, err)
		}
		entry.BlockedUntil = time.UnixMilli(ms)
	}
	return entry, nil
}

func (s *ThrottleStore) Put(ctx context.Context, key string, entry core.ThrottleEntry) error {
	var blockedUntil int64
	if !entry.BlockedUntil.IsZero() {
		blockedUntil = entry.BlockedUntil.UnixMilli()
	}

	k := s.key(key)
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, fieldCount, entry.FailureCount, fieldBlockedUntil, blockedUntil)
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write throttle entry: %w", err)
	}
	return nil
}

func (s *ThrottleStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete throttle entry: %w", err)
	}
	return nil
}
