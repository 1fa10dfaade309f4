// Package redis keeps throttle entries and sessions in Redis so several
// server processes can share them.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "bantay"

// Connect returns a client for addr after a successful PING.
func Connect(ctx context.Context, addr, password string, db int) (redis.UniversalClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func prefixOr(prefix string) string {
	if prefix == "" {
		return DefaultPrefix
	}
	return prefix
}
